package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"scavenger-hunt/middleware"
	"scavenger-hunt/repository"
	"scavenger-hunt/services"
	"scavenger-hunt/utils"

	"github.com/gofiber/fiber/v2"
)

const testSecret = "test-secret"

type testApp struct {
	app     *fiber.App
	deps    Deps
	catalog *services.CatalogService
}

type fakeExporter struct {
	url string
	err error
}

func (f *fakeExporter) ExportOnce(context.Context) (string, error) { return f.url, f.err }

func newTestApp(t *testing.T, redeemPerMinute int) *testApp {
	t.Helper()
	store := repository.NewMemoryStore()
	timeout := time.Second
	catalog := services.NewCatalogService(store, timeout, nil, services.DefaultMaxClaims)
	d := Deps{
		Identity:      services.NewJWTIdentity(testSecret),
		Users:         services.NewUserService(store, timeout),
		Redeem:        services.NewRedemptionService(store, timeout, nil),
		Progress:      services.NewProgressService(store, timeout, nil, 0),
		Claims:        services.NewClaimService(store, timeout, services.DefaultMaxClaims),
		Catalog:       catalog,
		RedeemLimiter: middleware.NewRateLimiter(redeemPerMinute),
		Exporter:      &fakeExporter{url: "https://cdn.example.com/leaderboards/latest.json"},
	}
	app := fiber.New()
	Setup(app, d)
	return &testApp{app: app, deps: d, catalog: catalog}
}

func token(t *testing.T, userID string) string {
	t.Helper()
	tok, err := utils.IssueSessionToken(testSecret, userID, userID+"@example.com", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func (a *testApp) do(t *testing.T, method, path, userID string, body any) (int, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+token(t, userID))
	}
	resp, err := a.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	out := map[string]any{}
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &out)
	}
	return resp.StatusCode, out
}

func (a *testApp) signup(t *testing.T, userID string) {
	t.Helper()
	status, body := a.do(t, http.MethodPost, "/profile", userID, map[string]string{"display_name": "Player " + userID})
	if status != http.StatusCreated {
		t.Fatalf("signup %s: %d %v", userID, status, body)
	}
}

func (a *testApp) makeAdmin(t *testing.T, userID string) {
	t.Helper()
	yes := true
	if _, err := a.catalog.UpdateUser(context.Background(), userID, services.UserPatch{IsAdmin: &yes}); err != nil {
		t.Fatal(err)
	}
}

func TestHealthIsPublic(t *testing.T) {
	a := newTestApp(t, 10)
	status, body := a.do(t, http.MethodGet, "/health", "", nil)
	if status != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("health = %d %v", status, body)
	}
}

func TestSessionRequired(t *testing.T) {
	a := newTestApp(t, 10)

	status, body := a.do(t, http.MethodGet, "/me", "", nil)
	if status != http.StatusUnauthorized || body["error"] != "Unauthenticated" {
		t.Fatalf("no token = %d %v", status, body)
	}

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	resp, err := a.app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("garbage token = %d, want 401", resp.StatusCode)
	}
}

func TestPlayerFlow(t *testing.T) {
	a := newTestApp(t, 10)
	a.signup(t, "U1")

	ctx := context.Background()
	if _, err := a.catalog.CreateCode(ctx, services.CodeInput{ID: "DEPOT01", Value: 600}); err != nil {
		t.Fatal(err)
	}
	if _, err := a.catalog.CreatePrize(ctx, services.PrizeInput{ID: "sticker", Name: "Sticker", Cost: 500, TotalAvailable: 1}); err != nil {
		t.Fatal(err)
	}

	status, body := a.do(t, http.MethodPost, "/redeem", "U1", map[string]string{"code": " depot01"})
	if status != http.StatusOK || body["points_awarded"] != float64(600) {
		t.Fatalf("redeem = %d %v", status, body)
	}
	status, body = a.do(t, http.MethodPost, "/redeem", "U1", map[string]string{"code": "DEPOT01"})
	if status != http.StatusConflict || body["error"] != "AlreadyRedeemed" {
		t.Fatalf("second redeem = %d %v", status, body)
	}

	status, body = a.do(t, http.MethodPost, "/prizes/sticker/claim", "U1", nil)
	if status != http.StatusCreated {
		t.Fatalf("claim = %d %v", status, body)
	}
	status, body = a.do(t, http.MethodGet, "/me", "U1", nil)
	if status != http.StatusOK || body["total_points"] != float64(100) {
		t.Fatalf("me = %d %v", status, body)
	}
	status, body = a.do(t, http.MethodGet, "/me/claims", "U1", nil)
	if claims, _ := body["claims"].([]any); status != http.StatusOK || len(claims) != 1 {
		t.Fatalf("claims = %d %v", status, body)
	}
}

func TestErrorStatuses(t *testing.T) {
	a := newTestApp(t, 100)
	a.signup(t, "U1")
	a.signup(t, "U2")
	ctx := context.Background()
	if _, err := a.catalog.CreatePrize(ctx, services.PrizeInput{ID: "gone", Name: "Gone", Cost: 1, TotalAvailable: 0}); err != nil {
		t.Fatal(err)
	}
	if _, err := a.catalog.CreatePrize(ctx, services.PrizeInput{ID: "pricey", Name: "Pricey", Cost: 9999, TotalAvailable: 3}); err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name, method, path, user string
		body                     any
		status                   int
		kind                     string
	}{
		{"empty code", http.MethodPost, "/redeem", "U1", map[string]string{"code": " "}, http.StatusBadRequest, "EmptyCode"},
		{"unknown code", http.MethodPost, "/redeem", "U1", map[string]string{"code": "NOPE"}, http.StatusNotFound, "InvalidCode"},
		{"no profile", http.MethodGet, "/me", "ghost", nil, http.StatusNotFound, "UserNotFound"},
		{"duplicate profile", http.MethodPost, "/profile", "U2", map[string]string{"display_name": "Again"}, http.StatusConflict, "DuplicateId"},
		{"sold out", http.MethodPost, "/prizes/gone/claim", "U1", nil, http.StatusGone, "SoldOut"},
		{"too poor", http.MethodPost, "/prizes/pricey/claim", "U1", nil, http.StatusUnprocessableEntity, "InsufficientPoints"},
		{"unknown prize", http.MethodPost, "/prizes/nope/claim", "U1", nil, http.StatusNotFound, "PrizeNotFound"},
		{"blank name", http.MethodPatch, "/me", "U1", map[string]string{"display_name": ""}, http.StatusBadRequest, "InvalidInput"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, body := a.do(t, tc.method, tc.path, tc.user, tc.body)
			if status != tc.status || body["error"] != tc.kind {
				t.Fatalf("got %d %v, want %d %s", status, body, tc.status, tc.kind)
			}
		})
	}
}

func TestRedeemRateLimited(t *testing.T) {
	a := newTestApp(t, 2)
	a.signup(t, "U1")

	for i := 0; i < 2; i++ {
		if status, _ := a.do(t, http.MethodPost, "/redeem", "U1", map[string]string{"code": "NOPE"}); status != http.StatusNotFound {
			t.Fatalf("attempt %d = %d, want 404", i, status)
		}
	}
	status, body := a.do(t, http.MethodPost, "/redeem", "U1", map[string]string{"code": "NOPE"})
	if status != http.StatusTooManyRequests || body["error"] != "RateLimited" {
		t.Fatalf("third attempt = %d %v", status, body)
	}
}

func TestAdminRequiresFlag(t *testing.T) {
	a := newTestApp(t, 10)
	a.signup(t, "U1")

	status, body := a.do(t, http.MethodGet, "/admin/codes", "U1", nil)
	if status != http.StatusForbidden {
		t.Fatalf("non-admin = %d %v", status, body)
	}
	status, _ = a.do(t, http.MethodGet, "/admin/codes", "", nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("anonymous = %d, want 401", status)
	}
}

func TestAdminCatalogRoutes(t *testing.T) {
	a := newTestApp(t, 10)
	a.signup(t, "boss")
	a.makeAdmin(t, "boss")

	status, body := a.do(t, http.MethodPost, "/admin/badges", "boss", map[string]any{"name": "Library Explorer", "bonus_points": 200})
	if status != http.StatusCreated || body["id"] != "library-explorer" {
		t.Fatalf("create badge = %d %v", status, body)
	}
	for _, id := range []string{"X", "Y"} {
		status, body = a.do(t, http.MethodPost, "/admin/codes", "boss", map[string]any{"id": id, "value": 10, "badge_id": "library-explorer"})
		if status != http.StatusCreated {
			t.Fatalf("create code %s = %d %v", id, status, body)
		}
	}
	status, body = a.do(t, http.MethodPost, "/admin/codes", "boss", map[string]any{"id": "x", "value": 10})
	if status != http.StatusConflict || body["error"] != "DuplicateId" {
		t.Fatalf("duplicate code = %d %v", status, body)
	}

	status, body = a.do(t, http.MethodPatch, "/admin/codes/X/active", "boss", map[string]any{"active": false})
	if status != http.StatusOK || body["active"] != false {
		t.Fatalf("toggle = %d %v", status, body)
	}
	status, body = a.do(t, http.MethodPatch, "/admin/codes/X/active", "boss", map[string]any{})
	if status != http.StatusBadRequest {
		t.Fatalf("toggle without field = %d %v", status, body)
	}

	status, body = a.do(t, http.MethodDelete, "/admin/badges/library-explorer", "boss", nil)
	if status != http.StatusOK || body["codes_detached"] != float64(2) {
		t.Fatalf("delete badge = %d %v", status, body)
	}
	status, body = a.do(t, http.MethodGet, "/admin/codes/Y", "boss", nil)
	if status != http.StatusOK || body["badge_id"] != nil {
		t.Fatalf("code after badge delete = %d %v", status, body)
	}

	status, body = a.do(t, http.MethodPost, "/admin/prizes", "boss", map[string]any{"name": "Beezy Coffee", "cost": 1000, "total_available": 50})
	if status != http.StatusCreated || body["id"] != "beezy-coffee" {
		t.Fatalf("create prize = %d %v", status, body)
	}
	status, body = a.do(t, http.MethodPatch, "/admin/prizes/beezy-coffee/stock", "boss", map[string]any{"in_stock": false})
	if status != http.StatusOK || body["in_stock"] != false {
		t.Fatalf("stock toggle = %d %v", status, body)
	}

	status, body = a.do(t, http.MethodGet, "/admin/leaderboard?limit=5", "boss", nil)
	if entries, _ := body["leaderboard"].([]any); status != http.StatusOK || len(entries) != 1 {
		t.Fatalf("leaderboard = %d %v", status, body)
	}
	status, body = a.do(t, http.MethodPost, "/admin/leaderboard/export", "boss", nil)
	if status != http.StatusOK || body["url"] == "" {
		t.Fatalf("export = %d %v", status, body)
	}
}

func TestExportFailureAndMissingExporter(t *testing.T) {
	a := newTestApp(t, 10)
	a.signup(t, "boss")
	a.makeAdmin(t, "boss")

	failing := fiber.New()
	d := a.deps
	d.Exporter = &fakeExporter{err: errors.New("bucket gone")}
	Setup(failing, d)
	a.app = failing
	if status, _ := a.do(t, http.MethodPost, "/admin/leaderboard/export", "boss", nil); status != http.StatusBadGateway {
		t.Errorf("failing export = %d, want 502", status)
	}

	none := fiber.New()
	d.Exporter = nil
	Setup(none, d)
	a.app = none
	if status, _ := a.do(t, http.MethodPost, "/admin/leaderboard/export", "boss", nil); status != http.StatusNotImplemented {
		t.Errorf("no exporter = %d, want 501", status)
	}
}

func TestAdminCodeIDIsPathDecoded(t *testing.T) {
	a := newTestApp(t, 10)
	a.signup(t, "boss")
	a.makeAdmin(t, "boss")

	status, body := a.do(t, http.MethodPost, "/admin/codes", "boss", map[string]any{"id": "a b", "value": 10})
	if status != http.StatusCreated || body["id"] != "A B" {
		t.Fatalf("create = %d %v", status, body)
	}
	status, body = a.do(t, http.MethodGet, "/admin/codes/A%20B", "boss", nil)
	if status != http.StatusOK || body["id"] != "A B" {
		t.Fatalf("get = %d %v", status, body)
	}
	status, body = a.do(t, http.MethodPatch, "/admin/codes/A%20B/active", "boss", map[string]any{"active": false})
	if status != http.StatusOK || body["active"] != false {
		t.Fatalf("toggle = %d %v", status, body)
	}
	if status, body = a.do(t, http.MethodDelete, "/admin/codes/A%20B", "boss", nil); status != http.StatusNoContent {
		t.Fatalf("delete = %d %v", status, body)
	}
	if status, _ = a.do(t, http.MethodGet, "/admin/codes/A%20B", "boss", nil); status != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", status)
	}
}
