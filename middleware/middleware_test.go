package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"scavenger-hunt/models"
	"scavenger-hunt/services"

	"github.com/gofiber/fiber/v2"
)

type stubIdentity struct{ err error }

func (s stubIdentity) Identify(_ context.Context, token string) (*services.Identity, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &services.Identity{UserID: "user-" + token, Email: token + "@example.com"}, nil
}

type stubProfiles map[string]*models.User

func (s stubProfiles) GetProfile(_ context.Context, id string) (*models.User, error) {
	if u, ok := s[id]; ok {
		return u, nil
	}
	if id == "user-broken" {
		return nil, services.ErrUnavailable
	}
	return nil, services.ErrUserNotFound
}

func get(t *testing.T, app *fiber.App, path, auth string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func TestSessionMiddleware(t *testing.T) {
	app := fiber.New()
	app.Get("/who", SessionMiddleware(stubIdentity{}), func(c *fiber.Ctx) error {
		return c.SendString(UserID(c) + "|" + UserEmail(c))
	})

	resp := get(t, app, "/who", "Bearer abc")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	buf := make([]byte, 64)
	n, _ := resp.Body.Read(buf)
	if got := string(buf[:n]); got != "user-abc|abc@example.com" {
		t.Errorf("body = %q", got)
	}

	if resp := get(t, app, "/who", ""); resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("missing header = %d, want 401", resp.StatusCode)
	}
	if resp := get(t, app, "/who", "Bearer "); resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("empty bearer = %d, want 401", resp.StatusCode)
	}
}

func TestSessionMiddlewareProviderErrors(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{services.ErrUnauthenticated, http.StatusUnauthorized},
		{errors.New("bad signature"), http.StatusUnauthorized},
		{services.ErrUnavailable, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		app := fiber.New()
		app.Get("/", SessionMiddleware(stubIdentity{err: tc.err}), func(c *fiber.Ctx) error { return c.SendStatus(200) })
		if resp := get(t, app, "/", "Bearer x"); resp.StatusCode != tc.want {
			t.Errorf("%v: status = %d, want %d", tc.err, resp.StatusCode, tc.want)
		}
	}
}

func TestRequireAdmin(t *testing.T) {
	profiles := stubProfiles{
		"user-boss":   {ID: "user-boss", IsAdmin: true},
		"user-player": {ID: "user-player"},
	}
	app := fiber.New()
	app.Get("/admin", SessionMiddleware(stubIdentity{}), RequireAdmin(profiles), func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusNoContent)
	})

	cases := map[string]int{
		"Bearer boss":   http.StatusNoContent,
		"Bearer player": http.StatusForbidden,
		"Bearer nobody": http.StatusForbidden,
		"Bearer broken": http.StatusServiceUnavailable,
	}
	for auth, want := range cases {
		if resp := get(t, app, "/admin", auth); resp.StatusCode != want {
			t.Errorf("%s: status = %d, want %d", auth, resp.StatusCode, want)
		}
	}
}

func TestRateLimiterPerCaller(t *testing.T) {
	rl := NewRateLimiter(3)
	for i := 0; i < 3; i++ {
		if !rl.Allow("a") {
			t.Fatalf("request %d refused", i)
		}
	}
	if rl.Allow("a") {
		t.Error("fourth request allowed")
	}
	if !rl.Allow("b") {
		t.Error("other caller throttled")
	}
}

func TestRateLimiterEvictsIdleCallers(t *testing.T) {
	rl := NewRateLimiter(2)
	clock := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return clock }

	rl.Allow("a")
	rl.Allow("a")
	rl.Allow("b")
	if n := limiterCount(rl); n != 2 {
		t.Fatalf("limiters = %d, want 2", n)
	}
	if rl.Allow("a") {
		t.Fatal("a not throttled")
	}

	clock = clock.Add(4 * time.Minute)
	rl.Allow("b")
	clock = clock.Add(2 * time.Minute)
	rl.Allow("c")
	if n := limiterCount(rl); n != 2 {
		t.Errorf("limiters = %d after a went idle, want 2", n)
	}
	rl.mu.Lock()
	_, kept := rl.limiters["b"]
	_, gone := rl.limiters["a"]
	rl.mu.Unlock()
	if !kept || gone {
		t.Errorf("b kept=%v a present=%v", kept, gone)
	}
	if !rl.Allow("a") {
		t.Error("a still throttled after eviction")
	}
}

func limiterCount(rl *RateLimiter) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

func TestRequestLoggerSetsID(t *testing.T) {
	app := fiber.New()
	app.Use(RequestLogger())
	app.Get("/", func(c *fiber.Ctx) error { return c.SendStatus(http.StatusOK) })

	resp := get(t, app, "/", "")
	if resp.Header.Get(fiber.HeaderXRequestID) == "" {
		t.Error("no X-Request-ID on response")
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(fiber.HeaderXRequestID, "fixed-id")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if got := resp.Header.Get(fiber.HeaderXRequestID); got != "fixed-id" {
		t.Errorf("X-Request-ID = %q, want fixed-id", got)
	}
}
