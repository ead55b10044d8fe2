package services

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"scavenger-hunt/models"
	"scavenger-hunt/repository"
)

type fixture struct {
	store    *repository.MemoryStore
	cache    *memCache
	users    *UserService
	redeem   *RedemptionService
	progress *ProgressService
	claims   *ClaimService
	catalog  *CatalogService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := repository.NewMemoryStore()
	cache := newMemCache()
	timeout := time.Second
	return &fixture{
		store:    store,
		cache:    cache,
		users:    NewUserService(store, timeout),
		redeem:   NewRedemptionService(store, timeout, cache),
		progress: NewProgressService(store, timeout, cache, time.Minute),
		claims:   NewClaimService(store, timeout, DefaultMaxClaims),
		catalog:  NewCatalogService(store, timeout, cache, DefaultMaxClaims),
	}
}

func (f *fixture) addUser(t *testing.T, id string, points int64, claimed int) {
	t.Helper()
	ctx := context.Background()
	if _, err := f.users.CreateProfile(ctx, id, id+"@example.com", "Player "+id); err != nil {
		t.Fatalf("CreateProfile(%s): %v", id, err)
	}
	if points != 0 || claimed != 0 {
		if _, err := f.catalog.UpdateUser(ctx, id, UserPatch{TotalPoints: &points, PrizesClaimedCount: &claimed}); err != nil {
			t.Fatalf("UpdateUser(%s): %v", id, err)
		}
	}
}

func (f *fixture) addBadge(t *testing.T, name string, bonus int64) string {
	t.Helper()
	b, err := f.catalog.CreateBadge(context.Background(), BadgeInput{Name: name, BonusPoints: bonus})
	if err != nil {
		t.Fatalf("CreateBadge(%s): %v", name, err)
	}
	return b.ID
}

func (f *fixture) addCode(t *testing.T, id string, value int64, badgeID string, order int) {
	t.Helper()
	in := CodeInput{ID: id, Value: value, Description: "Clue " + id, Order: order}
	if badgeID != "" {
		in.BadgeID = &badgeID
	}
	if _, err := f.catalog.CreateCode(context.Background(), in); err != nil {
		t.Fatalf("CreateCode(%s): %v", id, err)
	}
}

func (f *fixture) addPrize(t *testing.T, id string, cost int64, total int) {
	t.Helper()
	_, err := f.catalog.CreatePrize(context.Background(), PrizeInput{ID: id, Name: strings.ToUpper(id), Cost: cost, TotalAvailable: total})
	if err != nil {
		t.Fatalf("CreatePrize(%s): %v", id, err)
	}
}

func (f *fixture) user(t *testing.T, id string) *models.User {
	t.Helper()
	u, err := f.users.GetProfile(context.Background(), id)
	if err != nil {
		t.Fatalf("GetProfile(%s): %v", id, err)
	}
	return u
}

func (f *fixture) prize(t *testing.T, id string) *models.Prize {
	t.Helper()
	p, err := f.store.GetPrize(context.Background(), id)
	if err != nil {
		t.Fatalf("GetPrize(%s): %v", id, err)
	}
	return p
}

// memCache is an in-process Cache that counts traffic.
type memCache struct {
	mu       sync.Mutex
	m        map[string][]byte
	counters map[string]int64
	hits     int
}

func newMemCache() *memCache {
	return &memCache{m: map[string][]byte{}, counters: map[string]int64{}}
}

func (c *memCache) GetBytes(_ context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.m[key]
	if ok {
		c.hits++
	}
	return b, ok
}

func (c *memCache) SetBytes(_ context.Context, key string, b []byte, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = b
}

func (c *memCache) Counters(_ context.Context, keys ...string) ([]int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]int64, len(keys))
	for i, k := range keys {
		out[i] = c.counters[k]
	}
	return out, true
}

func (c *memCache) Incr(_ context.Context, key string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters[key]++
	return nil
}

func (c *memCache) hitCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits
}
