package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"scavenger-hunt/models"
)

// MemoryStore keeps every collection in process memory. Transactions run
// one at a time under a single mutex and roll back by restoring a snapshot.
// It serves tests and STORE_DRIVER=memory local runs.
type MemoryStore struct {
	mu   sync.Mutex
	data *memData

	latency time.Duration
	fault   func(op string) error
}

type memData struct {
	users       map[string]models.User
	codes       map[string]models.Code
	badges      map[string]models.Badge
	prizes      map[string]models.Prize
	redemptions map[string]models.Redemption
	completions map[string]models.BadgeCompletion
	claims      map[string]models.Claim
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: &memData{
		users:       map[string]models.User{},
		codes:       map[string]models.Code{},
		badges:      map[string]models.Badge{},
		prizes:      map[string]models.Prize{},
		redemptions: map[string]models.Redemption{},
		completions: map[string]models.BadgeCompletion{},
		claims:      map[string]models.Claim{},
	}}
}

// SetLatency delays every store call by d, honoring context cancellation.
func (s *MemoryStore) SetLatency(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latency = d
}

// InjectFault makes every call consult fn first; a non-nil result fails that call.
func (s *MemoryStore) InjectFault(fn func(op string) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fault = fn
}

func (s *MemoryStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	err := fn(&memTx{store: s})
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		s.data = snapshot
		return err
	}
	return nil
}

func (s *MemoryStore) view() (*memTx, func()) {
	s.mu.Lock()
	return &memTx{store: s}, s.mu.Unlock
}

func (s *MemoryStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	tx, done := s.view()
	defer done()
	return tx.GetUser(ctx, id)
}

func (s *MemoryStore) ListUsers(ctx context.Context) ([]models.User, error) {
	tx, done := s.view()
	defer done()
	return tx.ListUsers(ctx)
}

func (s *MemoryStore) TopUsers(ctx context.Context, limit int) ([]models.User, error) {
	tx, done := s.view()
	defer done()
	return tx.TopUsers(ctx, limit)
}

func (s *MemoryStore) GetCode(ctx context.Context, id string) (*models.Code, error) {
	tx, done := s.view()
	defer done()
	return tx.GetCode(ctx, id)
}

func (s *MemoryStore) ListCodes(ctx context.Context) ([]models.Code, error) {
	tx, done := s.view()
	defer done()
	return tx.ListCodes(ctx)
}

func (s *MemoryStore) ListCodesByBadge(ctx context.Context, badgeID string) ([]models.Code, error) {
	tx, done := s.view()
	defer done()
	return tx.ListCodesByBadge(ctx, badgeID)
}

func (s *MemoryStore) GetBadge(ctx context.Context, id string) (*models.Badge, error) {
	tx, done := s.view()
	defer done()
	return tx.GetBadge(ctx, id)
}

func (s *MemoryStore) ListBadges(ctx context.Context) ([]models.Badge, error) {
	tx, done := s.view()
	defer done()
	return tx.ListBadges(ctx)
}

func (s *MemoryStore) GetPrize(ctx context.Context, id string) (*models.Prize, error) {
	tx, done := s.view()
	defer done()
	return tx.GetPrize(ctx, id)
}

func (s *MemoryStore) ListPrizes(ctx context.Context) ([]models.Prize, error) {
	tx, done := s.view()
	defer done()
	return tx.ListPrizes(ctx)
}

func (s *MemoryStore) ListRedemptionsByUser(ctx context.Context, userID string) ([]models.Redemption, error) {
	tx, done := s.view()
	defer done()
	return tx.ListRedemptionsByUser(ctx, userID)
}

func (s *MemoryStore) ListBadgeCompletionsByUser(ctx context.Context, userID string) ([]models.BadgeCompletion, error) {
	tx, done := s.view()
	defer done()
	return tx.ListBadgeCompletionsByUser(ctx, userID)
}

func (s *MemoryStore) ListClaimsByUser(ctx context.Context, userID string) ([]models.Claim, error) {
	tx, done := s.view()
	defer done()
	return tx.ListClaimsByUser(ctx, userID)
}

func (s *MemoryStore) HasClaim(ctx context.Context, userID, prizeID string) (bool, error) {
	tx, done := s.view()
	defer done()
	return tx.HasClaim(ctx, userID, prizeID)
}

// memTx operates on store.data; the caller holds store.mu.
type memTx struct {
	store *MemoryStore
}

func (t *memTx) enter(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d := t.store.latency; d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	if t.store.fault != nil {
		return t.store.fault(op)
	}
	return nil
}

func getOne[T any](m map[string]T, id string) (*T, error) {
	v, ok := m[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &v, nil
}

func filter[T any](m map[string]T, keep func(T) bool) []T {
	out := make([]T, 0, len(m))
	for _, v := range m {
		if keep == nil || keep(v) {
			out = append(out, v)
		}
	}
	return out
}

func sortCodes(codes []models.Code) {
	sort.Slice(codes, func(i, j int) bool {
		if codes[i].Order != codes[j].Order {
			return codes[i].Order < codes[j].Order
		}
		return codes[i].ID < codes[j].ID
	})
}

func (t *memTx) GetUser(ctx context.Context, id string) (*models.User, error) {
	if err := t.enter(ctx, "GetUser"); err != nil {
		return nil, err
	}
	return getOne(t.store.data.users, id)
}

func (t *memTx) ListUsers(ctx context.Context) ([]models.User, error) {
	if err := t.enter(ctx, "ListUsers"); err != nil {
		return nil, err
	}
	users := filter(t.store.data.users, nil)
	sort.Slice(users, func(i, j int) bool {
		if !users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].CreatedAt.Before(users[j].CreatedAt)
		}
		return users[i].ID < users[j].ID
	})
	return users, nil
}

func (t *memTx) TopUsers(ctx context.Context, limit int) ([]models.User, error) {
	if err := t.enter(ctx, "TopUsers"); err != nil {
		return nil, err
	}
	users := filter(t.store.data.users, nil)
	sort.Slice(users, func(i, j int) bool {
		if users[i].TotalPoints != users[j].TotalPoints {
			return users[i].TotalPoints > users[j].TotalPoints
		}
		return users[i].ID < users[j].ID
	})
	if limit > 0 && len(users) > limit {
		users = users[:limit]
	}
	return users, nil
}

func (t *memTx) GetCode(ctx context.Context, id string) (*models.Code, error) {
	if err := t.enter(ctx, "GetCode"); err != nil {
		return nil, err
	}
	return getOne(t.store.data.codes, id)
}

func (t *memTx) ListCodes(ctx context.Context) ([]models.Code, error) {
	if err := t.enter(ctx, "ListCodes"); err != nil {
		return nil, err
	}
	codes := filter(t.store.data.codes, nil)
	sortCodes(codes)
	return codes, nil
}

func (t *memTx) ListCodesByBadge(ctx context.Context, badgeID string) ([]models.Code, error) {
	if err := t.enter(ctx, "ListCodesByBadge"); err != nil {
		return nil, err
	}
	codes := filter(t.store.data.codes, func(c models.Code) bool {
		return c.BadgeID != nil && *c.BadgeID == badgeID
	})
	sortCodes(codes)
	return codes, nil
}

func (t *memTx) GetBadge(ctx context.Context, id string) (*models.Badge, error) {
	if err := t.enter(ctx, "GetBadge"); err != nil {
		return nil, err
	}
	return getOne(t.store.data.badges, id)
}

func (t *memTx) ListBadges(ctx context.Context) ([]models.Badge, error) {
	if err := t.enter(ctx, "ListBadges"); err != nil {
		return nil, err
	}
	badges := filter(t.store.data.badges, nil)
	sort.Slice(badges, func(i, j int) bool {
		if badges[i].Name != badges[j].Name {
			return badges[i].Name < badges[j].Name
		}
		return badges[i].ID < badges[j].ID
	})
	return badges, nil
}

func (t *memTx) GetPrize(ctx context.Context, id string) (*models.Prize, error) {
	if err := t.enter(ctx, "GetPrize"); err != nil {
		return nil, err
	}
	return getOne(t.store.data.prizes, id)
}

func (t *memTx) ListPrizes(ctx context.Context) ([]models.Prize, error) {
	if err := t.enter(ctx, "ListPrizes"); err != nil {
		return nil, err
	}
	prizes := filter(t.store.data.prizes, nil)
	sort.Slice(prizes, func(i, j int) bool {
		if prizes[i].Cost != prizes[j].Cost {
			return prizes[i].Cost < prizes[j].Cost
		}
		return prizes[i].ID < prizes[j].ID
	})
	return prizes, nil
}

func (t *memTx) ListRedemptionsByUser(ctx context.Context, userID string) ([]models.Redemption, error) {
	if err := t.enter(ctx, "ListRedemptionsByUser"); err != nil {
		return nil, err
	}
	out := filter(t.store.data.redemptions, func(r models.Redemption) bool { return r.UserID == userID })
	sort.Slice(out, func(i, j int) bool { return out[i].RedeemedAt.Before(out[j].RedeemedAt) })
	return out, nil
}

func (t *memTx) ListBadgeCompletionsByUser(ctx context.Context, userID string) ([]models.BadgeCompletion, error) {
	if err := t.enter(ctx, "ListBadgeCompletionsByUser"); err != nil {
		return nil, err
	}
	out := filter(t.store.data.completions, func(c models.BadgeCompletion) bool { return c.UserID == userID })
	sort.Slice(out, func(i, j int) bool { return out[i].CompletedAt.Before(out[j].CompletedAt) })
	return out, nil
}

func (t *memTx) ListClaimsByUser(ctx context.Context, userID string) ([]models.Claim, error) {
	if err := t.enter(ctx, "ListClaimsByUser"); err != nil {
		return nil, err
	}
	out := filter(t.store.data.claims, func(c models.Claim) bool { return c.UserID == userID })
	sort.Slice(out, func(i, j int) bool { return out[i].ClaimedAt.After(out[j].ClaimedAt) })
	return out, nil
}

func (t *memTx) HasClaim(ctx context.Context, userID, prizeID string) (bool, error) {
	if err := t.enter(ctx, "HasClaim"); err != nil {
		return false, err
	}
	for _, c := range t.store.data.claims {
		if c.UserID == userID && c.PrizeID == prizeID {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) LockUser(ctx context.Context, id string) (*models.User, error) {
	if err := t.enter(ctx, "LockUser"); err != nil {
		return nil, err
	}
	return getOne(t.store.data.users, id)
}

func (t *memTx) LockPrize(ctx context.Context, id string) (*models.Prize, error) {
	if err := t.enter(ctx, "LockPrize"); err != nil {
		return nil, err
	}
	return getOne(t.store.data.prizes, id)
}

func stamp(ts *models.Timestamps, creating bool) {
	now := time.Now()
	if creating && ts.CreatedAt.IsZero() {
		ts.CreatedAt = now
	}
	ts.UpdatedAt = now
}

func (t *memTx) CreateUser(ctx context.Context, u *models.User) error {
	if err := t.enter(ctx, "CreateUser"); err != nil {
		return err
	}
	if _, ok := t.store.data.users[u.ID]; ok {
		return ErrDuplicate
	}
	stamp(&u.Timestamps, true)
	t.store.data.users[u.ID] = *u
	return nil
}

func (t *memTx) SaveUser(ctx context.Context, u *models.User) error {
	if err := t.enter(ctx, "SaveUser"); err != nil {
		return err
	}
	stamp(&u.Timestamps, true)
	t.store.data.users[u.ID] = *u
	return nil
}

func (t *memTx) AddUserPoints(ctx context.Context, userID string, delta int64) error {
	if err := t.enter(ctx, "AddUserPoints"); err != nil {
		return err
	}
	u, ok := t.store.data.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.TotalPoints += delta
	stamp(&u.Timestamps, false)
	t.store.data.users[userID] = u
	return nil
}

func (t *memTx) DebitUserForClaim(ctx context.Context, userID string, cost int64, maxClaims int) error {
	if err := t.enter(ctx, "DebitUserForClaim"); err != nil {
		return err
	}
	u, ok := t.store.data.users[userID]
	if !ok || u.TotalPoints < cost || u.PrizesClaimedCount >= maxClaims {
		return ErrConflict
	}
	u.TotalPoints -= cost
	u.PrizesClaimedCount++
	stamp(&u.Timestamps, false)
	t.store.data.users[userID] = u
	return nil
}

func (t *memTx) CreateRedemption(ctx context.Context, r *models.Redemption) error {
	if err := t.enter(ctx, "CreateRedemption"); err != nil {
		return err
	}
	if _, ok := t.store.data.redemptions[r.ID]; ok {
		return ErrDuplicate
	}
	t.store.data.redemptions[r.ID] = *r
	return nil
}

func (t *memTx) CreateBadgeCompletion(ctx context.Context, c *models.BadgeCompletion) error {
	if err := t.enter(ctx, "CreateBadgeCompletion"); err != nil {
		return err
	}
	if _, ok := t.store.data.completions[c.ID]; ok {
		return ErrDuplicate
	}
	t.store.data.completions[c.ID] = *c
	return nil
}

func (t *memTx) IncrementPrizeRedeemed(ctx context.Context, prizeID string) error {
	if err := t.enter(ctx, "IncrementPrizeRedeemed"); err != nil {
		return err
	}
	p, ok := t.store.data.prizes[prizeID]
	if !ok || p.Redeemed >= p.TotalAvailable {
		return ErrConflict
	}
	p.Redeemed++
	if p.Redeemed >= p.TotalAvailable {
		p.InStock = false
	}
	stamp(&p.Timestamps, false)
	t.store.data.prizes[prizeID] = p
	return nil
}

func (t *memTx) CreateClaim(ctx context.Context, c *models.Claim) error {
	if err := t.enter(ctx, "CreateClaim"); err != nil {
		return err
	}
	if _, ok := t.store.data.claims[c.ID]; ok {
		return ErrDuplicate
	}
	t.store.data.claims[c.ID] = *c
	return nil
}

func (t *memTx) CreateCode(ctx context.Context, c *models.Code) error {
	if err := t.enter(ctx, "CreateCode"); err != nil {
		return err
	}
	if _, ok := t.store.data.codes[c.ID]; ok {
		return ErrDuplicate
	}
	stamp(&c.Timestamps, true)
	t.store.data.codes[c.ID] = *c
	return nil
}

func (t *memTx) SaveCode(ctx context.Context, c *models.Code) error {
	if err := t.enter(ctx, "SaveCode"); err != nil {
		return err
	}
	stamp(&c.Timestamps, true)
	t.store.data.codes[c.ID] = *c
	return nil
}

func (t *memTx) DeleteCode(ctx context.Context, id string) error {
	if err := t.enter(ctx, "DeleteCode"); err != nil {
		return err
	}
	if _, ok := t.store.data.codes[id]; !ok {
		return ErrNotFound
	}
	delete(t.store.data.codes, id)
	return nil
}

func (t *memTx) CreateBadge(ctx context.Context, b *models.Badge) error {
	if err := t.enter(ctx, "CreateBadge"); err != nil {
		return err
	}
	if _, ok := t.store.data.badges[b.ID]; ok {
		return ErrDuplicate
	}
	stamp(&b.Timestamps, true)
	t.store.data.badges[b.ID] = *b
	return nil
}

func (t *memTx) SaveBadge(ctx context.Context, b *models.Badge) error {
	if err := t.enter(ctx, "SaveBadge"); err != nil {
		return err
	}
	stamp(&b.Timestamps, true)
	t.store.data.badges[b.ID] = *b
	return nil
}

func (t *memTx) DeleteBadge(ctx context.Context, id string) error {
	if err := t.enter(ctx, "DeleteBadge"); err != nil {
		return err
	}
	if _, ok := t.store.data.badges[id]; !ok {
		return ErrNotFound
	}
	delete(t.store.data.badges, id)
	return nil
}

func (t *memTx) ClearBadgeFromCodes(ctx context.Context, badgeID string) (int64, error) {
	if err := t.enter(ctx, "ClearBadgeFromCodes"); err != nil {
		return 0, err
	}
	var n int64
	for id, c := range t.store.data.codes {
		if c.BadgeID != nil && *c.BadgeID == badgeID {
			c.BadgeID = nil
			stamp(&c.Timestamps, false)
			t.store.data.codes[id] = c
			n++
		}
	}
	return n, nil
}

func (t *memTx) CreatePrize(ctx context.Context, p *models.Prize) error {
	if err := t.enter(ctx, "CreatePrize"); err != nil {
		return err
	}
	if _, ok := t.store.data.prizes[p.ID]; ok {
		return ErrDuplicate
	}
	stamp(&p.Timestamps, true)
	t.store.data.prizes[p.ID] = *p
	return nil
}

func (t *memTx) SavePrize(ctx context.Context, p *models.Prize) error {
	if err := t.enter(ctx, "SavePrize"); err != nil {
		return err
	}
	stamp(&p.Timestamps, true)
	t.store.data.prizes[p.ID] = *p
	return nil
}

func (t *memTx) DeletePrize(ctx context.Context, id string) error {
	if err := t.enter(ctx, "DeletePrize"); err != nil {
		return err
	}
	if _, ok := t.store.data.prizes[id]; !ok {
		return ErrNotFound
	}
	delete(t.store.data.prizes, id)
	return nil
}

func (t *memTx) MarkSoldOutPrizes(ctx context.Context) (int64, error) {
	if err := t.enter(ctx, "MarkSoldOutPrizes"); err != nil {
		return 0, err
	}
	var n int64
	for id, p := range t.store.data.prizes {
		if p.InStock && p.Redeemed >= p.TotalAvailable {
			p.InStock = false
			stamp(&p.Timestamps, false)
			t.store.data.prizes[id] = p
			n++
		}
	}
	return n, nil
}

func (d *memData) clone() *memData {
	return &memData{
		users:       cloneMap(d.users),
		codes:       cloneMap(d.codes),
		badges:      cloneMap(d.badges),
		prizes:      cloneMap(d.prizes),
		redemptions: cloneMap(d.redemptions),
		completions: cloneMap(d.completions),
		claims:      cloneMap(d.claims),
	}
}

func cloneMap[T any](m map[string]T) map[string]T {
	out := make(map[string]T, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
