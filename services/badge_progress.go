package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"scavenger-hunt/models"
	"scavenger-hunt/repository"
	"scavenger-hunt/utils"
)

const (
	progressKeyPrefix = "progress:"
	// progressGenKey is bumped by every catalog write.
	progressGenKey = progressKeyPrefix + "gen"
	// progressVersionTTL must outlive any cached entry.
	progressVersionTTL = 7 * 24 * time.Hour
)

// Cache is the byte cache used for per-user badge progress (Redis in production).
// Entries are never deleted; writes bump counters that are part of the key.
type Cache interface {
	GetBytes(ctx context.Context, key string) ([]byte, bool)
	SetBytes(ctx context.Context, key string, b []byte, ttl time.Duration)
	// Counters reads integer keys, missing ones as 0. ok is false when the
	// cache cannot answer.
	Counters(ctx context.Context, keys ...string) (vals []int64, ok bool)
	Incr(ctx context.Context, key string, ttl time.Duration) error
}

type BadgeCode struct {
	ID          string `json:"id"`
	Value       int64  `json:"value"`
	Description string `json:"description,omitempty"`
	Hint        string `json:"hint,omitempty"`
	Order       int    `json:"order"`
	Active      bool   `json:"active"`
	Redeemed    bool   `json:"redeemed"`
}

// BadgeProgress is one active badge as seen by one user.
type BadgeProgress struct {
	BadgeID       string      `json:"badge_id"`
	Name          string      `json:"name"`
	Description   string      `json:"description,omitempty"`
	BonusPoints   int64       `json:"bonus_points"`
	Codes         []BadgeCode `json:"codes"`
	RedeemedCodes []string    `json:"redeemed_codes"`
	RedeemedCount int         `json:"redeemed_count"`
	TotalCount    int         `json:"total_count"`
	Completed     bool        `json:"completed"`
	CompletedAt   *time.Time  `json:"completed_at,omitempty"`
}

type ProgressService struct {
	base
	cache    Cache
	cacheTTL time.Duration
}

func NewProgressService(store repository.Store, timeout time.Duration, cache Cache, cacheTTL time.Duration) *ProgressService {
	if cacheTTL > progressVersionTTL {
		cacheTTL = progressVersionTTL
	}
	return &ProgressService{base: newBase(store, timeout), cache: cache, cacheTTL: cacheTTL}
}

// Progress lists every active badge with its codes in display order and the
// user's redemptions against them. It never writes.
func (s *ProgressService) Progress(ctx context.Context, userID string) ([]BadgeProgress, error) {
	// The key is fixed before any store read, so a result computed from
	// rows older than a concurrent redemption is filed under a dead key.
	key, cacheable := progressKey(ctx, s.cache, userID)
	if cacheable {
		if b, ok := s.cache.GetBytes(ctx, key); ok {
			var cached []BadgeProgress
			if err := json.Unmarshal(b, &cached); err == nil {
				return cached, nil
			}
		}
	}

	ctx, cancel := s.bounded(ctx)
	defer cancel()

	badges, err := s.store.ListBadges(ctx)
	if err != nil {
		return nil, classify(err)
	}
	codes, err := s.store.ListCodes(ctx)
	if err != nil {
		return nil, classify(err)
	}
	redemptions, err := s.store.ListRedemptionsByUser(ctx, userID)
	if err != nil {
		return nil, classify(err)
	}
	completions, err := s.store.ListBadgeCompletionsByUser(ctx, userID)
	if err != nil {
		return nil, classify(err)
	}

	progress := buildProgress(badges, codes, redeemedSet(redemptions), completions)

	if cacheable {
		if b, err := json.Marshal(progress); err == nil {
			s.cache.SetBytes(ctx, key, b, s.cacheTTL)
		}
	}
	return progress, nil
}

func buildProgress(badges []models.Badge, codes []models.Code, redeemed map[string]bool, completions []models.BadgeCompletion) []BadgeProgress {
	byBadge := map[string][]models.Code{}
	for _, c := range codes {
		if c.BadgeID != nil {
			byBadge[*c.BadgeID] = append(byBadge[*c.BadgeID], c)
		}
	}
	completedAt := map[string]time.Time{}
	for _, c := range completions {
		completedAt[c.BadgeID] = c.CompletedAt
	}

	out := make([]BadgeProgress, 0, len(badges))
	for _, b := range badges {
		if !b.Active {
			continue
		}
		// codes arrive sorted by order, then id
		members := byBadge[b.ID]
		p := BadgeProgress{
			BadgeID:       b.ID,
			Name:          b.Name,
			Description:   b.Description,
			BonusPoints:   b.BonusPoints,
			Codes:         make([]BadgeCode, 0, len(members)),
			RedeemedCodes: []string{},
			TotalCount:    len(members),
			Completed:     badgeComplete(members, redeemed),
		}
		for _, c := range members {
			p.Codes = append(p.Codes, BadgeCode{
				ID:          c.ID,
				Value:       c.Value,
				Description: c.Description,
				Hint:        c.Hint,
				Order:       c.Order,
				Active:      c.Active,
				Redeemed:    redeemed[c.ID],
			})
			if redeemed[c.ID] {
				p.RedeemedCodes = append(p.RedeemedCodes, c.ID)
			}
		}
		p.RedeemedCount = len(p.RedeemedCodes)
		if at, ok := completedAt[b.ID]; ok {
			at := at
			p.CompletedAt = &at
		}
		out = append(out, p)
	}
	return out
}

// progressKey builds progress:<user>:badges:<catalog gen>:<user version>.
func progressKey(ctx context.Context, cache Cache, userID string) (string, bool) {
	if cache == nil {
		return "", false
	}
	v, ok := cache.Counters(ctx, progressGenKey, progressVersionKey(userID))
	if !ok || len(v) != 2 {
		return "", false
	}
	return fmt.Sprintf("%s%s:badges:%d:%d", progressKeyPrefix, userID, v[0], v[1]), true
}

func progressVersionKey(userID string) string {
	return progressKeyPrefix + userID + ":ver"
}

func invalidateProgress(ctx context.Context, cache Cache, userID string) {
	if cache == nil {
		return
	}
	if err := cache.Incr(ctx, progressVersionKey(userID), progressVersionTTL); err != nil {
		utils.Sugar.Warnf("⚠️ progress version bump failed user=%s err=%v", userID, err)
	}
}

func invalidateAllProgress(ctx context.Context, cache Cache) {
	if cache == nil {
		return
	}
	if err := cache.Incr(ctx, progressGenKey, 0); err != nil {
		utils.Sugar.Warnf("⚠️ progress generation bump failed: %v", err)
	}
}
