package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"scavenger-hunt/models"
	"scavenger-hunt/repository"
	"scavenger-hunt/utils"

	"github.com/gosimple/slug"
)

// --- Admin request types ---

type CodeInput struct {
	ID          string  `json:"id"`
	Value       int64   `json:"value"`
	Description string  `json:"description"`
	BadgeID     *string `json:"badge_id"`
	Hint        string  `json:"hint"`
	Order       int     `json:"order"`
	Active      *bool   `json:"active"` // defaults to true
}

// CodePatch is a partial update; an empty BadgeID detaches the code.
type CodePatch struct {
	Value       *int64  `json:"value,omitempty"`
	Description *string `json:"description,omitempty"`
	BadgeID     *string `json:"badge_id,omitempty"`
	Hint        *string `json:"hint,omitempty"`
	Order       *int    `json:"order,omitempty"`
	Active      *bool   `json:"active,omitempty"`
}

type BadgeInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	BonusPoints int64  `json:"bonus_points"`
	Active      *bool  `json:"active"`
}

// BadgePatch never changes the id; renaming keeps the first slug.
type BadgePatch struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	BonusPoints *int64  `json:"bonus_points,omitempty"`
	Active      *bool   `json:"active,omitempty"`
}

type PrizeInput struct {
	ID             string `json:"id"` // optional; slug of Name otherwise
	Name           string `json:"name"`
	Cost           int64  `json:"cost"`
	Description    string `json:"description"`
	Icon           string `json:"icon"`
	TotalAvailable int    `json:"total_available"`
	InStock        *bool  `json:"in_stock"`
}

type PrizePatch struct {
	Name           *string `json:"name,omitempty"`
	Cost           *int64  `json:"cost,omitempty"`
	Description    *string `json:"description,omitempty"`
	Icon           *string `json:"icon,omitempty"`
	TotalAvailable *int    `json:"total_available,omitempty"`
	InStock        *bool   `json:"in_stock,omitempty"`
}

type UserPatch struct {
	DisplayName        *string `json:"display_name,omitempty"`
	IsAdmin            *bool   `json:"is_admin,omitempty"`
	TotalPoints        *int64  `json:"total_points,omitempty"`
	PrizesClaimedCount *int    `json:"prizes_claimed_count,omitempty"`
}

type BadgeDeleteResult struct {
	BadgeID       string `json:"badge_id"`
	CodesDetached int64  `json:"codes_detached"`
}

// CatalogService backs the admin dashboard.
type CatalogService struct {
	base
	cache     Cache
	maxClaims int
}

func NewCatalogService(store repository.Store, timeout time.Duration, cache Cache, maxClaims int) *CatalogService {
	if maxClaims <= 0 {
		maxClaims = DefaultMaxClaims
	}
	return &CatalogService{base: newBase(store, timeout), cache: cache, maxClaims: maxClaims}
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

// write runs fn in a bounded transaction and maps store failures.
func (s *CatalogService) write(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	ctx, cancel := s.bounded(ctx)
	defer cancel()
	return classify(s.store.InTx(ctx, func(tx repository.Tx) error { return fn(ctx, tx) }))
}

func notFound(err error, kind error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return kind
	}
	return err
}

func duplicate(err error) error {
	if errors.Is(err, repository.ErrDuplicate) {
		return ErrDuplicateID
	}
	return err
}

// ensureBadge checks an optional badge reference; nil or "" means no badge.
func ensureBadge(ctx context.Context, tx repository.Tx, badgeID *string) (*string, error) {
	if badgeID == nil || strings.TrimSpace(*badgeID) == "" {
		return nil, nil
	}
	id := strings.TrimSpace(*badgeID)
	if _, err := tx.GetBadge(ctx, id); err != nil {
		return nil, notFound(err, ErrBadgeNotFound)
	}
	return &id, nil
}

// --- Codes ---

func (s *CatalogService) CreateCode(ctx context.Context, in CodeInput) (*models.Code, error) {
	id := NormalizeCode(in.ID)
	if id == "" {
		return nil, ErrEmptyCode
	}
	if len(id) > 64 {
		return nil, invalid("code too long (max 64 characters)")
	}
	if in.Value < 1 {
		return nil, invalid("value must be at least 1")
	}

	code := &models.Code{
		ID:          id,
		Value:       in.Value,
		Description: utils.Sanitize(in.Description),
		Hint:        utils.Sanitize(in.Hint),
		Order:       in.Order,
		Active:      boolOr(in.Active, true),
	}
	err := s.write(ctx, func(ctx context.Context, tx repository.Tx) error {
		badgeID, err := ensureBadge(ctx, tx, in.BadgeID)
		if err != nil {
			return err
		}
		code.BadgeID = badgeID
		return duplicate(tx.CreateCode(ctx, code))
	})
	if err != nil {
		return nil, err
	}
	invalidateAllProgress(ctx, s.cache)
	utils.Sugar.Infof("✅ code created: %s (%d pts)", code.ID, code.Value)
	return code, nil
}

func (s *CatalogService) GetCode(ctx context.Context, id string) (*models.Code, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()
	c, err := s.store.GetCode(ctx, NormalizeCode(id))
	if err != nil {
		return nil, classify(notFound(err, ErrCodeNotFound))
	}
	return c, nil
}

func (s *CatalogService) ListCodes(ctx context.Context) ([]models.Code, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()
	codes, err := s.store.ListCodes(ctx)
	return codes, classify(err)
}

func (s *CatalogService) UpdateCode(ctx context.Context, id string, patch CodePatch) (*models.Code, error) {
	if patch.Value != nil && *patch.Value < 1 {
		return nil, invalid("value must be at least 1")
	}

	var code *models.Code
	err := s.write(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		code, err = tx.GetCode(ctx, NormalizeCode(id))
		if err != nil {
			return notFound(err, ErrCodeNotFound)
		}
		if patch.Value != nil {
			code.Value = *patch.Value
		}
		if patch.Description != nil {
			code.Description = utils.Sanitize(*patch.Description)
		}
		if patch.Hint != nil {
			code.Hint = utils.Sanitize(*patch.Hint)
		}
		if patch.Order != nil {
			code.Order = *patch.Order
		}
		if patch.Active != nil {
			code.Active = *patch.Active
		}
		if patch.BadgeID != nil {
			if code.BadgeID, err = ensureBadge(ctx, tx, patch.BadgeID); err != nil {
				return err
			}
		}
		return tx.SaveCode(ctx, code)
	})
	if err != nil {
		return nil, err
	}
	invalidateAllProgress(ctx, s.cache)
	return code, nil
}

func (s *CatalogService) SetCodeActive(ctx context.Context, id string, active bool) (*models.Code, error) {
	return s.UpdateCode(ctx, id, CodePatch{Active: &active})
}

// DeleteCode removes the code; existing redemptions and points stay.
func (s *CatalogService) DeleteCode(ctx context.Context, id string) error {
	err := s.write(ctx, func(ctx context.Context, tx repository.Tx) error {
		return notFound(tx.DeleteCode(ctx, NormalizeCode(id)), ErrCodeNotFound)
	})
	if err != nil {
		return err
	}
	invalidateAllProgress(ctx, s.cache)
	utils.Sugar.Infof("🗑️ code deleted: %s", NormalizeCode(id))
	return nil
}

// --- Badges ---

func (s *CatalogService) CreateBadge(ctx context.Context, in BadgeInput) (*models.Badge, error) {
	name := strings.TrimSpace(in.Name)
	id := slug.Make(name)
	if id == "" {
		return nil, invalid("badge name is required")
	}
	if in.BonusPoints < 1 {
		return nil, invalid("bonus_points must be at least 1")
	}

	badge := &models.Badge{
		ID:          id,
		Name:        name,
		Description: utils.Sanitize(in.Description),
		BonusPoints: in.BonusPoints,
		Active:      boolOr(in.Active, true),
	}
	err := s.write(ctx, func(ctx context.Context, tx repository.Tx) error {
		return duplicate(tx.CreateBadge(ctx, badge))
	})
	if err != nil {
		return nil, err
	}
	invalidateAllProgress(ctx, s.cache)
	utils.Sugar.Infof("✅ badge created: %s", badge.ID)
	return badge, nil
}

func (s *CatalogService) ListBadges(ctx context.Context) ([]models.Badge, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()
	badges, err := s.store.ListBadges(ctx)
	return badges, classify(err)
}

func (s *CatalogService) UpdateBadge(ctx context.Context, id string, patch BadgePatch) (*models.Badge, error) {
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return nil, invalid("badge name is required")
	}
	if patch.BonusPoints != nil && *patch.BonusPoints < 1 {
		return nil, invalid("bonus_points must be at least 1")
	}

	var badge *models.Badge
	err := s.write(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		badge, err = tx.GetBadge(ctx, id)
		if err != nil {
			return notFound(err, ErrBadgeNotFound)
		}
		if patch.Name != nil {
			badge.Name = strings.TrimSpace(*patch.Name)
		}
		if patch.Description != nil {
			badge.Description = utils.Sanitize(*patch.Description)
		}
		if patch.BonusPoints != nil {
			badge.BonusPoints = *patch.BonusPoints
		}
		if patch.Active != nil {
			badge.Active = *patch.Active
		}
		return tx.SaveBadge(ctx, badge)
	})
	if err != nil {
		return nil, err
	}
	invalidateAllProgress(ctx, s.cache)
	return badge, nil
}

func (s *CatalogService) SetBadgeActive(ctx context.Context, id string, active bool) (*models.Badge, error) {
	return s.UpdateBadge(ctx, id, BadgePatch{Active: &active})
}

// DeleteBadge removes the badge and detaches its codes in the same
// transaction. Codes, redemptions and completion history are kept.
func (s *CatalogService) DeleteBadge(ctx context.Context, id string) (*BadgeDeleteResult, error) {
	result := &BadgeDeleteResult{BadgeID: id}
	err := s.write(ctx, func(ctx context.Context, tx repository.Tx) error {
		if _, err := tx.GetBadge(ctx, id); err != nil {
			return notFound(err, ErrBadgeNotFound)
		}
		n, err := tx.ClearBadgeFromCodes(ctx, id)
		if err != nil {
			return err
		}
		result.CodesDetached = n
		return tx.DeleteBadge(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	invalidateAllProgress(ctx, s.cache)
	utils.Sugar.Infof("🗑️ badge deleted: %s (%d code(s) detached)", id, result.CodesDetached)
	return result, nil
}

// --- Prizes ---

func (s *CatalogService) CreatePrize(ctx context.Context, in PrizeInput) (*models.Prize, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, invalid("prize name is required")
	}
	id := slug.Make(in.ID)
	if id == "" {
		id = slug.Make(name)
	}
	if id == "" {
		return nil, invalid("prize id could not be derived from name")
	}
	if in.Cost < 1 {
		return nil, invalid("cost must be at least 1")
	}
	if in.TotalAvailable < 0 {
		return nil, invalid("total_available must not be negative")
	}

	prize := &models.Prize{
		ID:             id,
		Name:           name,
		Cost:           in.Cost,
		Description:    utils.Sanitize(in.Description),
		Icon:           strings.TrimSpace(in.Icon),
		TotalAvailable: in.TotalAvailable,
		InStock:        boolOr(in.InStock, true),
	}
	err := s.write(ctx, func(ctx context.Context, tx repository.Tx) error {
		return duplicate(tx.CreatePrize(ctx, prize))
	})
	if err != nil {
		return nil, err
	}
	utils.Sugar.Infof("✅ prize created: %s (%d pts, %d units)", prize.ID, prize.Cost, prize.TotalAvailable)
	return prize, nil
}

func (s *CatalogService) ListPrizes(ctx context.Context) ([]models.Prize, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()
	prizes, err := s.store.ListPrizes(ctx)
	return prizes, classify(err)
}

func (s *CatalogService) UpdatePrize(ctx context.Context, id string, patch PrizePatch) (*models.Prize, error) {
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return nil, invalid("prize name is required")
	}
	if patch.Cost != nil && *patch.Cost < 1 {
		return nil, invalid("cost must be at least 1")
	}

	var prize *models.Prize
	err := s.write(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		prize, err = tx.LockPrize(ctx, id)
		if err != nil {
			return notFound(err, ErrPrizeNotFound)
		}
		if patch.TotalAvailable != nil {
			if *patch.TotalAvailable < prize.Redeemed {
				return invalid("total_available %d is below units already redeemed (%d)", *patch.TotalAvailable, prize.Redeemed)
			}
			prize.TotalAvailable = *patch.TotalAvailable
		}
		if patch.Name != nil {
			prize.Name = strings.TrimSpace(*patch.Name)
		}
		if patch.Cost != nil {
			prize.Cost = *patch.Cost
		}
		if patch.Description != nil {
			prize.Description = utils.Sanitize(*patch.Description)
		}
		if patch.Icon != nil {
			prize.Icon = strings.TrimSpace(*patch.Icon)
		}
		if patch.InStock != nil {
			prize.InStock = *patch.InStock
		}
		return tx.SavePrize(ctx, prize)
	})
	if err != nil {
		return nil, err
	}
	return prize, nil
}

func (s *CatalogService) SetPrizeInStock(ctx context.Context, id string, inStock bool) (*models.Prize, error) {
	return s.UpdatePrize(ctx, id, PrizePatch{InStock: &inStock})
}

// DeletePrize removes the prize; claims already made keep their audit copy.
func (s *CatalogService) DeletePrize(ctx context.Context, id string) error {
	return s.write(ctx, func(ctx context.Context, tx repository.Tx) error {
		return notFound(tx.DeletePrize(ctx, id), ErrPrizeNotFound)
	})
}

// --- Users ---

func (s *CatalogService) ListUsers(ctx context.Context) ([]models.User, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()
	users, err := s.store.ListUsers(ctx)
	return users, classify(err)
}

func (s *CatalogService) UpdateUser(ctx context.Context, id string, patch UserPatch) (*models.User, error) {
	if patch.DisplayName != nil && strings.TrimSpace(*patch.DisplayName) == "" {
		return nil, invalid("display_name is required")
	}
	if patch.TotalPoints != nil && *patch.TotalPoints < 0 {
		return nil, invalid("total_points must not be negative")
	}
	if patch.PrizesClaimedCount != nil && (*patch.PrizesClaimedCount < 0 || *patch.PrizesClaimedCount > s.maxClaims) {
		return nil, invalid("prizes_claimed_count must be between 0 and %d", s.maxClaims)
	}

	var user *models.User
	err := s.write(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		user, err = tx.LockUser(ctx, id)
		if err != nil {
			return notFound(err, ErrUserNotFound)
		}
		if patch.DisplayName != nil {
			user.DisplayName = strings.TrimSpace(*patch.DisplayName)
		}
		if patch.IsAdmin != nil {
			user.IsAdmin = *patch.IsAdmin
		}
		if patch.TotalPoints != nil {
			user.TotalPoints = *patch.TotalPoints
		}
		if patch.PrizesClaimedCount != nil {
			user.PrizesClaimedCount = *patch.PrizesClaimedCount
		}
		return tx.SaveUser(ctx, user)
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}
