package services

import (
	"context"
	"errors"
	"time"

	"scavenger-hunt/models"
	"scavenger-hunt/repository"
	"scavenger-hunt/utils"

	"go.uber.org/zap"
)

type RedemptionResult struct {
	Code           string `json:"code"`
	PointsAwarded  int64  `json:"points_awarded"`
	CodePoints     int64  `json:"code_points"`
	Description    string `json:"description,omitempty"`
	BadgeCompleted bool   `json:"badge_completed"`
	BadgeID        string `json:"badge_id,omitempty"`
	BadgeName      string `json:"badge_name,omitempty"`
	BadgeBonus     int64  `json:"badge_bonus,omitempty"`
	TotalPoints    int64  `json:"total_points"`
}

type RedemptionService struct {
	base
	cache Cache
}

func NewRedemptionService(store repository.Store, timeout time.Duration, cache Cache) *RedemptionService {
	return &RedemptionService{base: newBase(store, timeout), cache: cache}
}

// Redeem applies one code for userID. The redemption record, the optional
// badge completion marker and the points increment commit together.
func (s *RedemptionService) Redeem(ctx context.Context, userID, rawCode string) (*RedemptionResult, error) {
	code := NormalizeCode(rawCode)
	if code == "" {
		return nil, ErrEmptyCode
	}

	ctx, cancel := s.bounded(ctx)
	defer cancel()

	var result *RedemptionResult
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		c, err := tx.GetCode(ctx, code)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidCode
		}
		if err != nil {
			return err
		}
		if !c.Active {
			return ErrInvalidCode
		}

		user, err := tx.LockUser(ctx, userID)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		if err != nil {
			return err
		}

		now := s.now()
		err = tx.CreateRedemption(ctx, &models.Redemption{
			ID:         models.RedemptionID(userID, c.ID),
			UserID:     userID,
			CodeID:     c.ID,
			RedeemedAt: now,
		})
		if errors.Is(err, repository.ErrDuplicate) {
			return ErrAlreadyRedeemed
		}
		if err != nil {
			return err
		}

		result = &RedemptionResult{
			Code:          c.ID,
			CodePoints:    c.Value,
			PointsAwarded: c.Value,
			Description:   c.Description,
		}

		if c.BadgeID != nil && *c.BadgeID != "" {
			badge, bonus, err := s.completeBadge(ctx, tx, userID, *c.BadgeID, now)
			if err != nil {
				return err
			}
			if badge != nil {
				result.BadgeCompleted = true
				result.BadgeID = badge.ID
				result.BadgeName = badge.Name
				result.BadgeBonus = bonus
				result.PointsAwarded += bonus
			}
		}

		if err := tx.AddUserPoints(ctx, userID, result.PointsAwarded); err != nil {
			return err
		}
		result.TotalPoints = user.TotalPoints + result.PointsAwarded
		return nil
	})
	if err != nil {
		if Kind(err) == "" {
			utils.Logger.Warn("❌ redemption failed", zap.String("user_id", userID), zap.String("code", code), zap.Error(err))
		}
		return nil, classify(err)
	}

	invalidateProgress(ctx, s.cache, userID)
	utils.Logger.Info("✅ code redeemed",
		zap.String("user_id", userID),
		zap.String("code", result.Code),
		zap.Int64("points", result.PointsAwarded),
		zap.Bool("badge_completed", result.BadgeCompleted),
	)
	return result, nil
}

// completeBadge writes the completion marker when the user's redemptions now
// cover every code of the badge. It returns the badge only when this call
// created the marker; a missing badge or an existing marker yields nil.
func (s *RedemptionService) completeBadge(ctx context.Context, tx repository.Tx, userID, badgeID string, at time.Time) (*models.Badge, int64, error) {
	badge, err := tx.GetBadge(ctx, badgeID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}

	codes, err := tx.ListCodesByBadge(ctx, badgeID)
	if err != nil {
		return nil, 0, err
	}
	redemptions, err := tx.ListRedemptionsByUser(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	if !badgeComplete(codes, redeemedSet(redemptions)) {
		return nil, 0, nil
	}

	err = tx.CreateBadgeCompletion(ctx, &models.BadgeCompletion{
		ID:          models.BadgeCompletionID(userID, badgeID),
		UserID:      userID,
		BadgeID:     badgeID,
		BonusPoints: badge.BonusPoints,
		CompletedAt: at,
	})
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}
	return badge, badge.BonusPoints, nil
}

func redeemedSet(redemptions []models.Redemption) map[string]bool {
	set := make(map[string]bool, len(redemptions))
	for _, r := range redemptions {
		set[r.CodeID] = true
	}
	return set
}

// badgeComplete: a non-empty code set, every member redeemed.
func badgeComplete(codes []models.Code, redeemed map[string]bool) bool {
	if len(codes) == 0 {
		return false
	}
	for _, c := range codes {
		if !redeemed[c.ID] {
			return false
		}
	}
	return true
}
