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

// DefaultMaxClaims is the per-user prize cap.
const DefaultMaxClaims = 4

type ClaimResult struct {
	Claim              models.Claim `json:"claim"`
	TotalPoints        int64        `json:"total_points"`
	PrizesClaimedCount int          `json:"prizes_claimed_count"`
	PrizeRemaining     int          `json:"prize_remaining"`
}

type ClaimService struct {
	base
	maxClaims int
}

func NewClaimService(store repository.Store, timeout time.Duration, maxClaims int) *ClaimService {
	if maxClaims <= 0 {
		maxClaims = DefaultMaxClaims
	}
	return &ClaimService{base: newBase(store, timeout), maxClaims: maxClaims}
}

// Claim spends points on one unit of prizeID. Checks run in a fixed order
// (already claimed, not found, sold out, points, claim cap) against rows
// locked for the transaction, and the debit, inventory count and claim
// record commit together.
func (s *ClaimService) Claim(ctx context.Context, userID, prizeID string) (*ClaimResult, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	var result *ClaimResult
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		user, err := tx.LockUser(ctx, userID)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		if err != nil {
			return err
		}

		claimed, err := tx.HasClaim(ctx, userID, prizeID)
		if err != nil {
			return err
		}
		if claimed {
			return ErrAlreadyClaimed
		}

		prize, err := tx.LockPrize(ctx, prizeID)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrPrizeNotFound
		}
		if err != nil {
			return err
		}
		if !prize.InStock || prize.Redeemed >= prize.TotalAvailable {
			return ErrSoldOut
		}
		if user.TotalPoints < prize.Cost {
			return ErrInsufficientPoints
		}
		if user.PrizesClaimedCount >= s.maxClaims {
			return ErrClaimLimitReached
		}

		err = tx.DebitUserForClaim(ctx, userID, prize.Cost, s.maxClaims)
		if errors.Is(err, repository.ErrConflict) {
			return ErrInsufficientPoints
		}
		if err != nil {
			return err
		}
		err = tx.IncrementPrizeRedeemed(ctx, prizeID)
		if errors.Is(err, repository.ErrConflict) {
			return ErrSoldOut
		}
		if err != nil {
			return err
		}

		now := s.now()
		claim := models.Claim{
			ID:        models.ClaimID(userID, prizeID, now),
			UserID:    userID,
			PrizeID:   prizeID,
			PrizeName: prize.Name,
			PrizeCost: prize.Cost,
			ClaimedAt: now,
		}
		if err := tx.CreateClaim(ctx, &claim); err != nil {
			return err
		}

		result = &ClaimResult{
			Claim:              claim,
			TotalPoints:        user.TotalPoints - prize.Cost,
			PrizesClaimedCount: user.PrizesClaimedCount + 1,
			PrizeRemaining:     prize.TotalAvailable - prize.Redeemed - 1,
		}
		return nil
	})
	if err != nil {
		if Kind(err) == "" {
			utils.Logger.Warn("❌ prize claim failed", zap.String("user_id", userID), zap.String("prize_id", prizeID), zap.Error(err))
		}
		return nil, classify(err)
	}

	utils.Logger.Info("🎁 prize claimed",
		zap.String("user_id", userID),
		zap.String("prize_id", prizeID),
		zap.Int64("cost", result.Claim.PrizeCost),
		zap.Int("remaining", result.PrizeRemaining),
	)
	return result, nil
}

// ListClaims returns the user's claims, newest first.
func (s *ClaimService) ListClaims(ctx context.Context, userID string) ([]models.Claim, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	claims, err := s.store.ListClaimsByUser(ctx, userID)
	if err != nil {
		return nil, classify(err)
	}
	return claims, nil
}

// ReconcileInventory clears in_stock on prizes whose units are all gone,
// covering rows edited outside the claim path.
func (s *ClaimService) ReconcileInventory(ctx context.Context) (int64, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	var n int64
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		var err error
		n, err = tx.MarkSoldOutPrizes(ctx)
		return err
	})
	if err != nil {
		return 0, classify(err)
	}
	return n, nil
}
