package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"scavenger-hunt/models"
)

func strPtr(s string) *string { return &s }

func seedStore(t *testing.T) *MemoryStore {
	t.Helper()
	s := NewMemoryStore()
	err := s.InTx(context.Background(), func(tx Tx) error {
		ctx := context.Background()
		if err := tx.CreateUser(ctx, &models.User{ID: "u1", DisplayName: "Una", TotalPoints: 600}); err != nil {
			return err
		}
		if err := tx.CreateBadge(ctx, &models.Badge{ID: "library", Name: "Library", BonusPoints: 200, Active: true}); err != nil {
			return err
		}
		for _, c := range []models.Code{
			{ID: "B", Value: 50, BadgeID: strPtr("library"), Order: 2, Active: true},
			{ID: "A", Value: 50, BadgeID: strPtr("library"), Order: 1, Active: true},
			{ID: "DEPOT01", Value: 100, Active: true},
		} {
			c := c
			if err := tx.CreateCode(ctx, &c); err != nil {
				return err
			}
		}
		return tx.CreatePrize(ctx, &models.Prize{ID: "sticker", Name: "Sticker", Cost: 500, InStock: true, TotalAvailable: 1})
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return s
}

func TestMemoryStoreRollsBackOnError(t *testing.T) {
	s := seedStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.InTx(ctx, func(tx Tx) error {
		if err := tx.AddUserPoints(ctx, "u1", 100); err != nil {
			return err
		}
		if err := tx.CreateRedemption(ctx, &models.Redemption{ID: "u1_DEPOT01", UserID: "u1", CodeID: "DEPOT01"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("InTx error = %v, want boom", err)
	}

	u, _ := s.GetUser(ctx, "u1")
	if u.TotalPoints != 600 {
		t.Errorf("TotalPoints = %d after rollback, want 600", u.TotalPoints)
	}
	rs, _ := s.ListRedemptionsByUser(ctx, "u1")
	if len(rs) != 0 {
		t.Errorf("redemptions after rollback = %d, want 0", len(rs))
	}
}

func TestMemoryStoreInsertOnce(t *testing.T) {
	s := seedStore(t)
	ctx := context.Background()
	r := &models.Redemption{ID: "u1_A", UserID: "u1", CodeID: "A"}

	if err := s.InTx(ctx, func(tx Tx) error { return tx.CreateRedemption(ctx, r) }); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	err := s.InTx(ctx, func(tx Tx) error { return tx.CreateRedemption(ctx, r) })
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("second insert = %v, want ErrDuplicate", err)
	}
	err = s.InTx(ctx, func(tx Tx) error {
		return tx.CreateCode(ctx, &models.Code{ID: "A", Value: 1})
	})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("duplicate code = %v, want ErrDuplicate", err)
	}
}

func TestMemoryStoreConditionalUpdates(t *testing.T) {
	s := seedStore(t)
	ctx := context.Background()

	err := s.InTx(ctx, func(tx Tx) error {
		if err := tx.DebitUserForClaim(ctx, "u1", 500, 4); err != nil {
			return err
		}
		return tx.IncrementPrizeRedeemed(ctx, "sticker")
	})
	if err != nil {
		t.Fatalf("first claim writes: %v", err)
	}

	p, _ := s.GetPrize(ctx, "sticker")
	if p.Redeemed != 1 || p.InStock {
		t.Errorf("prize = redeemed %d in_stock %v, want 1 false", p.Redeemed, p.InStock)
	}
	u, _ := s.GetUser(ctx, "u1")
	if u.TotalPoints != 100 || u.PrizesClaimedCount != 1 {
		t.Errorf("user = %d points %d claims, want 100 and 1", u.TotalPoints, u.PrizesClaimedCount)
	}

	err = s.InTx(ctx, func(tx Tx) error { return tx.IncrementPrizeRedeemed(ctx, "sticker") })
	if !errors.Is(err, ErrConflict) {
		t.Errorf("increment past total = %v, want ErrConflict", err)
	}
	err = s.InTx(ctx, func(tx Tx) error { return tx.DebitUserForClaim(ctx, "u1", 500, 4) })
	if !errors.Is(err, ErrConflict) {
		t.Errorf("debit beyond balance = %v, want ErrConflict", err)
	}
	err = s.InTx(ctx, func(tx Tx) error { return tx.DebitUserForClaim(ctx, "u1", 10, 1) })
	if !errors.Is(err, ErrConflict) {
		t.Errorf("debit at claim cap = %v, want ErrConflict", err)
	}
}

func TestMemoryStoreClearBadgeFromCodes(t *testing.T) {
	s := seedStore(t)
	ctx := context.Background()

	var moved int64
	err := s.InTx(ctx, func(tx Tx) error {
		var err error
		moved, err = tx.ClearBadgeFromCodes(ctx, "library")
		if err != nil {
			return err
		}
		return tx.DeleteBadge(ctx, "library")
	})
	if err != nil {
		t.Fatalf("delete badge: %v", err)
	}
	if moved != 2 {
		t.Errorf("moved = %d, want 2", moved)
	}
	codes, _ := s.ListCodesByBadge(ctx, "library")
	if len(codes) != 0 {
		t.Errorf("codes still on badge: %d", len(codes))
	}
	if _, err := s.GetBadge(ctx, "library"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetBadge = %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreOrdering(t *testing.T) {
	s := seedStore(t)
	ctx := context.Background()

	codes, err := s.ListCodesByBadge(ctx, "library")
	if err != nil {
		t.Fatal(err)
	}
	if len(codes) != 2 || codes[0].ID != "A" || codes[1].ID != "B" {
		t.Errorf("codes order = %+v, want A then B", codes)
	}

	_ = s.InTx(ctx, func(tx Tx) error {
		_ = tx.CreateUser(ctx, &models.User{ID: "u0", TotalPoints: 600})
		return tx.CreateUser(ctx, &models.User{ID: "u2", TotalPoints: 900})
	})
	top, _ := s.TopUsers(ctx, 2)
	if len(top) != 2 || top[0].ID != "u2" || top[1].ID != "u0" {
		t.Errorf("TopUsers = %+v, want u2 then u0", top)
	}
}

func TestMemoryStoreHonorsDeadline(t *testing.T) {
	s := seedStore(t)
	s.SetLatency(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	_, err := s.GetUser(ctx, "u1")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("GetUser = %v, want DeadlineExceeded", err)
	}
}
