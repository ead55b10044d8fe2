// Package repository is the persistence boundary of the reward service.
// Services depend on Store; GormStore backs it with PostgreSQL and
// MemoryStore with process memory.
package repository

import (
	"context"
	"errors"

	"scavenger-hunt/models"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
	// ErrConflict is returned when a conditional update matched no row.
	ErrConflict = errors.New("conditional update rejected")
)

// Reader is the read side shared by the store and open transactions.
type Reader interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	// TopUsers orders by total points descending, then id.
	TopUsers(ctx context.Context, limit int) ([]models.User, error)

	GetCode(ctx context.Context, id string) (*models.Code, error)
	ListCodes(ctx context.Context) ([]models.Code, error)
	// ListCodesByBadge orders by display order, then id.
	ListCodesByBadge(ctx context.Context, badgeID string) ([]models.Code, error)

	GetBadge(ctx context.Context, id string) (*models.Badge, error)
	ListBadges(ctx context.Context) ([]models.Badge, error)

	GetPrize(ctx context.Context, id string) (*models.Prize, error)
	ListPrizes(ctx context.Context) ([]models.Prize, error)

	ListRedemptionsByUser(ctx context.Context, userID string) ([]models.Redemption, error)
	ListBadgeCompletionsByUser(ctx context.Context, userID string) ([]models.BadgeCompletion, error)
	ListClaimsByUser(ctx context.Context, userID string) ([]models.Claim, error)
	HasClaim(ctx context.Context, userID, prizeID string) (bool, error)
}

// Tx is a unit of work. Writes made through it commit or roll back together.
type Tx interface {
	Reader

	// LockUser and LockPrize read a row and hold it until the transaction ends.
	LockUser(ctx context.Context, id string) (*models.User, error)
	LockPrize(ctx context.Context, id string) (*models.Prize, error)

	CreateUser(ctx context.Context, u *models.User) error
	SaveUser(ctx context.Context, u *models.User) error
	AddUserPoints(ctx context.Context, userID string, delta int64) error
	// DebitUserForClaim subtracts cost and counts one claim only while the
	// balance covers cost and the user is under maxClaims; ErrConflict otherwise.
	DebitUserForClaim(ctx context.Context, userID string, cost int64, maxClaims int) error

	// CreateRedemption and CreateBadgeCompletion insert if absent; ErrDuplicate when present.
	CreateRedemption(ctx context.Context, r *models.Redemption) error
	CreateBadgeCompletion(ctx context.Context, c *models.BadgeCompletion) error

	// IncrementPrizeRedeemed counts one unit only while redeemed < total_available
	// and clears in_stock when the last unit goes; ErrConflict otherwise.
	IncrementPrizeRedeemed(ctx context.Context, prizeID string) error
	CreateClaim(ctx context.Context, c *models.Claim) error

	CreateCode(ctx context.Context, c *models.Code) error
	SaveCode(ctx context.Context, c *models.Code) error
	DeleteCode(ctx context.Context, id string) error

	CreateBadge(ctx context.Context, b *models.Badge) error
	SaveBadge(ctx context.Context, b *models.Badge) error
	DeleteBadge(ctx context.Context, id string) error
	// ClearBadgeFromCodes detaches every code from badgeID and returns how many moved.
	ClearBadgeFromCodes(ctx context.Context, badgeID string) (int64, error)

	CreatePrize(ctx context.Context, p *models.Prize) error
	SavePrize(ctx context.Context, p *models.Prize) error
	DeletePrize(ctx context.Context, id string) error
	// MarkSoldOutPrizes clears in_stock on every prize with no units left.
	MarkSoldOutPrizes(ctx context.Context) (int64, error)
}

type Store interface {
	Reader
	// InTx runs fn in a transaction; a non-nil return rolls back every write.
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// AllModels lists the tables owned by the service, in migration order.
func AllModels() []any {
	return []any{
		&models.User{},
		&models.Badge{},
		&models.Code{},
		&models.Redemption{},
		&models.BadgeCompletion{},
		&models.Prize{},
		&models.Claim{},
	}
}
