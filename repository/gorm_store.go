package repository

import (
	"context"
	"errors"
	"fmt"

	"scavenger-hunt/models"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const uniqueViolation = "23505"

type GormStore struct {
	gormReader
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{gormReader{db: db}}
}

// Migrate creates or updates every table the service owns.
func (s *GormStore) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(AllModels()...)
}

func (s *GormStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTx{gormReader{db: tx}})
	})
	return translate(err)
}

// translate maps driver errors onto the repository sentinels, keeping
// business errors returned from transaction callbacks untouched.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
	}
	if pgconn.Timeout(err) && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
	}
	return err
}

type gormReader struct {
	db *gorm.DB
}

func (r gormReader) conn(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx)
}

func (r gormReader) GetUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := r.conn(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (r gormReader) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := r.conn(ctx).Order("created_at ASC, id ASC").Find(&users).Error
	return users, translate(err)
}

func (r gormReader) TopUsers(ctx context.Context, limit int) ([]models.User, error) {
	var users []models.User
	err := r.conn(ctx).Order("total_points DESC, id ASC").Limit(limit).Find(&users).Error
	return users, translate(err)
}

func (r gormReader) GetCode(ctx context.Context, id string) (*models.Code, error) {
	var c models.Code
	if err := r.conn(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (r gormReader) ListCodes(ctx context.Context) ([]models.Code, error) {
	var codes []models.Code
	err := r.conn(ctx).Order("sort_order ASC, id ASC").Find(&codes).Error
	return codes, translate(err)
}

func (r gormReader) ListCodesByBadge(ctx context.Context, badgeID string) ([]models.Code, error) {
	var codes []models.Code
	err := r.conn(ctx).
		Where("badge_id = ?", badgeID).
		Order("sort_order ASC, id ASC").
		Find(&codes).Error
	return codes, translate(err)
}

func (r gormReader) GetBadge(ctx context.Context, id string) (*models.Badge, error) {
	var b models.Badge
	if err := r.conn(ctx).First(&b, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &b, nil
}

func (r gormReader) ListBadges(ctx context.Context) ([]models.Badge, error) {
	var badges []models.Badge
	err := r.conn(ctx).Order("name ASC, id ASC").Find(&badges).Error
	return badges, translate(err)
}

func (r gormReader) GetPrize(ctx context.Context, id string) (*models.Prize, error) {
	var p models.Prize
	if err := r.conn(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (r gormReader) ListPrizes(ctx context.Context) ([]models.Prize, error) {
	var prizes []models.Prize
	err := r.conn(ctx).Order("cost ASC, id ASC").Find(&prizes).Error
	return prizes, translate(err)
}

func (r gormReader) ListRedemptionsByUser(ctx context.Context, userID string) ([]models.Redemption, error) {
	var out []models.Redemption
	err := r.conn(ctx).Where("user_id = ?", userID).Order("redeemed_at ASC").Find(&out).Error
	return out, translate(err)
}

func (r gormReader) ListBadgeCompletionsByUser(ctx context.Context, userID string) ([]models.BadgeCompletion, error) {
	var out []models.BadgeCompletion
	err := r.conn(ctx).Where("user_id = ?", userID).Order("completed_at ASC").Find(&out).Error
	return out, translate(err)
}

func (r gormReader) ListClaimsByUser(ctx context.Context, userID string) ([]models.Claim, error) {
	var out []models.Claim
	err := r.conn(ctx).Where("user_id = ?", userID).Order("claimed_at DESC").Find(&out).Error
	return out, translate(err)
}

func (r gormReader) HasClaim(ctx context.Context, userID, prizeID string) (bool, error) {
	var count int64
	err := r.conn(ctx).Model(&models.Claim{}).
		Where("user_id = ? AND prize_id = ?", userID, prizeID).
		Count(&count).Error
	return count > 0, translate(err)
}

type gormTx struct {
	gormReader
}

func (t *gormTx) LockUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := t.conn(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&u, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (t *gormTx) LockPrize(ctx context.Context, id string) (*models.Prize, error) {
	var p models.Prize
	if err := t.conn(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&p, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

// insertOnce uses ON CONFLICT DO NOTHING so a duplicate key does not abort
// the surrounding PostgreSQL transaction.
func (t *gormTx) insertOnce(ctx context.Context, value any) error {
	res := t.conn(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(value)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrDuplicate
	}
	return nil
}

func (t *gormTx) save(ctx context.Context, value any) error {
	return translate(t.conn(ctx).Save(value).Error)
}

func (t *gormTx) deleteByID(ctx context.Context, model any, id string) error {
	res := t.conn(ctx).Delete(model, "id = ?", id)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *gormTx) CreateUser(ctx context.Context, u *models.User) error {
	return t.insertOnce(ctx, u)
}

func (t *gormTx) SaveUser(ctx context.Context, u *models.User) error {
	return t.save(ctx, u)
}

func (t *gormTx) AddUserPoints(ctx context.Context, userID string, delta int64) error {
	res := t.conn(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("total_points", gorm.Expr("total_points + ?", delta))
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *gormTx) DebitUserForClaim(ctx context.Context, userID string, cost int64, maxClaims int) error {
	res := t.conn(ctx).Model(&models.User{}).
		Where("id = ? AND total_points >= ? AND prizes_claimed_count < ?", userID, cost, maxClaims).
		Updates(map[string]interface{}{
			"total_points":         gorm.Expr("total_points - ?", cost),
			"prizes_claimed_count": gorm.Expr("prizes_claimed_count + 1"),
		})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}

func (t *gormTx) CreateRedemption(ctx context.Context, r *models.Redemption) error {
	return t.insertOnce(ctx, r)
}

func (t *gormTx) CreateBadgeCompletion(ctx context.Context, c *models.BadgeCompletion) error {
	return t.insertOnce(ctx, c)
}

func (t *gormTx) IncrementPrizeRedeemed(ctx context.Context, prizeID string) error {
	// SET expressions see the pre-update row, so in_stock reflects the new count.
	res := t.conn(ctx).Model(&models.Prize{}).
		Where("id = ? AND redeemed < total_available", prizeID).
		Updates(map[string]interface{}{
			"redeemed": gorm.Expr("redeemed + 1"),
			"in_stock": gorm.Expr("in_stock AND redeemed + 1 < total_available"),
		})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}

func (t *gormTx) CreateClaim(ctx context.Context, c *models.Claim) error {
	return t.insertOnce(ctx, c)
}

func (t *gormTx) CreateCode(ctx context.Context, c *models.Code) error {
	return t.insertOnce(ctx, c)
}

func (t *gormTx) SaveCode(ctx context.Context, c *models.Code) error {
	return t.save(ctx, c)
}

func (t *gormTx) DeleteCode(ctx context.Context, id string) error {
	return t.deleteByID(ctx, &models.Code{}, id)
}

func (t *gormTx) CreateBadge(ctx context.Context, b *models.Badge) error {
	return t.insertOnce(ctx, b)
}

func (t *gormTx) SaveBadge(ctx context.Context, b *models.Badge) error {
	return t.save(ctx, b)
}

func (t *gormTx) DeleteBadge(ctx context.Context, id string) error {
	return t.deleteByID(ctx, &models.Badge{}, id)
}

func (t *gormTx) ClearBadgeFromCodes(ctx context.Context, badgeID string) (int64, error) {
	res := t.conn(ctx).Model(&models.Code{}).
		Where("badge_id = ?", badgeID).
		Update("badge_id", nil)
	return res.RowsAffected, translate(res.Error)
}

func (t *gormTx) CreatePrize(ctx context.Context, p *models.Prize) error {
	return t.insertOnce(ctx, p)
}

func (t *gormTx) SavePrize(ctx context.Context, p *models.Prize) error {
	return t.save(ctx, p)
}

func (t *gormTx) DeletePrize(ctx context.Context, id string) error {
	return t.deleteByID(ctx, &models.Prize{}, id)
}

func (t *gormTx) MarkSoldOutPrizes(ctx context.Context) (int64, error) {
	res := t.conn(ctx).Model(&models.Prize{}).
		Where("in_stock = ? AND redeemed >= total_available", true).
		Update("in_stock", false)
	return res.RowsAffected, translate(res.Error)
}
