package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/vocalix/vocalix/models"
	"github.com/vocalix/vocalix/utils"
	"gorm.io/gorm"
)

// ErrBalanceRowMissing is returned when a balance mutation targets a user with
// no balance row. Callers are expected to EnsureForUser first.
var ErrBalanceRowMissing = errors.New("balance row missing for user")

// BalanceRepositoryImpl implements BalanceRepository interface
type BalanceRepositoryImpl struct {
	*BaseRepository[models.Balance, models.BalanceFilter]
}

// NewBalanceRepository creates a new balance repository
func NewBalanceRepository(db *gorm.DB) BalanceRepository {
	return &BalanceRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Balance, models.BalanceFilter](db),
	}
}

// ByUserID finds a balance row by user ID
func (r *BalanceRepositoryImpl) ByUserID(ctx context.Context, userID uint) (*models.Balance, error) {
	db := r.getDB(ctx)
	var balance models.Balance
	err := db.Where("user_id = ?", userID).Last(&balance).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &balance, nil
}

// EnsureForUser creates a zero balance row if none exists and returns the row
func (r *BalanceRepositoryImpl) EnsureForUser(ctx context.Context, userID uint) (*models.Balance, error) {
	existing, err := r.ByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	balance := &models.Balance{
		UserID:            userID,
		CurrentBalance:    decimal.Zero,
		WarningThreshold:  decimal.NewFromInt(10),
		CriticalThreshold: decimal.NewFromInt(5),
		CreatedAt:         utils.UTCNow(),
		UpdatedAt:         utils.UTCNow(),
	}
	if err := r.Save(ctx, balance); err != nil {
		// A concurrent worker may have created the row between the read and
		// the insert; the unique index on user_id makes that visible here
		if isUniqueViolation(err) {
			return r.ByUserID(ctx, userID)
		}
		return nil, err
	}
	return balance, nil
}

// ApplyDelta adjusts current_balance by the signed delta in a single
// relative-adjustment statement and returns the resulting balance.
//
// The update is expressed as `current_balance = current_balance + ?` so that
// concurrent callers for the same user serialize at the row level inside the
// database instead of overwriting each other's effect.
func (r *BalanceRepositoryImpl) ApplyDelta(ctx context.Context, userID uint, delta decimal.Decimal) (decimal.Decimal, error) {
	db := r.getDB(ctx)

	var row struct {
		CurrentBalance decimal.Decimal
	}
	res := db.Raw(
		`UPDATE balances
		    SET current_balance = current_balance + ?, updated_at = ?
		  WHERE user_id = ?
		 RETURNING current_balance`,
		delta, utils.UTCNow(), userID,
	).Scan(&row)
	if res.Error != nil {
		return decimal.Zero, fmt.Errorf("failed to apply balance delta for user %d: %w", userID, res.Error)
	}
	if res.RowsAffected == 0 {
		return decimal.Zero, ErrBalanceRowMissing
	}
	return row.CurrentBalance, nil
}

// UpdateThresholds sets the alert thresholds for a user's balance
func (r *BalanceRepositoryImpl) UpdateThresholds(ctx context.Context, userID uint, warning, critical decimal.Decimal) error {
	db := r.getDB(ctx)
	res := db.Model(&models.Balance{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{
			"warning_threshold":  warning,
			"critical_threshold": critical,
			"updated_at":         utils.UTCNow(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrBalanceRowMissing
	}
	return nil
}

// SetBlocked toggles the admission-control block flag for a user
func (r *BalanceRepositoryImpl) SetBlocked(ctx context.Context, userID uint, blocked bool) error {
	db := r.getDB(ctx)
	res := db.Model(&models.Balance{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{"is_blocked": blocked, "updated_at": utils.UTCNow()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrBalanceRowMissing
	}
	return nil
}

// ByFilter retrieves balances based on filter criteria
func (r *BalanceRepositoryImpl) ByFilter(ctx context.Context, filter models.BalanceFilter, orderBy string, limit, offset int) ([]*models.Balance, error) {
	db := r.getDB(ctx)
	var balances []*models.Balance

	query := db.Model(&models.Balance{})
	query = r.applyFilter(query, filter)

	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	err := query.Find(&balances).Error
	if err != nil {
		return nil, err
	}
	return balances, nil
}

// Count returns the number of balances matching the filter
func (r *BalanceRepositoryImpl) Count(ctx context.Context, filter models.BalanceFilter) (int64, error) {
	db := r.getDB(ctx)
	var count int64

	query := db.Model(&models.Balance{})
	query = r.applyFilter(query, filter)

	err := query.Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any balance matching the filter exists
func (r *BalanceRepositoryImpl) Exists(ctx context.Context, filter models.BalanceFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// applyFilter applies the filter to the query
func (r *BalanceRepositoryImpl) applyFilter(query *gorm.DB, filter models.BalanceFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.IsBlocked != nil {
		query = query.Where("is_blocked = ?", *filter.IsBlocked)
	}
	return query
}
