package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vocalix/vocalix/models"
	"gorm.io/gorm"
)

// TransactionRepositoryImpl implements TransactionRepository interface
type TransactionRepositoryImpl struct {
	*BaseRepository[models.Transaction, models.TransactionFilter]
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db *gorm.DB) TransactionRepository {
	return &TransactionRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Transaction, models.TransactionFilter](db),
	}
}

// ByCallIDRef finds the deduction transaction recorded for a call, if any
func (r *TransactionRepositoryImpl) ByCallIDRef(ctx context.Context, callID string) (*models.Transaction, error) {
	db := r.getDB(ctx)
	var transaction models.Transaction
	err := db.Where("call_id_ref = ? AND type = ?", callID, models.TransactionTypeDeduction).
		Last(&transaction).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &transaction, nil
}

// BilledCallIDs returns the call IDs among the given set that already carry a
// deduction transaction for the user
func (r *TransactionRepositoryImpl) BilledCallIDs(ctx context.Context, userID uint, callIDs []string) (map[string]bool, error) {
	billed := make(map[string]bool, len(callIDs))
	if len(callIDs) == 0 {
		return billed, nil
	}

	db := r.getDB(ctx)
	var refs []string
	err := db.Model(&models.Transaction{}).
		Where("user_id = ? AND type = ? AND call_id_ref IN ?", userID, models.TransactionTypeDeduction, callIDs).
		Pluck("call_id_ref", &refs).Error
	if err != nil {
		return nil, err
	}
	for _, ref := range refs {
		billed[ref] = true
	}
	return billed, nil
}

// ListRecent returns the user's newest transactions first
func (r *TransactionRepositoryImpl) ListRecent(ctx context.Context, userID uint, limit int) ([]*models.Transaction, error) {
	db := r.getDB(ctx)
	var transactions []*models.Transaction

	query := db.Where("user_id = ?", userID).Order("created_at DESC, id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	err := query.Find(&transactions).Error
	if err != nil {
		return nil, err
	}
	return transactions, nil
}

// CountSince counts the user's transactions committed at or after the given instant
func (r *TransactionRepositoryImpl) CountSince(ctx context.Context, userID uint, since time.Time) (int64, error) {
	db := r.getDB(ctx)
	var count int64
	err := db.Model(&models.Transaction{}).
		Where("user_id = ? AND created_at >= ?", userID, since).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// SumDeductionsSince totals deduction magnitudes committed at or after the given instant
func (r *TransactionRepositoryImpl) SumDeductionsSince(ctx context.Context, userID uint, since time.Time) (decimal.Decimal, error) {
	db := r.getDB(ctx)

	var row struct {
		Total decimal.Decimal
	}
	err := db.Model(&models.Transaction{}).
		Select("COALESCE(SUM(amount), 0) AS total").
		Where("user_id = ? AND type = ? AND created_at >= ?", userID, models.TransactionTypeDeduction, since).
		Scan(&row).Error
	if err != nil {
		return decimal.Zero, err
	}
	return row.Total, nil
}

// ByFilter retrieves transactions based on filter criteria
func (r *TransactionRepositoryImpl) ByFilter(ctx context.Context, filter models.TransactionFilter, orderBy string, limit, offset int) ([]*models.Transaction, error) {
	db := r.getDB(ctx)
	var transactions []*models.Transaction

	query := db.Model(&models.Transaction{})
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

	err := query.Find(&transactions).Error
	if err != nil {
		return nil, err
	}
	return transactions, nil
}

// Count returns the number of transactions matching the filter
func (r *TransactionRepositoryImpl) Count(ctx context.Context, filter models.TransactionFilter) (int64, error) {
	db := r.getDB(ctx)
	var count int64

	query := db.Model(&models.Transaction{})
	query = r.applyFilter(query, filter)

	err := query.Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any transaction matching the filter exists
func (r *TransactionRepositoryImpl) Exists(ctx context.Context, filter models.TransactionFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// applyFilter applies the filter to the query
func (r *TransactionRepositoryImpl) applyFilter(query *gorm.DB, filter models.TransactionFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.Type != nil {
		query = query.Where("type = ?", *filter.Type)
	}
	if filter.CallIDRef != nil {
		query = query.Where("call_id_ref = ?", *filter.CallIDRef)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at <= ?", *filter.CreatedBefore)
	}
	return query
}
