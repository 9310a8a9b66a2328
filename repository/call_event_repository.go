package repository

import (
	"context"
	"errors"
	"time"

	"github.com/vocalix/vocalix/models"
	"gorm.io/gorm"
)

// CallEventRepositoryImpl implements CallEventRepository interface.
// The call event table belongs to the telephony platform, so this repository
// never writes to it.
type CallEventRepositoryImpl struct {
	db *gorm.DB
}

// NewCallEventRepository creates a new call event repository
func NewCallEventRepository(db *gorm.DB) CallEventRepository {
	return &CallEventRepositoryImpl{db: db}
}

// getDB returns the database instance from context if available, otherwise the default
func (r *CallEventRepositoryImpl) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(TxContextKey).(*gorm.DB); ok {
		return tx.WithContext(ctx)
	}
	return r.db.WithContext(ctx)
}

// ByCallID finds a call event by its platform call ID
func (r *CallEventRepositoryImpl) ByCallID(ctx context.Context, callID string) (*models.CallEvent, error) {
	db := r.getDB(ctx)
	var event models.CallEvent
	err := db.Where("call_id = ?", callID).Last(&event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &event, nil
}

// ListRecentByUser returns the user's call events whose timestamp falls at or
// after the given instant, oldest first so billing replays in call order
func (r *CallEventRepositoryImpl) ListRecentByUser(ctx context.Context, userID uint, since time.Time, limit int) ([]*models.CallEvent, error) {
	db := r.getDB(ctx)
	var events []*models.CallEvent

	query := db.Where("user_id = ? AND timestamp >= ?", userID, since).
		Order("timestamp ASC, id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	err := query.Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

// Count returns the number of call events matching the filter
func (r *CallEventRepositoryImpl) Count(ctx context.Context, filter models.CallEventFilter) (int64, error) {
	db := r.getDB(ctx)
	var count int64

	query := db.Model(&models.CallEvent{})
	query = r.applyFilter(query, filter)

	err := query.Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// applyFilter applies the filter to the query
func (r *CallEventRepositoryImpl) applyFilter(query *gorm.DB, filter models.CallEventFilter) *gorm.DB {
	if filter.CallID != nil {
		query = query.Where("call_id = ?", *filter.CallID)
	}
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.CallStatus != nil {
		query = query.Where("call_status = ?", *filter.CallStatus)
	}
	if filter.TimestampAfter != nil {
		query = query.Where("timestamp >= ?", *filter.TimestampAfter)
	}
	if filter.TimestampBefore != nil {
		query = query.Where("timestamp <= ?", *filter.TimestampBefore)
	}
	return query
}
