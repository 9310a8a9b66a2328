package repository

import (
	"context"

	"github.com/vocalix/vocalix/models"
	"gorm.io/gorm"
)

// AgentAssignmentRepositoryImpl implements AgentAssignmentRepository interface
type AgentAssignmentRepositoryImpl struct {
	*BaseRepository[models.AgentAssignment, models.AgentAssignmentFilter]
}

// NewAgentAssignmentRepository creates a new agent assignment repository
func NewAgentAssignmentRepository(db *gorm.DB) AgentAssignmentRepository {
	return &AgentAssignmentRepositoryImpl{
		BaseRepository: NewBaseRepository[models.AgentAssignment, models.AgentAssignmentFilter](db),
	}
}

// ListByUser returns all of a user's assignments ordered by assigned_at descending
func (r *AgentAssignmentRepositoryImpl) ListByUser(ctx context.Context, userID uint) ([]*models.AgentAssignment, error) {
	db := r.getDB(ctx)
	var assignments []*models.AgentAssignment
	err := db.Where("user_id = ?", userID).
		Order("assigned_at DESC, id DESC").
		Find(&assignments).Error
	if err != nil {
		return nil, err
	}
	return assignments, nil
}

// ByFilter retrieves agent assignments based on filter criteria
func (r *AgentAssignmentRepositoryImpl) ByFilter(ctx context.Context, filter models.AgentAssignmentFilter, orderBy string, limit, offset int) ([]*models.AgentAssignment, error) {
	db := r.getDB(ctx)
	var assignments []*models.AgentAssignment

	query := db.Model(&models.AgentAssignment{})
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

	err := query.Find(&assignments).Error
	if err != nil {
		return nil, err
	}
	return assignments, nil
}

// Count returns the number of agent assignments matching the filter
func (r *AgentAssignmentRepositoryImpl) Count(ctx context.Context, filter models.AgentAssignmentFilter) (int64, error) {
	db := r.getDB(ctx)
	var count int64

	query := db.Model(&models.AgentAssignment{})
	query = r.applyFilter(query, filter)

	err := query.Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any agent assignment matching the filter exists
func (r *AgentAssignmentRepositoryImpl) Exists(ctx context.Context, filter models.AgentAssignmentFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// applyFilter applies the filter to the query
func (r *AgentAssignmentRepositoryImpl) applyFilter(query *gorm.DB, filter models.AgentAssignmentFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.AgentID != nil {
		query = query.Where("agent_id = ?", *filter.AgentID)
	}
	if filter.TelephonyAgentID != nil {
		query = query.Where("telephony_agent_id = ?", *filter.TelephonyAgentID)
	}
	if filter.IsPrimary != nil {
		query = query.Where("is_primary = ?", *filter.IsPrimary)
	}
	return query
}
