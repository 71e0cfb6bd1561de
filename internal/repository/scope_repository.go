package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"reporting-service/internal/apperr"
)

// ScopeRepository resolves the permitted dealership set for
// dealership-restricted callers from the permissions store. Tokens may omit
// the set; the store is the source of truth.
type ScopeRepository struct {
	db *gorm.DB
}

func NewScopeRepository(db *gorm.DB) *ScopeRepository {
	return &ScopeRepository{db: db}
}

func (r *ScopeRepository) PermittedDealerships(ctx context.Context, tenantID, userID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Table("user_dealerships ud").
		Select("ud.dealership_id").
		Where("ud.tenant_id = ? AND ud.user_id = ?", tenantID, userID).
		Scan(&ids).Error
	if err != nil {
		return nil, apperr.Classify(err)
	}
	return ids, nil
}
