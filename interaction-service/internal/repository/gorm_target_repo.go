package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/weiawesome/wes-io-social/interaction-service/internal/domain"
)

// GormTargetRepository implements TargetRepository using GORM.
type GormTargetRepository struct {
	db *gorm.DB
}

// NewGormTargetRepository creates a new GORM-backed target repository.
func NewGormTargetRepository(db *gorm.DB) *GormTargetRepository {
	return &GormTargetRepository{db: db}
}

// OwnerOf returns the owner of the target.
func (r *GormTargetRepository) OwnerOf(ctx context.Context, targetID string) (string, error) {
	t, err := r.Get(ctx, targetID)
	if err != nil {
		return "", err
	}
	return t.OwnerID, nil
}

// Get loads a target by ID.
func (r *GormTargetRepository) Get(ctx context.Context, targetID string) (*domain.Target, error) {
	var model domain.TargetModel
	err := conn(ctx, r.db).Where("id = ?", targetID).Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, targetID)
		}
		return nil, classify("target get", err)
	}
	return toTarget(model), nil
}

// Upsert registers a target or updates its owner and type.
func (r *GormTargetRepository) Upsert(ctx context.Context, target domain.Target) (*domain.Target, error) {
	now := time.Now()
	model := domain.TargetModel{
		ID:        target.ID,
		OwnerID:   target.OwnerID,
		Type:      target.Type,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := conn(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"owner_id", "type", "updated_at"}),
	}).Create(&model).Error
	if err != nil {
		return nil, classify("target upsert", err)
	}

	return r.Get(ctx, target.ID)
}

func toTarget(m domain.TargetModel) *domain.Target {
	return &domain.Target{
		ID:        m.ID,
		OwnerID:   m.OwnerID,
		Type:      m.Type,
		CreatedAt: m.CreatedAt,
	}
}

var _ TargetRepository = (*GormTargetRepository)(nil)
