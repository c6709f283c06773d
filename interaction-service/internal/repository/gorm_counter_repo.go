package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/weiawesome/wes-io-social/interaction-service/internal/domain"
)

// GormCounterRepository implements CounterRepository using GORM.
type GormCounterRepository struct {
	db *gorm.DB
}

// NewGormCounterRepository creates a new GORM-backed counter repository.
func NewGormCounterRepository(db *gorm.DB) *GormCounterRepository {
	return &GormCounterRepository{db: db}
}

// IncrementAtomic upserts the counter row:
//
//	INSERT ... VALUES (target, kind, 1, 1)
//	ON CONFLICT (target_id, kind) DO UPDATE SET value = value + 1, version = version + 1
func (r *GormCounterRepository) IncrementAtomic(ctx context.Context, targetID string, kind domain.InteractionKind) (bool, error) {
	now := time.Now()
	model := domain.CounterModel{
		TargetID:  targetID,
		Kind:      string(kind),
		Value:     1,
		Version:   1,
		UpdatedAt: now,
	}

	result := conn(ctx, r.db).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "target_id"}, {Name: "kind"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"value":      gorm.Expr("interaction_counters.value + 1"),
			"version":    gorm.Expr("interaction_counters.version + 1"),
			"updated_at": now,
		}),
	}).Create(&model)
	if result.Error != nil {
		return false, classify("counter increment", result.Error)
	}
	return true, nil
}

// DecrementAtomic subtracts one unless the counter is already at zero.
func (r *GormCounterRepository) DecrementAtomic(ctx context.Context, targetID string, kind domain.InteractionKind) (bool, error) {
	result := conn(ctx, r.db).Model(&domain.CounterModel{}).
		Where("target_id = ? AND kind = ? AND value > 0", targetID, string(kind)).
		Updates(map[string]interface{}{
			"value":      gorm.Expr("value - 1"),
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return false, classify("counter decrement", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// Read returns the counter value, 0 when no row exists.
func (r *GormCounterRepository) Read(ctx context.Context, targetID string, kind domain.InteractionKind) (int64, error) {
	agg, err := r.ReadAggregate(ctx, targetID, kind)
	if err != nil {
		return 0, err
	}
	return agg.Value, nil
}

// ReadAggregate returns value and version, zeroes when no row exists.
func (r *GormCounterRepository) ReadAggregate(ctx context.Context, targetID string, kind domain.InteractionKind) (domain.CounterAggregate, error) {
	agg := domain.CounterAggregate{TargetID: targetID, Kind: kind}

	var model domain.CounterModel
	err := conn(ctx, r.db).
		Where("target_id = ? AND kind = ?", targetID, string(kind)).
		Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return agg, nil
		}
		return agg, classify("counter read", err)
	}

	agg.Value = model.Value
	agg.Version = model.Version
	return agg, nil
}

var _ CounterRepository = (*GormCounterRepository)(nil)
