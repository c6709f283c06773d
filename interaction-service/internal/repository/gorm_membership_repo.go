package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/weiawesome/wes-io-social/interaction-service/internal/domain"
)

// GormMembershipRepository implements MembershipRepository using GORM.
type GormMembershipRepository struct {
	db *gorm.DB
}

// NewGormMembershipRepository creates a new GORM-backed membership repository.
func NewGormMembershipRepository(db *gorm.DB) *GormMembershipRepository {
	return &GormMembershipRepository{db: db}
}

func memberScope(actorID, targetID string, kind domain.InteractionKind) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("actor_id = ? AND target_id = ? AND kind = ?", actorID, targetID, string(kind))
	}
}

// Exists reports whether the actor currently has the interaction on the target.
func (r *GormMembershipRepository) Exists(ctx context.Context, actorID, targetID string, kind domain.InteractionKind) (bool, error) {
	var count int64
	err := conn(ctx, r.db).Model(&domain.InteractionModel{}).
		Scopes(memberScope(actorID, targetID, kind)).
		Count(&count).Error
	if err != nil {
		return false, classify("membership exists", err)
	}
	return count > 0, nil
}

// Insert creates the membership record. A concurrent insert of the same
// triple surfaces as ErrConflict via the unique index.
func (r *GormMembershipRepository) Insert(ctx context.Context, rec domain.MembershipRecord) error {
	model := domain.InteractionModel{
		ActorID:   rec.ActorID,
		TargetID:  rec.TargetID,
		Kind:      string(rec.Kind),
		CreatedAt: rec.CreatedAt,
	}
	if err := conn(ctx, r.db).Create(&model).Error; err != nil {
		return classify("membership insert", err)
	}
	return nil
}

// Delete hard-deletes the membership record. Deleting a record that a
// concurrent writer already removed reports ErrConflict.
func (r *GormMembershipRepository) Delete(ctx context.Context, actorID, targetID string, kind domain.InteractionKind) error {
	result := conn(ctx, r.db).
		Scopes(memberScope(actorID, targetID, kind)).
		Delete(&domain.InteractionModel{})
	if result.Error != nil {
		return classify("membership delete", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("membership delete: %w: record vanished", ErrConflict)
	}
	return nil
}

// BatchExists checks the actor's membership for each target.
func (r *GormMembershipRepository) BatchExists(ctx context.Context, actorID string, kind domain.InteractionKind, targetIDs []string) (map[string]bool, error) {
	result := make(map[string]bool, len(targetIDs))
	for _, id := range targetIDs {
		result[id] = false
	}

	if len(targetIDs) == 0 {
		return result, nil
	}

	var ids []string
	err := conn(ctx, r.db).Model(&domain.InteractionModel{}).
		Where("actor_id = ? AND kind = ? AND target_id IN ?", actorID, string(kind), targetIDs).
		Pluck("target_id", &ids).Error
	if err != nil {
		return nil, classify("membership batch exists", err)
	}

	for _, id := range ids {
		result[id] = true
	}
	return result, nil
}

// CountByTarget counts membership records; used only for drift audits.
func (r *GormMembershipRepository) CountByTarget(ctx context.Context, targetID string, kind domain.InteractionKind) (int64, error) {
	var count int64
	err := conn(ctx, r.db).Model(&domain.InteractionModel{}).
		Where("target_id = ? AND kind = ?", targetID, string(kind)).
		Count(&count).Error
	if err != nil {
		return 0, classify("membership count", err)
	}
	return count, nil
}

var _ MembershipRepository = (*GormMembershipRepository)(nil)
