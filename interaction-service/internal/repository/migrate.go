package repository

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/weiawesome/wes-io-social/interaction-service/internal/domain"
	"github.com/weiawesome/wes-io-social/pkg/database"
)

// Migrate creates the interaction tables. On Postgres the counter table gets
// REPLICA IDENTITY FULL so CDC delete events carry the before-row.
func Migrate(db *gorm.DB) error {
	if err := database.AutoMigrate(db,
		&domain.InteractionModel{},
		&domain.CounterModel{},
		&domain.TargetModel{},
	); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}

	if db.Dialector.Name() == "postgres" {
		if err := db.Exec(`ALTER TABLE interaction_counters REPLICA IDENTITY FULL`).Error; err != nil {
			return fmt.Errorf("set replica identity on interaction_counters: %w", err)
		}
	}
	return nil
}
