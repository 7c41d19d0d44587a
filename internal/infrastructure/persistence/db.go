package persistence

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/aoa-dev/aoa/internal/infrastructure/config"
)

// EvaluatedPrediction is the durable record of a PredictionLog entry after
// it has been checked (hit, or expired as a miss). The hot, unevaluated
// rolling window never touches this table — only SPEC_FULL.md §9 Open
// Question (b)'s offline-analysis archive does.
type EvaluatedPrediction struct {
	ID            uint   `gorm:"primaryKey"`
	SessionID     string `gorm:"index"`
	Trigger       string
	Predicted     string // newline-joined file tokens
	TagsUsed      string // comma-joined tags
	AvgConfidence float64
	Hit           bool
	IssuedAt      time.Time
	EvaluatedAt   time.Time
}

// NewDBConnection opens the evaluated-prediction archive database. Returns
// (nil, nil) when cfg.Type is empty, meaning the archive is disabled and
// the tracker keeps no durable history — a supported configuration per
// SPEC_FULL.md §2.1.
func NewDBConnection(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	if cfg.Type == "" {
		return nil, nil
	}

	var dialector gorm.Dialector
	switch cfg.Type {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to archive database: %w", err)
	}

	if err := db.AutoMigrate(&EvaluatedPrediction{}); err != nil {
		return nil, fmt.Errorf("migrate archive database: %w", err)
	}

	return db, nil
}
