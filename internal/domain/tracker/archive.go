package tracker

import (
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/aoa-dev/aoa/internal/domain/entity"
	"github.com/aoa-dev/aoa/internal/infrastructure/persistence"
)

// GormArchiver persists evaluated predictions to the optional durability
// database described in SPEC_FULL.md §2.1 / §9 Open Question (b). It
// implements Archiver.
type GormArchiver struct {
	db *gorm.DB
}

// NewGormArchiver wraps db. Passing a nil db yields a no-op archiver so
// callers can construct one unconditionally and let config decide whether
// archiving is active.
func NewGormArchiver(db *gorm.DB) *GormArchiver {
	return &GormArchiver{db: db}
}

// Archive writes one evaluated prediction row. A nil underlying db makes
// this a no-op, matching the "archive disabled" configuration.
func (a *GormArchiver) Archive(entry entity.PredictionLogEntry) error {
	if a == nil || a.db == nil {
		return nil
	}
	row := persistence.EvaluatedPrediction{
		SessionID:     entry.SessionID,
		Trigger:       entry.Trigger,
		Predicted:     strings.Join(entry.Predicted, "\n"),
		TagsUsed:      strings.Join(entry.TagsUsed, ","),
		AvgConfidence: entry.AvgConfidence,
		Hit:           entry.Hits > 0,
		IssuedAt:      entry.IssuedAt,
		EvaluatedAt:   time.Now(),
	}
	return a.db.Create(&row).Error
}
