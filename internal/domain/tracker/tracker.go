// Package tracker implements C5, the Hit/Miss Tracker: it logs every
// prediction, credits hits against outstanding predictions as later
// records access predicted files, and maintains rolling-window accuracy,
// per SPEC_FULL.md §4.5.
package tracker

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/aoa-dev/aoa/internal/domain/entity"
	"github.com/aoa-dev/aoa/internal/infrastructure/eventbus"
	"github.com/aoa-dev/aoa/pkg/safego"
)

// RollingWindowSize is M, the number of evaluated predictions retained for
// rolling accuracy (§4.5).
const RollingWindowSize = 50

// MinEvaluatedForMetrics is the threshold below which metrics report
// "calibrating" instead of a real percentage (§4.5, §8).
const MinEvaluatedForMetrics = 3

// TopKForHitAt5 is the number of top predicted paths considered for
// hit_at_5_pct (§4.5).
const TopKForHitAt5 = 5

// Metrics is the rolling-window summary returned by Metrics().
type Metrics struct {
	Calibrating bool    `json:"-"`
	HitAt5Pct   float64 `json:"hit_at_5_pct"`
	Evaluated   int     `json:"evaluated"`
}

// Archiver persists evaluated predictions for offline analysis; the
// in-memory rolling window is authoritative for hot-path metrics (§9 Open
// Question (b)). A nil Archiver disables archiving.
type Archiver interface {
	Archive(entry entity.PredictionLogEntry) error
}

// Tracker owns the PredictionLog and the rolling evaluated-prediction
// window behind its own lock, kept separate from the Intent Store's lock
// to avoid contention with hot appends (§5).
type Tracker struct {
	mu sync.Mutex

	outstanding map[string][]*entity.PredictionLogEntry // session_id -> entries
	window      []bool                                  // true = hit-at-5, oldest first
	evaluated   int

	archiver Archiver
	bus      eventbus.Bus
	logger   *zap.Logger

	predictionWindow time.Duration
}

// New constructs a Tracker. archiver may be nil to disable the durable
// archive.
func New(predictionWindow time.Duration, archiver Archiver, bus eventbus.Bus, logger *zap.Logger) *Tracker {
	return &Tracker{
		outstanding:      map[string][]*entity.PredictionLogEntry{},
		archiver:         archiver,
		bus:              bus,
		logger:           logger,
		predictionWindow: predictionWindow,
	}
}

// Log records a new outstanding prediction (§4.5 first paragraph).
func (t *Tracker) Log(ctx context.Context, sessionID, trigger string, predicted, tagsUsed []string, avgConfidence float64) entity.PredictionLogEntry {
	now := time.Now()
	entry := &entity.PredictionLogEntry{
		SessionID:     sessionID,
		Trigger:       trigger,
		Predicted:     predicted,
		TagsUsed:      tagsUsed,
		AvgConfidence: avgConfidence,
		IssuedAt:      now,
		ExpiresAt:     now.Add(t.predictionWindow),
	}

	t.mu.Lock()
	t.outstanding[sessionID] = append(t.outstanding[sessionID], entry)
	t.mu.Unlock()

	if t.bus != nil {
		t.bus.Publish(ctx, eventbus.NewEvent(eventbus.EventTypePredictionLogged,
			eventbus.PredictionLoggedPayload{Entry: *entry}))
	}

	return *entry
}

// Check credits file as a hit against every outstanding, unexpired
// prediction for sessionID that named it (§4.5 second paragraph). A file
// counts as a hit at most once per log entry — MarkHit enforces this, which
// also gives the idempotence property required by §8.
func (t *Tracker) Check(ctx context.Context, sessionID, file string) {
	normalized := stripRange(file)

	t.mu.Lock()
	entries := t.outstanding[sessionID]
	now := time.Now()
	var hit bool
	for _, e := range entries {
		if e.Expired(now) {
			continue
		}
		for _, p := range e.Predicted {
			if stripRange(p) == normalized {
				if e.MarkHit(normalized) {
					hit = true
				}
				break
			}
		}
	}
	t.mu.Unlock()

	if t.bus != nil && hit {
		t.bus.Publish(ctx, eventbus.NewEvent(eventbus.EventTypePredictionChecked,
			eventbus.PredictionCheckedPayload{SessionID: sessionID, Hit: true}))
	}
}

// OnFileAccessed is the Intent Store's integration point (§4.5): for every
// file-accessing record, it checks each file token other than pattern: and
// cmd: tokens against the outstanding predictions of the record's own
// session.
func (t *Tracker) OnFileAccessed(ctx context.Context, rec entity.IntentRecord) {
	if !entity.IsFileAccessingTool(rec.ToolName) {
		return
	}
	for _, f := range rec.Files {
		if strings.HasPrefix(f, "pattern:") || strings.HasPrefix(f, "cmd:") {
			continue
		}
		t.Check(ctx, rec.SessionID, f)
	}
}

// Sweep evaluates and removes every outstanding entry past its expiry,
// folding its stats into the rolling window and the archive. Meant to be
// run periodically from a safego-wrapped goroutine (StartSweeper) and once
// more on shutdown for a final flush (§4.5, §5).
func (t *Tracker) Sweep(now time.Time) {
	t.mu.Lock()
	var toEvaluate []*entity.PredictionLogEntry
	for sessionID, entries := range t.outstanding {
		var remaining []*entity.PredictionLogEntry
		for _, e := range entries {
			if e.Expired(now) {
				toEvaluate = append(toEvaluate, e)
			} else {
				remaining = append(remaining, e)
			}
		}
		if len(remaining) == 0 {
			delete(t.outstanding, sessionID)
		} else {
			t.outstanding[sessionID] = remaining
		}
	}
	for _, e := range toEvaluate {
		t.recordEvaluationLocked(*e)
	}
	t.mu.Unlock()

	for _, e := range toEvaluate {
		if t.archiver != nil {
			if err := t.archiver.Archive(*e); err != nil {
				t.logger.Warn("prediction archive write failed", zap.Error(err))
			}
		}
	}
}

// recordEvaluationLocked folds one evaluated entry into the rolling window.
// Must be called with t.mu held.
func (t *Tracker) recordEvaluationLocked(e entity.PredictionLogEntry) {
	hitAt5 := hitAtK(e, TopKForHitAt5)

	t.window = append(t.window, hitAt5)
	if len(t.window) > RollingWindowSize {
		t.window = t.window[len(t.window)-RollingWindowSize:]
	}
	t.evaluated++
}

// hitAtK reports whether any of the entry's first k predicted paths was
// itself credited as a hit (§4.5's "at least one hit among the top 5
// predicted paths"). e.Hits alone isn't enough: it counts hits across the
// whole Predicted list, so a hit beyond position k would be miscredited
// for lists longer than k.
func hitAtK(e entity.PredictionLogEntry, k int) bool {
	top := e.Predicted
	if len(top) > k {
		top = top[:k]
	}
	for _, p := range top {
		if e.Checked(stripRange(p)) {
			return true
		}
	}
	return false
}

// Metrics returns the current rolling accuracy summary (§4.5, §8).
func (t *Tracker) Metrics() Metrics {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.window) < MinEvaluatedForMetrics {
		return Metrics{Calibrating: true, Evaluated: len(t.window)}
	}

	hits := 0
	for _, h := range t.window {
		if h {
			hits++
		}
	}
	return Metrics{
		HitAt5Pct: float64(hits) / float64(len(t.window)),
		Evaluated: len(t.window),
	}
}

// StartSweeper launches a periodic sweep, panic-safe via safego.Go, and
// stops when ctx is canceled — performing one final flush first (§4.5
// "honors a shutdown signal and performs a final flush").
func (t *Tracker) StartSweeper(ctx context.Context, interval time.Duration) {
	safego.Go(t.logger, "tracker-sweeper", func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				t.Sweep(time.Now())
			case <-ctx.Done():
				t.Sweep(time.Now())
				return
			}
		}
	})
}

func stripRange(token string) string {
	idx := strings.LastIndex(token, ":")
	if idx <= 0 {
		return token
	}
	suffix := token[idx+1:]
	if suffix == "" {
		return token
	}
	trimmed := strings.TrimSuffix(suffix, "+")
	for _, r := range trimmed {
		if (r < '0' || r > '9') && r != '-' {
			return token
		}
	}
	return token[:idx]
}
