// Package app wires the seven core components into one orchestrating
// Service and owns the process lifecycle, adapted from the teacher's
// application/app.go + usecase layer.
package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/aoa-dev/aoa/internal/domain/entity"
	"github.com/aoa-dev/aoa/internal/domain/learner"
	"github.com/aoa-dev/aoa/internal/domain/predictor"
	"github.com/aoa-dev/aoa/internal/domain/record"
	"github.com/aoa-dev/aoa/internal/domain/store"
	"github.com/aoa-dev/aoa/internal/domain/tagging"
	"github.com/aoa-dev/aoa/internal/domain/tracker"
	"github.com/aoa-dev/aoa/internal/infrastructure/eventbus"
	apperrors "github.com/aoa-dev/aoa/pkg/errors"
)

// Service orchestrates the intent pipeline: parse -> tag -> store -> track
// -> learn. It is the single object the HTTP facade (C7) and the CLI talk
// to; none of the component packages know about each other directly.
type Service struct {
	store   *store.Store
	library *tagging.LibraryStore
	tracker *tracker.Tracker
	learner *learner.Learner
	bus     eventbus.Bus
	logger  *zap.Logger
}

// NewService constructs a Service from its already-built components.
func NewService(st *store.Store, lib *tagging.LibraryStore, tr *tracker.Tracker, ln *learner.Learner, bus eventbus.Bus, logger *zap.Logger) *Service {
	return &Service{
		store:   st,
		library: lib,
		tracker: tr,
		learner: ln,
		bus:     bus,
		logger:  logger,
	}
}

// AppendIntent runs one envelope through the full C1->C2->C3->C5->C6
// pipeline and returns the normalized record actually stored.
func (s *Service) AppendIntent(ctx context.Context, env record.Envelope) (entity.IntentRecord, error) {
	rec, searchTags := record.Parse(env, time.Now().Unix())
	if rec.SessionID == "" || rec.ProjectID == "" {
		return entity.IntentRecord{}, apperrors.NewInvalidInputError("session_id and project_id are required")
	}

	rec.Tags = tagging.Infer(rec, s.library.Library(), searchTags)

	s.store.Append(ctx, rec)
	s.tracker.OnFileAccessed(ctx, rec)
	s.learner.OnAppend(rec, s.knownDomainTags())

	return rec, nil
}

// Recent returns the newest records for projectID (empty = all projects)
// plus the current aggregate stats.
func (s *Service) Recent(limit int, projectID string) ([]entity.IntentRecord, store.Stats) {
	return s.store.Recent(limit, projectID), s.store.Stats()
}

// Predict ranks files for keywords using the store's current snapshot.
func (s *Service) Predict(keywords []string, limit, snippetLines int) []predictor.Candidate {
	opts := predictor.Options{Limit: limit, SnippetLines: snippetLines}
	return predictor.Predict(s.store.Snapshot(), keywords, time.Now(), opts)
}

// LogPrediction records an outstanding prediction for later hit/miss
// evaluation.
func (s *Service) LogPrediction(ctx context.Context, sessionID, trigger string, predicted, tags []string, avgConfidence float64) entity.PredictionLogEntry {
	return s.tracker.Log(ctx, sessionID, trigger, predicted, tags, avgConfidence)
}

// CheckPrediction credits an access against any outstanding prediction.
func (s *Service) CheckPrediction(ctx context.Context, sessionID, file string) {
	s.tracker.Check(ctx, sessionID, file)
}

// Metrics returns the tracker's rolling accuracy summary.
func (s *Service) Metrics() tracker.Metrics {
	return s.tracker.Metrics()
}

// DomainStats returns the learner's current counters.
func (s *Service) DomainStats() learner.Stats {
	return s.learner.Stats()
}

// Orphans returns up to limit orphan tags.
func (s *Service) Orphans(limit int) []string {
	return s.learner.Orphans(limit)
}

// Domains returns up to limit active domains.
func (s *Service) Domains(limit int) []entity.Domain {
	return s.learner.Domains(limit)
}

// AddDomains validates and accepts proposed domains, then swaps them into
// the live pattern library so future tagging sees them immediately.
func (s *Service) AddDomains(proposed []learner.ProposedDomain) error {
	if err := s.learner.Add(proposed); err != nil {
		return apperrors.NewInvalidInputError(err.Error())
	}

	libDomains := make([]tagging.ProposedDomain, 0, len(proposed))
	for _, p := range proposed {
		libDomains = append(libDomains, tagging.ProposedDomain{Name: p.Name, Terms: p.Terms})
	}
	s.library.MergeDomains(libDomains)
	s.learner.ClearLearningPending()
	return nil
}

// ClearLearningPending clears the pending flag without accepting domains,
// e.g. when an operator decides not to act on the current snapshot.
func (s *Service) ClearLearningPending() {
	s.learner.ClearLearningPending()
}

// RunMathTuning triggers the periodic tuning pass on demand (§6
// /domains/tune/math), operating on the live library and current snapshot.
// When terms were pruned, the pruned copy is swapped into the live
// LibraryStore so subsequent /intent appends stop matching them
// immediately (§8 scenario 6).
func (s *Service) RunMathTuning() learner.TuneResult {
	lib := s.library.Library()
	result, pruned := s.learner.RunMathTuning(s.store.Snapshot(), lib)
	if pruned != nil {
		s.library.Swap(pruned)
	}
	return result
}

// LearningSnapshot returns the frozen activity summary for external domain
// synthesis while learning is pending.
func (s *Service) LearningSnapshot(limit int) learner.ActivitySnapshot {
	recent := s.store.Recent(limit, "")
	return s.learner.Snapshot(recent)
}

func (s *Service) knownDomainTags() map[string]bool {
	known := map[string]bool{}
	if lib := s.library.Library(); lib != nil {
		for domain := range lib.Domains {
			known["#"+domain] = true
		}
	}
	for _, d := range s.learner.Domains(1000) {
		name := d.Name
		if len(name) > 0 && name[0] == '@' {
			name = name[1:]
		}
		known["#"+name] = true
	}
	return known
}
