package learner

import (
	"testing"

	"github.com/aoa-dev/aoa/internal/domain/entity"
	"github.com/aoa-dev/aoa/internal/domain/store"
)

func TestLearner_LearningPendingAfterThresholds(t *testing.T) {
	l := New("")
	l.learnThreshold = 3
	l.orphanTagThreshold = 2

	l.OnAppend(entity.IntentRecord{Tags: []string{"#orphan-a"}}, map[string]bool{})
	l.OnAppend(entity.IntentRecord{Tags: []string{"#orphan-b"}}, map[string]bool{})
	if l.LearningPending() {
		t.Fatalf("should not be pending before since_last_cycle threshold reached")
	}
	l.OnAppend(entity.IntentRecord{Tags: []string{"#orphan-b"}}, map[string]bool{})

	if !l.LearningPending() {
		t.Errorf("expected learning_pending=true once both thresholds are met")
	}
}

func TestLearner_KnownTagsNeverBecomeOrphans(t *testing.T) {
	l := New("")
	known := map[string]bool{"#coding": true}

	l.OnAppend(entity.IntentRecord{Tags: []string{"#coding"}}, known)

	if len(l.state.OrphanTags) != 0 {
		t.Errorf("expected no orphan tags, got %v", l.state.OrphanTags)
	}
}

func TestLearner_AddRejectsBadName(t *testing.T) {
	l := New("")
	err := l.Add([]ProposedDomain{{Name: "Caching", Terms: []string{"lru", "ttl", "cache"}}})
	if err == nil {
		t.Fatalf("expected validation error for non-@ name")
	}
}

func TestLearner_AddRejectsTermCountOutOfRange(t *testing.T) {
	l := New("")
	err := l.Add([]ProposedDomain{{Name: "@caching", Terms: []string{"lru", "ttl"}}})
	if err == nil {
		t.Fatalf("expected validation error for too few terms")
	}
}

func TestLearner_AddRejectsDuplicateTerms(t *testing.T) {
	l := New("")
	if err := l.Add([]ProposedDomain{{Name: "@caching", Terms: []string{"lru", "ttl", "cache"}}}); err != nil {
		t.Fatalf("unexpected error on first add: %v", err)
	}
	err := l.Add([]ProposedDomain{{Name: "@memoization", Terms: []string{"lru", "memo", "fast"}}})
	if err == nil {
		t.Fatalf("expected validation error for term reused across domains")
	}
}

func TestLearner_AddAcceptsValidProposal(t *testing.T) {
	l := New("")
	err := l.Add([]ProposedDomain{{Name: "@caching", Terms: []string{"lru", "ttl", "cache"}}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	domains := l.Domains(10)
	if len(domains) != 1 || domains[0].Name != "@caching" {
		t.Errorf("expected domain @caching to be active, got %+v", domains)
	}
}

func TestLearner_RunMathTuningPrunesOverBroadTerms(t *testing.T) {
	l := New("")
	lib := entity.NewPatternLibrary(map[string]map[string][]string{
		"coding": {"log": []string{"log"}},
	})

	snap := store.Snapshot{
		TotalRecords: 10,
		FileCounts: map[string]int{
			"/repo/logger.go": 1,
			"/repo/syslog.go": 1,
			"/repo/login.go":  1,
			"/repo/logout.go": 1,
		},
	}

	result, pruned := l.RunMathTuning(snap, lib)

	if result.TermsPruned < 1 {
		t.Errorf("expected at least one term pruned for an over-broad match rate, got %+v", result)
	}
	if pruned == nil {
		t.Fatalf("expected a non-nil pruned domain copy when terms were pruned")
	}
	if _, ok := pruned["coding"]["log"]; ok {
		t.Errorf("expected pruned copy to drop the over-broad term, got %+v", pruned)
	}
	if _, ok := lib.Domains["coding"]["log"]; !ok {
		t.Errorf("expected the live library passed in to be left untouched, got %+v", lib.Domains)
	}
}

func TestLearner_RunMathTuningReturnsNilWhenNothingPruned(t *testing.T) {
	l := New("")
	lib := entity.NewPatternLibrary(map[string]map[string][]string{
		"coding": {"rarezzz": []string{"rarezzz"}},
	})
	snap := store.Snapshot{TotalRecords: 10, FileCounts: map[string]int{"/repo/a.go": 1}}

	result, pruned := l.RunMathTuning(snap, lib)

	if result.TermsPruned != 0 {
		t.Errorf("expected no terms pruned, got %+v", result)
	}
	if pruned != nil {
		t.Errorf("expected nil pruned copy when nothing was pruned, got %+v", pruned)
	}
}

func TestLearner_RunMathTuningDeprecatesStaleDomains(t *testing.T) {
	l := New("")
	_ = l.Add([]ProposedDomain{{Name: "@unused", Terms: []string{"zzqqxx", "wwvvyy", "ppooii"}}})

	snap := store.Snapshot{TotalRecords: 5, FileCounts: map[string]int{"/repo/a.go": 1}}

	l.RunMathTuning(snap, nil)
	second, _ := l.RunMathTuning(snap, nil)

	if second.DomainsDeprecated != 1 {
		t.Errorf("expected domain deprecated after two stale cycles, got %+v", second)
	}
	if len(l.Domains(10)) != 0 {
		t.Errorf("expected no active domains after deprecation")
	}
}

func TestLearner_ClearLearningPendingResetsCounters(t *testing.T) {
	l := New("")
	l.learnThreshold = 1
	l.orphanTagThreshold = 1
	l.OnAppend(entity.IntentRecord{Tags: []string{"#orphan"}}, map[string]bool{})

	if !l.LearningPending() {
		t.Fatalf("expected learning_pending=true before clearing")
	}

	l.ClearLearningPending()

	if l.LearningPending() {
		t.Errorf("expected learning_pending=false after clearing")
	}
	if l.state.SinceLastCycle != 0 {
		t.Errorf("expected since_last_cycle reset, got %d", l.state.SinceLastCycle)
	}
}
