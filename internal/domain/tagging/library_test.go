package tagging

import (
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/aoa-dev/aoa/internal/domain/entity"
)

func TestLibraryStore_SwapReplacesLiveLibraryAndReverseIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "patterns.json")
	store := NewLibraryStore(path, zap.NewNop())
	store.Swap(map[string]map[string][]string{
		"coding": {"log": {"log"}},
	})

	if _, ok := store.Library().Reverse()["log"]; !ok {
		t.Fatalf("expected reverse index to contain 'log' before prune")
	}

	store.Swap(map[string]map[string][]string{
		"coding": {},
	})

	if _, ok := store.Library().Reverse()["log"]; ok {
		t.Errorf("expected reverse index to no longer contain pruned term 'log'")
	}
}

func TestLibraryStore_SwapThenInferNoLongerTagsPrunedTerm(t *testing.T) {
	path := filepath.Join(t.TempDir(), "patterns.json")
	store := NewLibraryStore(path, zap.NewNop())
	store.Swap(map[string]map[string][]string{
		"coding": {"log": {"log"}},
	})

	rec := entity.IntentRecord{ToolName: "Read", Files: []string{"/repo/logger.go"}}
	before := Infer(rec, store.Library(), nil)
	if !contains(before, "#coding") {
		t.Fatalf("expected #coding tag before pruning, got %v", before)
	}

	store.Swap(map[string]map[string][]string{
		"coding": {},
	})

	after := Infer(rec, store.Library(), nil)
	if contains(after, "#coding") {
		t.Errorf("expected pruned term to stop contributing #coding, got %v", after)
	}
}
