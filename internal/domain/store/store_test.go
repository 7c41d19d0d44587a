package store

import (
	"context"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/aoa-dev/aoa/internal/domain/entity"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "intent_store.json")
	return New(path, 500, nil, zap.NewNop())
}

func TestStore_AppendThenRecentSeesIt(t *testing.T) {
	s := newTestStore(t)
	rec := entity.IntentRecord{ProjectID: "p1", Timestamp: 1, Files: []string{"/repo/a.go"}, Tags: []string{"#coding"}}

	s.Append(context.Background(), rec)

	recent := s.Recent(10, "")
	if len(recent) != 1 || recent[0].Files[0] != "/repo/a.go" {
		t.Fatalf("unexpected recent: %v", recent)
	}
}

func TestStore_FileCountsExcludeMetaTokens(t *testing.T) {
	s := newTestStore(t)
	s.Append(context.Background(), entity.IntentRecord{
		Files: []string{"/repo/a.go", "pattern:*.go", "cmd:aoa:indexed:x:1:1"},
	})

	stats := s.Stats()
	if stats.UniqueFiles != 1 {
		t.Errorf("expected 1 unique file, got %d", stats.UniqueFiles)
	}
}

func TestStore_RespectsMaxRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "intent_store.json")
	s := New(path, 3, nil, zap.NewNop())

	for i := 0; i < 5; i++ {
		s.Append(context.Background(), entity.IntentRecord{Timestamp: int64(i)})
	}

	if got := s.Stats().TotalRecords; got != 3 {
		t.Errorf("expected truncation to 3 records, got %d", got)
	}
}

func TestStore_TagCountMatchesRetainedRecords(t *testing.T) {
	s := newTestStore(t)
	s.Append(context.Background(), entity.IntentRecord{Tags: []string{"#a", "#b"}})
	s.Append(context.Background(), entity.IntentRecord{Tags: []string{"#a"}})

	stats := s.Stats()
	found := false
	for _, tc := range stats.TopTags {
		if tc.Tag == "#a" && tc.Count == 2 {
			found = true
		}
	}
	if !found {
		t.Errorf("expected #a count 2, got %v", stats.TopTags)
	}
}

func TestStore_FilesByTag(t *testing.T) {
	s := newTestStore(t)
	s.Append(context.Background(), entity.IntentRecord{Files: []string{"/repo/a.go"}, Tags: []string{"#cache"}})

	files := s.FilesByTag("#cache", 10)
	if len(files) != 1 || files[0].Path != "/repo/a.go" {
		t.Fatalf("unexpected files: %v", files)
	}
}

func TestStore_ReloadFromDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "intent_store.json")
	s1 := New(path, 500, nil, zap.NewNop())
	s1.Append(context.Background(), entity.IntentRecord{Files: []string{"/repo/a.go"}})

	s2 := New(path, 500, nil, zap.NewNop())
	if got := s2.Stats().TotalRecords; got != 1 {
		t.Errorf("expected reloaded store to have 1 record, got %d", got)
	}
}
