package predictor

import (
	"testing"
	"time"

	"github.com/aoa-dev/aoa/internal/domain/store"
)

func TestExtractKeywords_DropsStopwordsAndShortTokens(t *testing.T) {
	kws := ExtractKeywords("can you please fix the cache bug in lru.go")
	if contains(kws, "the") || contains(kws, "in") {
		t.Errorf("stopwords leaked into keywords: %v", kws)
	}
	if !contains(kws, "cache") {
		t.Errorf("expected 'cache' keyword, got %v", kws)
	}
	if !contains(kws, "lru") {
		t.Errorf("expected file-like fragment 'lru', got %v", kws)
	}
}

func TestPredict_MinimumDataGate(t *testing.T) {
	snap := store.Snapshot{TotalRecords: 4, FileCounts: map[string]int{"/repo/a.go": 10}}
	got := Predict(snap, []string{"cache"}, time.Now(), Options{})
	if got != nil {
		t.Errorf("expected nil below minimum-data gate, got %v", got)
	}
}

func TestPredict_DirectMatchYieldsConfidenceOne(t *testing.T) {
	snap := store.Snapshot{
		TotalRecords: 10,
		FileCounts:   map[string]int{"/repo/cache/lru.go": 10},
		FileTags:     map[string]map[string]bool{"/repo/cache/lru.go": {"#caching": true}},
		LastAccess:   map[string]int64{"/repo/cache/lru.go": time.Now().Unix()},
	}

	got := Predict(snap, []string{"cache"}, time.Now(), Options{})

	if len(got) != 1 {
		t.Fatalf("expected 1 candidate, got %v", got)
	}
	if got[0].Confidence != 1.0 {
		t.Errorf("expected confidence 1.0, got %f", got[0].Confidence)
	}
}

func TestPredict_Monotonicity(t *testing.T) {
	base := store.Snapshot{
		TotalRecords: 10,
		FileCounts:   map[string]int{"/repo/a.go": 5},
		FileTags:     map[string]map[string]bool{},
		LastAccess:   map[string]int64{"/repo/a.go": time.Now().Unix()},
	}
	enriched := store.Snapshot{
		TotalRecords: 11,
		FileCounts:   map[string]int{"/repo/a.go": 6},
		FileTags:     map[string]map[string]bool{"/repo/a.go": {"#auth": true}},
		LastAccess:   map[string]int64{"/repo/a.go": time.Now().Unix()},
	}

	now := time.Now()
	before := Predict(base, []string{"auth"}, now, Options{})
	after := Predict(enriched, []string{"auth"}, now, Options{})

	var beforeConf, afterConf float64
	for _, c := range before {
		if c.Path == "/repo/a.go" {
			beforeConf = c.Confidence
		}
	}
	for _, c := range after {
		if c.Path == "/repo/a.go" {
			afterConf = c.Confidence
		}
	}
	if afterConf < beforeConf {
		t.Errorf("expected monotonic confidence, before=%f after=%f", beforeConf, afterConf)
	}
}

func contains(list []string, v string) bool {
	for _, e := range list {
		if e == v {
			return true
		}
	}
	return false
}
