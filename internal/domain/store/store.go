// Package store implements C3, the Intent Store: a durable append-only log
// of IntentRecords plus in-memory frequency indices over files and tags,
// per SPEC_FULL.md §4.3.
package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/aoa-dev/aoa/internal/domain/entity"
	"github.com/aoa-dev/aoa/internal/infrastructure/eventbus"
)

// Stats is the summary returned by Stats().
type Stats struct {
	TotalRecords int          `json:"total_records"`
	UniqueFiles  int          `json:"unique_files"`
	UniqueTags   int          `json:"unique_tags"`
	TopFiles     []FileCount  `json:"top_files"`
	TopTags      []TagCount   `json:"top_tags"`
}

// FileCount pairs a file path with its lifetime access count.
type FileCount struct {
	Path  string `json:"path"`
	Count int    `json:"count"`
}

// TagCount pairs a tag with its lifetime occurrence count.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// Store is the single reader-writer-locked home of every retained
// IntentRecord (§5: "the Intent Store is the only significant shared
// mutable state").
type Store struct {
	mu sync.RWMutex

	records    []entity.IntentRecord
	fileCounts map[string]int
	tagCounts  map[string]int

	// fileTags is the union of tags across records that include a given
	// file, used by the Predictor's tag_overlap scoring (§4.4).
	fileTags map[string]map[string]bool
	// lastAccess tracks the most recent timestamp a file was observed,
	// feeding the Predictor's recency decay.
	lastAccess map[string]int64

	maxRecords int
	persist    *persister
	bus        eventbus.Bus
	logger     *zap.Logger
}

// New constructs a Store, loading any existing document at path and
// replaying its contents into the in-memory indices. Corruption or a
// missing file yields an empty store per §4.3's failure semantics.
func New(path string, maxRecords int, bus eventbus.Bus, logger *zap.Logger) *Store {
	s := &Store{
		fileCounts: map[string]int{},
		tagCounts:  map[string]int{},
		fileTags:   map[string]map[string]bool{},
		lastAccess: map[string]int64{},
		maxRecords: maxRecords,
		persist:    newPersister(path, logger),
		bus:        bus,
		logger:     logger,
	}

	doc, err := s.persist.load()
	if err != nil {
		logger.Warn("intent store load failed, starting empty", zap.Error(err))
		return s
	}
	for _, r := range doc.Records {
		s.indexLocked(r)
	}
	return s
}

// Append persists rec, updates every derived index, and returns only once
// the in-memory indices reflect it — so an immediately following Predict
// sees it (§4.3, §5's "sees that append" ordering guarantee).
//
// I/O errors are logged and swallowed: intent capture must never fail the
// caller (§4.3 failure semantics, §7 category 3).
func (s *Store) Append(ctx context.Context, rec entity.IntentRecord) {
	s.mu.Lock()
	s.indexLocked(rec)
	truncated := len(s.records) > s.maxRecords
	if truncated {
		s.records = s.records[len(s.records)-s.maxRecords:]
	}
	snapshot := append([]entity.IntentRecord(nil), s.records...)
	s.mu.Unlock()

	fc, tc := s.snapshotCounts()
	if err := s.persist.save(snapshot, fc, tc); err != nil {
		s.logger.Error("intent store save failed", zap.Error(err))
	}

	if s.bus != nil {
		s.bus.Publish(ctx, eventbus.NewEvent(eventbus.EventTypeIntentAppended,
			eventbus.IntentAppendedPayload{Record: rec}))
	}
}

func (s *Store) indexLocked(rec entity.IntentRecord) {
	s.records = append(s.records, rec)

	for _, f := range rec.Files {
		if isMetaToken(f) {
			continue
		}
		path := stripRange(f)
		s.fileCounts[path]++
		s.lastAccess[path] = rec.Timestamp
		if s.fileTags[path] == nil {
			s.fileTags[path] = map[string]bool{}
		}
		for _, tag := range rec.Tags {
			s.fileTags[path][tag] = true
		}
	}
	for _, tag := range rec.Tags {
		s.tagCounts[tag]++
	}
}

func isMetaToken(token string) bool {
	return strings.HasPrefix(token, "pattern:") || strings.HasPrefix(token, "cmd:")
}

func stripRange(token string) string {
	if idx := strings.LastIndex(token, ":"); idx > 0 {
		suffix := token[idx+1:]
		if suffix == "" {
			return token
		}
		if suffix[len(suffix)-1] == '+' || strings.Contains(suffix, "-") {
			allDigits := true
			for _, r := range strings.TrimSuffix(suffix, "+") {
				if r < '0' || r > '9' {
					if r != '-' {
						allDigits = false
						break
					}
				}
			}
			if allDigits {
				return token[:idx]
			}
		}
	}
	return token
}

// Recent returns up to limit records, newest first, optionally filtered by
// projectID.
func (s *Store) Recent(limit int, projectID string) []entity.IntentRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]entity.IntentRecord, 0, limit)
	for i := len(s.records) - 1; i >= 0 && len(out) < limit; i-- {
		r := s.records[i]
		if projectID != "" && r.ProjectID != projectID {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Stats returns the current summary: totals plus the top 5 files and top
// 10 tags by lifetime count.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Stats{
		TotalRecords: len(s.records),
		UniqueFiles:  len(s.fileCounts),
		UniqueTags:   len(s.tagCounts),
		TopFiles:     topFiles(s.fileCounts, 5),
		TopTags:      topTags(s.tagCounts, 10),
	}
}

// FilesSince returns files accessed at or after cutoffEpoch, ranked by
// count, up to limit.
func (s *Store) FilesSince(cutoffEpoch int64, limit int) []FileCount {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := map[string]int{}
	for _, r := range s.records {
		if r.Timestamp < cutoffEpoch {
			continue
		}
		for _, f := range r.Files {
			if isMetaToken(f) {
				continue
			}
			counts[stripRange(f)]++
		}
	}
	return topFiles(counts, limit)
}

// FilesByTag returns files co-occurring with tag, ranked by co-occurrence
// count, up to limit.
func (s *Store) FilesByTag(tag string, limit int) []FileCount {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := map[string]int{}
	for path, tags := range s.fileTags {
		if tags[tag] {
			counts[path] = s.fileCounts[path]
		}
	}
	return topFiles(counts, limit)
}

// snapshot is a read-only view handed to the Predictor, avoiding repeated
// lock acquisition during a single scoring pass.
type Snapshot struct {
	TotalRecords int
	FileCounts   map[string]int
	FileTags     map[string]map[string]bool
	LastAccess   map[string]int64
}

// Snapshot returns a point-in-time copy of the indices needed for scoring.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fc := make(map[string]int, len(s.fileCounts))
	for k, v := range s.fileCounts {
		fc[k] = v
	}
	ft := make(map[string]map[string]bool, len(s.fileTags))
	for k, v := range s.fileTags {
		cp := make(map[string]bool, len(v))
		for t := range v {
			cp[t] = true
		}
		ft[k] = cp
	}
	la := make(map[string]int64, len(s.lastAccess))
	for k, v := range s.lastAccess {
		la[k] = v
	}

	return Snapshot{
		TotalRecords: len(s.records),
		FileCounts:   fc,
		FileTags:     ft,
		LastAccess:   la,
	}
}

func (s *Store) snapshotCounts() (map[string]int, map[string]int) {
	fc := make(map[string]int, len(s.fileCounts))
	for k, v := range s.fileCounts {
		fc[k] = v
	}
	tc := make(map[string]int, len(s.tagCounts))
	for k, v := range s.tagCounts {
		tc[k] = v
	}
	return fc, tc
}

func topFiles(counts map[string]int, limit int) []FileCount {
	out := make([]FileCount, 0, len(counts))
	for path, count := range counts {
		out = append(out, FileCount{Path: path, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Path < out[j].Path
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func topTags(counts map[string]int, limit int) []TagCount {
	out := make([]TagCount, 0, len(counts))
	for tag, count := range counts {
		out = append(out, TagCount{Tag: tag, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Tag < out[j].Tag
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
