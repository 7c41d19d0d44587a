package tagging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/aoa-dev/aoa/internal/domain/entity"
	"github.com/aoa-dev/aoa/pkg/safego"
)

// libraryDocument is the on-disk shape accepted for the PatternLibrary
// document (§6): either an array of {name, terms} or an object
// {domains:[...], _meta:...}. terms is either semantic_term -> [matches]
// (preferred) or a flat list of matches.
type libraryDocument struct {
	Domains []domainDocument `json:"domains"`
}

type domainDocument struct {
	Name  string          `json:"name"`
	Terms json.RawMessage `json:"terms"`
}

// LibraryStore owns the live PatternLibrary, exposing lock-free reads via
// an atomic pointer and a fsnotify-driven hot-reload, adapted from the
// teacher's plugin loader idiom: readers never lock, and the MergeDomains
// and Swap mutations hold a dedicated lock while they build, swap in and
// persist a new library.
type LibraryStore struct {
	current atomic.Pointer[entity.PatternLibrary]
	path    string
	logger  *zap.Logger

	mu      sync.Mutex // serializes Watch/Close and MergeDomains/Swap; reload does not take it
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewLibraryStore loads path once and returns a ready store. A missing or
// malformed document yields an empty library rather than an error, matching
// §7's "degraded path" handling for an absent pattern library.
func NewLibraryStore(path string, logger *zap.Logger) *LibraryStore {
	s := &LibraryStore{path: path, logger: logger}
	s.reload()
	return s
}

// Library returns the currently active PatternLibrary. Safe for concurrent
// use without locking — this is the hot path §9 calls out.
func (s *LibraryStore) Library() *entity.PatternLibrary {
	return s.current.Load()
}

// Watch starts an fsnotify watch on the library document's directory,
// reloading and atomically swapping the pointer on every write or create
// event for the document. It returns immediately; the watch loop runs in a
// safego.Go goroutine and stops when Close is called.
func (s *LibraryStore) Watch() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.watcher != nil {
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(s.path)); err != nil {
		w.Close()
		return fmt.Errorf("watch pattern library dir: %w", err)
	}

	s.watcher = w
	s.done = make(chan struct{})

	safego.Go(s.logger, "pattern-library-watcher", s.watchLoop)
	return nil
}

func (s *LibraryStore) watchLoop() {
	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(s.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				s.reload()
				s.logger.Info("pattern library reloaded", zap.String("path", s.path))
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("pattern library watch error", zap.Error(err))
		case <-s.done:
			return
		}
	}
}

// Close stops the watcher, if running.
func (s *LibraryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watcher == nil {
		return nil
	}
	close(s.done)
	err := s.watcher.Close()
	s.watcher = nil
	return err
}

func (s *LibraryStore) reload() {
	lib, err := loadLibrary(s.path)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("pattern library load failed, using empty library", zap.Error(err))
		}
		lib = entity.NewPatternLibrary(nil)
	}
	s.current.Store(lib)
}

func loadLibrary(path string) (*entity.PatternLibrary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	domains, err := parseLibraryDocument(data)
	if err != nil {
		return nil, err
	}
	return entity.NewPatternLibrary(domains), nil
}

// parseLibraryDocument accepts either top-level shape described in §6.
func parseLibraryDocument(data []byte) (map[string]map[string][]string, error) {
	var obj libraryDocument
	if err := json.Unmarshal(data, &obj); err == nil && len(obj.Domains) > 0 {
		return domainsToMap(obj.Domains)
	}

	var arr []domainDocument
	if err := json.Unmarshal(data, &arr); err == nil && len(arr) > 0 {
		return domainsToMap(arr)
	}

	// Fall back to the simpler {domains: {domain: {term: [matches]}}} shape
	// used by the bootstrap default document.
	var flat struct {
		Domains map[string]map[string][]string `json:"domains"`
	}
	if err := json.Unmarshal(data, &flat); err == nil && len(flat.Domains) > 0 {
		return flat.Domains, nil
	}

	return nil, fmt.Errorf("unrecognized pattern library document shape")
}

func domainsToMap(docs []domainDocument) (map[string]map[string][]string, error) {
	out := make(map[string]map[string][]string, len(docs))
	for _, d := range docs {
		terms, err := parseTerms(d.Terms)
		if err != nil {
			return nil, fmt.Errorf("domain %s: %w", d.Name, err)
		}
		out[d.Name] = terms
	}
	return out, nil
}

// parseTerms accepts either semantic_term -> [matches] or a flat list of
// matches (§6, "terms is either a mapping ... (preferred) or a flat list").
func parseTerms(raw json.RawMessage) (map[string][]string, error) {
	if len(raw) == 0 {
		return map[string][]string{}, nil
	}

	var mapped map[string][]string
	if err := json.Unmarshal(raw, &mapped); err == nil {
		return mapped, nil
	}

	var flat []string
	if err := json.Unmarshal(raw, &flat); err == nil {
		return map[string][]string{"": flat}, nil
	}

	return nil, fmt.Errorf("terms is neither a mapping nor a list")
}

// ProposedDomain mirrors learner.ProposedDomain without importing the
// learner package (learner depends on entity and store); the orchestrating
// Service converts between the two in the accept-domain flow.
type ProposedDomain struct {
	Name  string
	Terms []string
}

// MergeDomains folds newly accepted domains into the live library,
// atomically swaps the pointer so every subsequent Infer call sees the new
// terms immediately (§4.6 "the library and reverse index are updated
// atomically"), then persists the merged document.
func (s *LibraryStore) MergeDomains(proposed []ProposedDomain) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.Library()
	merged := map[string]map[string][]string{}
	if current != nil {
		for domain, terms := range current.Domains {
			copied := make(map[string][]string, len(terms))
			for term, matches := range terms {
				copied[term] = append([]string(nil), matches...)
			}
			merged[domain] = copied
		}
	}

	for _, p := range proposed {
		domain := strings.TrimPrefix(p.Name, "@")
		terms := map[string][]string{}
		for _, t := range p.Terms {
			terms[t] = []string{t}
		}
		merged[domain] = terms
	}

	s.storeAndPersistLocked(merged)
}

// Swap atomically replaces the live library with domains and persists it,
// holding the library lock while it builds the new PatternLibrary (with
// its own freshly-derived reverse index), swaps the atomic pointer and
// writes the document (§5/§9). Used by the tuning pass to publish a pruned copy
// of the domain tree without ever mutating a PatternLibrary a reader might
// be ranging over concurrently.
func (s *LibraryStore) Swap(domains map[string]map[string][]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.storeAndPersistLocked(domains)
}

// storeAndPersistLocked builds a new PatternLibrary from domains, swaps it
// in atomically, and persists it to s.path. Callers must hold s.mu.
func (s *LibraryStore) storeAndPersistLocked(domains map[string]map[string][]string) {
	s.current.Store(entity.NewPatternLibrary(domains))

	if s.path != "" {
		if err := persistLibrary(s.path, domains); err != nil && s.logger != nil {
			s.logger.Warn("failed to persist pattern library", zap.Error(err))
		}
	}
}

func persistLibrary(path string, domains map[string]map[string][]string) error {
	doc := struct {
		Domains map[string]map[string][]string `json:"domains"`
	}{Domains: domains}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// SearchPaths returns the ordered lookup path for the pattern library
// document: the project's .aoa directory, then the user's. There is no
// installed-defaults entry; ResolvePath falls back to the user-home path
// when neither file exists.
func SearchPaths(projectDir, userHome string) []string {
	return []string{
		filepath.Join(projectDir, ".aoa", "patterns.json"),
		filepath.Join(userHome, ".aoa", "patterns.json"),
	}
}

// ResolvePath returns the first existing path in SearchPaths, or the
// user-home default if none exist yet (so bootstrap knows where to write).
func ResolvePath(projectDir, userHome string) string {
	for _, p := range SearchPaths(projectDir, userHome) {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return filepath.Join(userHome, ".aoa", "patterns.json")
}
