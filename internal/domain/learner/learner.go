// Package learner implements C6, the Domain Learner: it counts activity
// since the last learning cycle, flags when enough new activity and orphan
// tags have accumulated to propose new domains, and runs a math-only
// tuning pass that prunes over-broad terms and retires stale domains, per
// SPEC_FULL.md §4.6.
package learner

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aoa-dev/aoa/internal/domain/entity"
	"github.com/aoa-dev/aoa/internal/domain/store"
)

// Default thresholds (§4.6).
const (
	DefaultLearnThreshold     = 100 // T_learn
	DefaultTuneThreshold      = 50  // T_tune
	DefaultOrphanTagThreshold = 5
	StaleCyclesToDeprecate    = 2
	OverBroadMatchRateLimit   = 0.3
)

// ActivitySnapshot is the activity summary offered to an external
// synthesizer for proposing new domains (§4.6). Learner.Snapshot builds it
// on request; nothing is captured at the moment learning_pending is set.
type ActivitySnapshot struct {
	RecentTags  []string `json:"recent_tags"`
	RecentFiles []string `json:"recent_files"`
	OrphanTags  []string `json:"orphan_tags"`
}

// ProposedDomain is one candidate domain submitted via /domains/add.
type ProposedDomain struct {
	Name  string   `json:"name"`
	Terms []string `json:"terms"`
}

// TuneResult is returned by RunMathTuning (§6 /domains/tune/math).
type TuneResult struct {
	Success             bool `json:"success"`
	TermsPruned         int  `json:"terms_pruned"`
	DomainsActive       int  `json:"domains_active"`
	DomainsFlaggedStale int  `json:"domains_flagged_stale"`
	DomainsDeprecated   int  `json:"domains_deprecated"`
}

// Learner owns the persisted DomainState. It does not hold the pattern
// library: its tuning pass reads the library it is given and returns a
// pruned copy for the caller to swap in (see RunMathTuning).
type Learner struct {
	mu sync.Mutex

	state entity.DomainState
	path  string

	learnThreshold     int
	tuneThreshold      int
	orphanTagThreshold int
}

// New constructs a Learner, loading any persisted DomainState from path so
// learning_pending survives restarts (§4.6 failure semantics).
func New(path string) *Learner {
	l := &Learner{
		path:               path,
		learnThreshold:     DefaultLearnThreshold,
		tuneThreshold:      DefaultTuneThreshold,
		orphanTagThreshold: DefaultOrphanTagThreshold,
	}
	if state, err := loadState(path); err == nil {
		l.state = state
	} else {
		l.state = entity.DomainState{OrphanTags: map[string]int{}}
	}
	return l
}

// OnAppend increments activity counters and records any tags absent from
// the active domain set as orphans (§4.6 "Increment since_last_cycle on
// every Append").
func (l *Learner) OnAppend(rec entity.IntentRecord, knownDomainTags map[string]bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.state.SinceLastCycle++
	l.state.SinceLastTune++

	for _, tag := range rec.Tags {
		if knownDomainTags[tag] {
			continue
		}
		if l.state.OrphanTags == nil {
			l.state.OrphanTags = map[string]int{}
		}
		l.state.OrphanTags[tag]++
	}

	if l.state.SinceLastCycle >= l.learnThreshold && len(l.state.OrphanTags) >= l.orphanTagThreshold {
		l.state.LearningPending = true
	}

	l.persistLocked()
}

// LearningPending reports the current flag.
func (l *Learner) LearningPending() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state.LearningPending
}

// Snapshot builds the activity summary for an external synthesizer from the
// records passed in (their unique tags and file tokens) and the ten
// highest-count orphan tags. It is computed at call time and does not check
// learning_pending; no copy is frozen when the flag is set.
func (l *Learner) Snapshot(recent []entity.IntentRecord) ActivitySnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	tagSet := map[string]bool{}
	var tags, files []string
	for _, r := range recent {
		for _, t := range r.Tags {
			if !tagSet[t] {
				tagSet[t] = true
				tags = append(tags, t)
			}
		}
		files = append(files, r.Files...)
	}

	return ActivitySnapshot{
		RecentTags:  tags,
		RecentFiles: files,
		OrphanTags:  topOrphans(l.state.OrphanTags, 10),
	}
}

// Stats returns the counters exposed at /domains/stats.
type Stats struct {
	Domains         []entity.Domain `json:"domains"`
	LearningPending bool            `json:"learning_pending"`
	TuneCount       int             `json:"tune_count"`
	TuningPending   bool            `json:"tuning_pending"`
	OrphanCount     int             `json:"orphan_count"`
}

// Stats returns the current Stats view.
func (l *Learner) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Stats{
		Domains:         append([]entity.Domain(nil), l.state.Active...),
		LearningPending: l.state.LearningPending,
		TuneCount:       l.state.TuneCount,
		TuningPending:   l.state.SinceLastTune >= l.tuneThreshold,
		OrphanCount:     len(l.state.OrphanTags),
	}
}

// Orphans returns up to limit orphan tags, highest-count first.
func (l *Learner) Orphans(limit int) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return topOrphans(l.state.OrphanTags, limit)
}

// Domains returns up to limit active domains.
func (l *Learner) Domains(limit int) []entity.Domain {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := l.state.Active
	if len(out) > limit {
		out = out[:limit]
	}
	return append([]entity.Domain(nil), out...)
}

// validateName checks the "@domain" naming rule (§4.6): begins with @,
// lowercase, no whitespace.
func validateName(name string) error {
	if !strings.HasPrefix(name, "@") {
		return fmt.Errorf("domain name %q must begin with '@'", name)
	}
	if name != strings.ToLower(name) {
		return fmt.Errorf("domain name %q must be lowercase", name)
	}
	if strings.ContainsAny(name, " \t\n") {
		return fmt.Errorf("domain name %q must not contain whitespace", name)
	}
	return nil
}

// Add validates and accepts proposed domains, atomically updating the
// active set. Validation errors reject the whole submission (§4.6).
func (l *Learner) Add(proposed []ProposedDomain) error {
	if err := validateProposal(proposed, l.existingTerms()); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	for _, p := range proposed {
		l.state.Active = append(l.state.Active, entity.Domain{
			Name:        p.Name,
			Terms:       p.Terms,
			LastTouched: now,
		})
	}
	l.persistLocked()
	return nil
}

func (l *Learner) existingTerms() map[string]bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := map[string]bool{}
	for _, d := range l.state.Active {
		for _, t := range d.Terms {
			out[t] = true
		}
	}
	return out
}

func validateProposal(proposed []ProposedDomain, existingTerms map[string]bool) error {
	seenTerms := map[string]bool{}
	for _, p := range proposed {
		if err := validateName(p.Name); err != nil {
			return err
		}
		if len(p.Terms) < 3 || len(p.Terms) > 7 {
			return fmt.Errorf("domain %s must have 3-7 terms, got %d", p.Name, len(p.Terms))
		}
		for _, term := range p.Terms {
			if len(term) < 3 {
				return fmt.Errorf("term %q in domain %s is shorter than 3 chars", term, p.Name)
			}
			if existingTerms[term] || seenTerms[term] {
				return fmt.Errorf("term %q is not globally unique", term)
			}
			seenTerms[term] = true
		}
	}
	return nil
}

// ClearLearningPending clears the flag (§6 /domains/learned).
func (l *Learner) ClearLearningPending() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state.LearningPending = false
	l.state.SinceLastCycle = 0
	l.state.OrphanTags = map[string]int{}
	l.persistLocked()
}

// RunMathTuning performs the periodic math-only maintenance pass (§4.6):
// prune over-broad terms, flag stale domains, deprecate domains stale for
// two consecutive cycles.
//
// It never mutates lib in place. lib.Domains is the live library's map,
// shared with every concurrent tagging.Infer reader and with
// app.Service.knownDomainTags(); deleting from it directly would both race
// and leave the pruned term in lib's already-built reverse index. Instead
// RunMathTuning reads lib to decide what to prune and returns the pruned
// copy as prunedDomains (nil when lib is nil or nothing was pruned) —
// callers own atomically swapping it into the LibraryStore (§5/§9's "a
// dedicated library lock held only long enough to swap atomic
// references"), the same way LibraryStore.MergeDomains does.
func (l *Learner) RunMathTuning(snap store.Snapshot, lib *entity.PatternLibrary) (result TuneResult, prunedDomains map[string]map[string][]string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	result = TuneResult{Success: true}
	l.state.TuneCount++
	l.state.SinceLastTune = 0

	if lib != nil && snap.TotalRecords > 0 {
		pruned := copyDomains(lib.Domains)
		for domain, terms := range pruned {
			for term, matches := range terms {
				matchCount := countMatches(matches, snap)
				rate := float64(matchCount) / float64(snap.TotalRecords)
				if rate > OverBroadMatchRateLimit {
					delete(terms, term)
					result.TermsPruned++
				}
			}
			pruned[domain] = terms
		}
		if result.TermsPruned > 0 {
			prunedDomains = pruned
		}
	}

	var kept []entity.Domain
	for _, d := range l.state.Active {
		touchedRecently := domainMatchedRecently(d, snap)
		if touchedRecently {
			d.StaleCycles = 0
		} else {
			d.StaleCycles++
			result.DomainsFlaggedStale++
		}
		if d.StaleCycles >= StaleCyclesToDeprecate {
			result.DomainsDeprecated++
			continue
		}
		kept = append(kept, d)
	}
	l.state.Active = kept
	result.DomainsActive = len(kept)

	l.persistLocked()
	return result, prunedDomains
}

// copyDomains deep-copies a PatternLibrary's domain/term/match tree so
// callers can prune the copy without mutating a map a reader may be
// ranging over concurrently.
func copyDomains(domains map[string]map[string][]string) map[string]map[string][]string {
	out := make(map[string]map[string][]string, len(domains))
	for domain, terms := range domains {
		copied := make(map[string][]string, len(terms))
		for term, matches := range terms {
			copied[term] = append([]string(nil), matches...)
		}
		out[domain] = copied
	}
	return out
}

func countMatches(matches []string, snap store.Snapshot) int {
	count := 0
	for path := range snap.FileCounts {
		lower := strings.ToLower(path)
		for _, m := range matches {
			if strings.Contains(lower, m) {
				count++
				break
			}
		}
	}
	return count
}

func domainMatchedRecently(d entity.Domain, snap store.Snapshot) bool {
	for path := range snap.FileCounts {
		lower := strings.ToLower(path)
		for _, term := range d.Terms {
			if strings.Contains(lower, term) {
				return true
			}
		}
	}
	return false
}

func topOrphans(counts map[string]int, limit int) []string {
	type pair struct {
		tag   string
		count int
	}
	pairs := make([]pair, 0, len(counts))
	for t, c := range counts {
		pairs = append(pairs, pair{t, c})
	}
	for i := 0; i < len(pairs); i++ {
		for j := i + 1; j < len(pairs); j++ {
			if pairs[j].count > pairs[i].count {
				pairs[i], pairs[j] = pairs[j], pairs[i]
			}
		}
	}
	if len(pairs) > limit {
		pairs = pairs[:limit]
	}
	out := make([]string, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, p.tag)
	}
	return out
}

func (l *Learner) persistLocked() {
	if l.path == "" {
		return
	}
	data, err := json.Marshal(l.state)
	if err != nil {
		return
	}
	_ = os.MkdirAll(filepath.Dir(l.path), 0755)
	_ = os.WriteFile(l.path, data, 0644)
}

func loadState(path string) (entity.DomainState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return entity.DomainState{}, err
	}
	var state entity.DomainState
	if err := json.Unmarshal(data, &state); err != nil {
		return entity.DomainState{}, err
	}
	if state.OrphanTags == nil {
		state.OrphanTags = map[string]int{}
	}
	return state, nil
}
