// Package entity holds the value types shared across the intent pipeline:
// the record produced by the parser, the pattern library consulted by the
// tag inferencer, the prediction log entries written by the predictor and
// evaluated by the tracker, and the domain-learning state.
package entity

import "time"

// Tool names recognized by the record parser (§3). ToolOther is the
// catch-all for anything outside this closed set.
const (
	ToolRead    = "Read"
	ToolEdit    = "Edit"
	ToolWrite   = "Write"
	ToolBash    = "Bash"
	ToolGrep    = "Grep"
	ToolGlob    = "Glob"
	ToolTask    = "Task"
	ToolPredict = "Predict"
	ToolOther   = "Other"
)

// MaxFileTokens caps the number of file tokens retained per record (§3).
const MaxFileTokens = 20

// IntentRecord is the normalized observation of one tool invocation.
type IntentRecord struct {
	Timestamp  int64             `json:"timestamp"`
	SessionID  string            `json:"session_id"`
	ProjectID  string            `json:"project_id"`
	ToolName   string            `json:"tool_name"`
	ToolUseID  string            `json:"tool_use_id,omitempty"`
	Files      []string          `json:"files"`
	Tags       []string          `json:"tags"`
	FileSizes  map[string]int64  `json:"file_sizes,omitempty"`
	OutputSize int               `json:"output_size"`
}

// IsFileAccessingTool reports whether t is one of the tools that read or
// write a file's contents, as used by the hit/miss tracker (§4.5) to decide
// which records can evaluate an outstanding prediction.
func IsFileAccessingTool(t string) bool {
	switch t {
	case ToolRead, ToolEdit, ToolWrite:
		return true
	default:
		return false
	}
}

// ToolActionTag maps a tool name to its single tool-action tag (§4.2 step 1).
func ToolActionTag(tool string) (string, bool) {
	switch tool {
	case ToolRead:
		return "#reading", true
	case ToolEdit:
		return "#editing", true
	case ToolWrite:
		return "#creating", true
	case ToolBash:
		return "#executing", true
	case ToolGrep, ToolGlob:
		return "#searching", true
	case ToolTask:
		return "#delegating", true
	case ToolPredict:
		return "#predicting", true
	default:
		return "", false
	}
}

// PatternLibrary is a domain -> semantic_term -> match_strings mapping,
// loaded once from a configuration document (§3). Construct it with
// NewPatternLibrary so the reverse index is built.
type PatternLibrary struct {
	Domains map[string]map[string][]string `json:"domains"`

	// reverse maps a lowercased match string to the first domain that
	// defined it — collisions resolve in favor of the first domain (§3).
	reverse map[string]string
}

// NewPatternLibrary builds a PatternLibrary from raw domain data, lowercasing
// every match string and deriving the reverse index.
func NewPatternLibrary(domains map[string]map[string][]string) *PatternLibrary {
	lib := &PatternLibrary{
		Domains: make(map[string]map[string][]string, len(domains)),
		reverse: make(map[string]string),
	}
	for domain, terms := range domains {
		lowerTerms := make(map[string][]string, len(terms))
		for term, matches := range terms {
			lowered := make([]string, 0, len(matches))
			for _, m := range matches {
				lm := toLower(m)
				lowered = append(lowered, lm)
				if _, exists := lib.reverse[lm]; !exists {
					lib.reverse[lm] = domain
				}
			}
			lowerTerms[term] = lowered
		}
		lib.Domains[domain] = lowerTerms
	}
	return lib
}

// Reverse returns the match -> domain index derived at construction time.
func (l *PatternLibrary) Reverse() map[string]string {
	return l.reverse
}

func toLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// PredictionLogEntry is written by the predictor (C4) and evaluated by the
// tracker (C5) per §3/§4.5.
type PredictionLogEntry struct {
	SessionID     string    `json:"session_id"`
	Trigger       string    `json:"trigger"`
	Predicted     []string  `json:"predicted"`
	TagsUsed      []string  `json:"tags_used"`
	AvgConfidence float64   `json:"avg_confidence"`
	IssuedAt      time.Time `json:"issued_at"`
	ExpiresAt     time.Time `json:"expires_at"`
	Hits          int       `json:"hits"`

	// checkedFiles records which predicted files have already been
	// credited, so a replayed check is idempotent (§8 "hit idempotence").
	checkedFiles map[string]bool
}

// MarkHit credits file as a hit against this entry, at most once.
// Returns true if this call actually incremented Hits.
func (e *PredictionLogEntry) MarkHit(file string) bool {
	if e.checkedFiles == nil {
		e.checkedFiles = make(map[string]bool)
	}
	if e.checkedFiles[file] {
		return false
	}
	e.checkedFiles[file] = true
	e.Hits++
	return true
}

// Checked reports whether normalizedFile (already range-stripped by the
// caller, the same form passed to MarkHit) was credited as a hit against
// this entry.
func (e *PredictionLogEntry) Checked(normalizedFile string) bool {
	return e.checkedFiles[normalizedFile]
}

// Expired reports whether the entry's window has closed as of now.
func (e *PredictionLogEntry) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// Domain is a named cluster of semantic terms (the glossary's "Domain").
type Domain struct {
	Name        string    `json:"name"`
	Terms       []string  `json:"terms"`
	LastTouched time.Time `json:"last_touched"`
	StaleCycles int       `json:"stale_cycles"`
}

// DomainState is C6's persisted learning state: active domains, orphan
// tags, and the activity counters that gate learning/tuning cycles (§4.6).
type DomainState struct {
	Active          []Domain       `json:"active"`
	OrphanTags      map[string]int `json:"orphan_tags"`
	SinceLastCycle  int            `json:"since_last_cycle"`
	SinceLastTune   int            `json:"since_last_tune"`
	LearningPending bool           `json:"learning_pending"`
	TuneCount       int            `json:"tune_count"`
}
