// Package predictor implements C4: given a free-text prompt or an explicit
// keyword set, it produces a ranked list of files with confidence scores,
// per SPEC_FULL.md §4.4.
package predictor

import (
	"bufio"
	"math"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/aoa-dev/aoa/internal/domain/store"
)

// MinRecordsGate is the minimum total_records below which Predict returns
// an empty set (§4.4 "minimum-data gate").
const MinRecordsGate = 5

const (
	defaultLimit        = 3
	defaultSnippetLines = 15
	maxSnippetBytes      = 2048
	maxKeywords          = 10
	recencyHalfLife      = time.Hour

	// Scoring weights: alpha > beta > gamma (§4.4).
	weightDirectMatch = 3.0
	weightTagOverlap  = 2.0
	weightFrequency   = 1.0
)

var identifierRe = regexp.MustCompile(`[a-zA-Z_][a-zA-Z0-9_]*`)

var allowedExtensions = map[string]bool{
	"py": true, "js": true, "ts": true, "tsx": true, "jsx": true,
	"go": true, "rs": true, "java": true, "cpp": true, "c": true,
	"h": true, "md": true, "json": true, "yaml": true, "yml": true,
	"sh": true, "sql": true,
}

// stopwords is the fixed list of ~100 function words and common verbs
// dropped during keyword extraction (§4.4 step 2).
var stopwords = buildStopwordSet()

func buildStopwordSet() map[string]bool {
	words := []string{
		"the", "a", "an", "and", "or", "but", "if", "then", "else", "when",
		"at", "by", "for", "with", "about", "against", "between", "into",
		"through", "during", "before", "after", "above", "below", "to",
		"from", "up", "down", "in", "out", "on", "off", "over", "under",
		"again", "further", "once", "here", "there", "all", "any", "both",
		"each", "few", "more", "most", "other", "some", "such", "no", "nor",
		"not", "only", "own", "same", "so", "than", "too", "very", "can",
		"will", "just", "should", "now", "is", "are", "was", "were", "be",
		"been", "being", "have", "has", "had", "having", "do", "does",
		"did", "doing", "this", "that", "these", "those", "i", "you", "he",
		"she", "it", "we", "they", "me", "him", "her", "us", "them", "my",
		"your", "his", "its", "our", "their", "what", "which", "who",
		"whom", "want", "need", "please", "add", "make", "use", "get",
		"set", "let",
	}
	out := make(map[string]bool, len(words))
	for _, w := range words {
		out[w] = true
	}
	return out
}

// Candidate is one scored file prediction.
type Candidate struct {
	Path       string  `json:"path"`
	Confidence float64 `json:"confidence"`
	Snippet    string  `json:"snippet"`
}

// Options controls the ranked list's shape.
type Options struct {
	Limit        int
	SnippetLines int
}

func (o Options) withDefaults() Options {
	if o.Limit <= 0 {
		o.Limit = defaultLimit
	}
	if o.SnippetLines <= 0 {
		o.SnippetLines = defaultSnippetLines
	}
	return o
}

// ExtractKeywords implements §4.4's keyword-extraction algorithm over a
// free-text prompt.
func ExtractKeywords(prompt string) []string {
	var out []string
	seen := map[string]bool{}

	add := func(w string) {
		w = strings.ToLower(w)
		if w == "" || seen[w] || len(out) >= maxKeywords {
			return
		}
		seen[w] = true
		out = append(out, w)
	}

	for _, m := range identifierRe.FindAllString(prompt, -1) {
		lower := strings.ToLower(m)
		if stopwords[lower] || len(lower) < 3 {
			continue
		}
		add(lower)
	}

	for _, frag := range fileLikeFragments(prompt) {
		add(frag)
	}

	if len(out) > maxKeywords {
		out = out[:maxKeywords]
	}
	return out
}

var fileFragmentRe = regexp.MustCompile(`[\w./-]+\.([A-Za-z0-9]+)`)

func fileLikeFragments(prompt string) []string {
	var out []string
	for _, m := range fileFragmentRe.FindAllStringSubmatch(prompt, -1) {
		full, ext := m[0], strings.ToLower(m[1])
		if !allowedExtensions[ext] {
			continue
		}
		base := full
		if idx := strings.LastIndex(base, "/"); idx >= 0 {
			base = base[idx+1:]
		}
		out = append(out, base)
	}
	return out
}

// Predict ranks candidate files for the given keyword set against snap, as
// observed at evaluation time now.
func Predict(snap store.Snapshot, keywords []string, now time.Time, opts Options) []Candidate {
	opts = opts.withDefaults()

	if snap.TotalRecords < MinRecordsGate {
		return nil
	}
	if len(keywords) == 0 {
		return nil
	}

	keywordSet := make(map[string]bool, len(keywords))
	for _, k := range keywords {
		keywordSet[k] = true
	}

	type scored struct {
		path       string
		raw        float64
		lastAccess int64
	}

	var scoredList []scored
	for path, freq := range snap.FileCounts {
		tagOverlap := 0
		for k := range keywordSet {
			if snap.FileTags[path]["#"+k] {
				tagOverlap++
			}
		}

		direct := 0.0
		lowerPath := strings.ToLower(path)
		for k := range keywordSet {
			if strings.Contains(lowerPath, k) {
				direct = 1.0
				break
			}
		}

		last := snap.LastAccess[path]
		elapsed := now.Sub(time.Unix(last, 0))
		recency := math.Exp(-math.Ln2 * elapsed.Hours() / recencyHalfLife.Hours())

		raw := weightDirectMatch*direct + weightTagOverlap*float64(tagOverlap) + weightFrequency*math.Log(1+float64(freq))*recency

		if raw <= 0 {
			continue
		}
		scoredList = append(scoredList, scored{path: path, raw: raw, lastAccess: last})
	}

	sort.Slice(scoredList, func(i, j int) bool {
		if scoredList[i].raw != scoredList[j].raw {
			return scoredList[i].raw > scoredList[j].raw
		}
		return scoredList[i].lastAccess > scoredList[j].lastAccess
	})

	if len(scoredList) > opts.Limit {
		scoredList = scoredList[:opts.Limit]
	}
	if len(scoredList) == 0 {
		return nil
	}

	top := scoredList[0].raw
	out := make([]Candidate, 0, len(scoredList))
	for _, c := range scoredList {
		confidence := 1.0
		if top > 0 {
			confidence = c.raw / top
		}
		out = append(out, Candidate{
			Path:       c.path,
			Confidence: confidence,
			Snippet:    readSnippet(c.path, opts.SnippetLines),
		})
	}
	return out
}

// readSnippet reads the first n lines of path, truncated to
// maxSnippetBytes. A missing file yields an empty snippet without
// failing the prediction (§4.4, §7 degraded-path category).
func readSnippet(path string, n int) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	var b strings.Builder
	scanner := bufio.NewScanner(f)
	lines := 0
	for scanner.Scan() && lines < n && b.Len() < maxSnippetBytes {
		b.WriteString(scanner.Text())
		b.WriteByte('\n')
		lines++
	}
	out := b.String()
	if len(out) > maxSnippetBytes {
		out = out[:maxSnippetBytes]
	}
	return out
}
