// Package tagging implements C2, the Tag Inferencer, and the PatternLibrary
// loader/hot-reloader it consults, per SPEC_FULL.md §4.2.
package tagging

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/aoa-dev/aoa/internal/domain/entity"
)

// classSuffixes are basename suffixes that contribute a single tag each
// (§4.2 step 5), e.g. "AuthService" -> #service.
var classSuffixes = map[string]string{
	"service":    "#service",
	"controller": "#controller",
	"handler":    "#handler",
	"repository": "#repository",
	"model":      "#model",
	"client":     "#client",
	"worker":     "#worker",
}

// fallbackRules is the ~15-entry broad-category regex table used only when
// nothing else matched (§4.2 step 6), carried over from
// original_source/.claude/hooks/aoa-intent-capture.py's INTENT_PATTERNS.
var fallbackRules = []struct {
	re   *regexp.Regexp
	tags []string
}{
	{regexp.MustCompile(`\bauth|login|session|token\b`), []string{"#authentication"}},
	{regexp.MustCompile(`\btest|spec\b`), []string{"#testing"}},
	{regexp.MustCompile(`\bdb|database|sql|migrat`), []string{"#database"}},
	{regexp.MustCompile(`\bapi|route|endpoint|handler\b`), []string{"#api"}},
	{regexp.MustCompile(`\bui|component|render|view\b`), []string{"#ui"}},
	{regexp.MustCompile(`\bconfig|settings|env\b`), []string{"#configuration"}},
	{regexp.MustCompile(`\blog|logger|logging\b`), []string{"#logging"}},
	{regexp.MustCompile(`\berror|exception|panic\b`), []string{"#error-handling"}},
	{regexp.MustCompile(`\bcache|redis|memo\b`), []string{"#caching"}},
	{regexp.MustCompile(`\bqueue|worker|job\b`), []string{"#background-work"}},
	{regexp.MustCompile(`\bdeploy|docker|ci|cd\b`), []string{"#deployment"}},
	{regexp.MustCompile(`\bdoc|readme|markdown\b`), []string{"#documentation"}},
	{regexp.MustCompile(`\bmetric|monitor|observ\b`), []string{"#observability"}},
	{regexp.MustCompile(`\bsecurity|crypto|encrypt\b`), []string{"#security"}},
	{regexp.MustCompile(`\bnetwork|http|socket|grpc\b`), []string{"#networking"}},
}

// tokenSplitRe splits a file token on path separators, underscores,
// hyphens, dots and whitespace (§4.2 step 2).
var tokenSplitRe = regexp.MustCompile(`[/_.\-\s]+`)

// Infer derives the semantic tags for rec given lib, plus any search tags
// already captured by the parser (§4.1.3b), merged in step 7.
func Infer(rec entity.IntentRecord, lib *entity.PatternLibrary, searchTags []string) []string {
	tagSet := newOrderedSet()

	if tag, ok := entity.ToolActionTag(rec.ToolName); ok {
		tagSet.add(tag)
	}

	tokens := tokenizeFiles(rec.Files)

	if lib != nil {
		reverse := lib.Reverse()
		for t := range tokens {
			if domain, ok := matchToken(t, reverse); ok {
				tagSet.add("#" + domain)
			}
		}

		concatenated := strings.ToLower(strings.Join(filterRealFiles(rec.Files), " "))
		for match, domain := range reverse {
			if strings.Contains(concatenated, match) {
				tagSet.add("#" + domain)
			}
		}
	}

	for _, f := range filterRealFiles(rec.Files) {
		if tag, ok := classSuffixTag(f); ok {
			tagSet.add(tag)
			break
		}
	}

	if tagSet.onlyToolAction(rec.ToolName) {
		concatenated := strings.ToLower(strings.Join(rec.Files, " "))
		for _, rule := range fallbackRules {
			if rule.re.MatchString(concatenated) {
				for _, tag := range rule.tags {
					tagSet.add(tag)
				}
				break
			}
		}
	}

	for _, t := range searchTags {
		tagSet.add(t)
	}

	return tagSet.values()
}

func tokenizeFiles(files []string) map[string]bool {
	out := map[string]bool{}
	for _, f := range filterRealFiles(files) {
		for _, piece := range tokenSplitRe.Split(f, -1) {
			for _, sub := range splitCamelCase(piece) {
				sub = strings.ToLower(sub)
				if sub != "" {
					out[sub] = true
				}
			}
		}
	}
	return out
}

func filterRealFiles(files []string) []string {
	var out []string
	for _, f := range files {
		if strings.HasPrefix(f, "pattern:") || strings.HasPrefix(f, "cmd:") {
			continue
		}
		out = append(out, f)
	}
	return out
}

func splitCamelCase(s string) []string {
	var words []string
	var cur []rune
	for i, r := range s {
		if i > 0 && unicode.IsUpper(r) && !unicode.IsUpper([]rune(s)[i-1]) {
			words = append(words, string(cur))
			cur = nil
		}
		cur = append(cur, r)
	}
	if len(cur) > 0 {
		words = append(words, string(cur))
	}
	return words
}

// matchToken checks t directly, then checks whether a prefix of t matches
// a library match-string (§4.2 step 3: "a prefix of t matching a library
// match-string") — i.e. t starts with match, not the other way around.
func matchToken(t string, reverse map[string]string) (string, bool) {
	if domain, ok := reverse[t]; ok {
		return domain, true
	}
	for match, domain := range reverse {
		if strings.HasPrefix(t, match) {
			return domain, true
		}
	}
	return "", false
}

func classSuffixTag(file string) (string, bool) {
	base := file
	if idx := strings.LastIndex(base, "/"); idx >= 0 {
		base = base[idx+1:]
	}
	if idx := strings.LastIndex(base, "."); idx >= 0 {
		base = base[:idx]
	}
	lower := strings.ToLower(base)
	for suffix, tag := range classSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return tag, true
		}
	}
	return "", false
}

// orderedSet preserves first-seen insertion order while deduplicating,
// matching §4.2's "the result set is deduplicated".
type orderedSet struct {
	order []string
	seen  map[string]bool
}

func newOrderedSet() *orderedSet {
	return &orderedSet{seen: map[string]bool{}}
}

func (s *orderedSet) add(tag string) {
	if tag == "" || s.seen[tag] {
		return
	}
	s.seen[tag] = true
	s.order = append(s.order, tag)
}

func (s *orderedSet) values() []string {
	return s.order
}

// onlyToolAction reports whether the set contains nothing but the single
// tool-action tag for tool, i.e. step 6's gate condition.
func (s *orderedSet) onlyToolAction(tool string) bool {
	actionTag, hasAction := entity.ToolActionTag(tool)
	if !hasAction {
		return len(s.order) == 0
	}
	if len(s.order) != 1 {
		return false
	}
	return s.order[0] == actionTag
}
