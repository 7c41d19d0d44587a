// Package record implements C1, the Record Parser: it turns a raw
// tool-call envelope into a normalized entity.IntentRecord, extracting file
// tokens, command metadata and output size per SPEC_FULL.md §4.1.
package record

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/aoa-dev/aoa/internal/domain/entity"
)

// Envelope is the raw, tool-specific payload handed to the parser. It
// mirrors the hook-side JSON contract described in §4.1.
type Envelope struct {
	ToolName     string         `json:"tool_name"`
	SessionID    string         `json:"session_id"`
	ProjectID    string         `json:"project_id"`
	ToolUseID    string         `json:"tool_use_id"`
	ToolInput    map[string]any `json:"tool_input"`
	ToolResponse any            `json:"tool_response"`
}

// allowedExtensions is the closed extension set recognized in search
// results and absolute-path scanning (§4.1.3b/c).
var allowedExtensions = map[string]bool{
	"py": true, "js": true, "ts": true, "tsx": true, "jsx": true,
	"go": true, "rs": true, "java": true, "cpp": true, "c": true,
	"h": true, "md": true, "json": true, "yaml": true, "yml": true,
	"sh": true, "sql": true,
}

var (
	searchTypeNames = []string{
		"grep", "egrep", "find", "tree", "locate", "head", "tail",
		"lines", "hot", "touched", "focus", "predict", "outline",
		"search", "multi", "pattern",
	}
	// aoaCommandRe matches "aoa <subtype> [-X] [term]" up to 40 chars of term.
	aoaCommandRe = regexp.MustCompile(`\baoa\s+(` + strings.Join(searchTypeNames, "|") + `)(?:\s+(-[A-Za-z]))?(?:\s+("[^"]{0,40}"|'[^']{0,40}'|\S{1,40}))?`)

	hitsTimeRe = regexp.MustCompile(`(\d+)\s*(?:hits?|matched)[^0-9]{0,6}(\d+)\s*ms`)

	resultLineRe = regexp.MustCompile(`^\s*(\S+):(\d+)`)

	ansiRe = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

	searchTagRe = regexp.MustCompile(`\W+`)
)

// Parse converts env into an IntentRecord. It never returns an error —
// malformed envelopes yield an empty-ish record instead, per §4.1's
// "parsing is pure... never abort the pipeline".
func Parse(env Envelope, nowUnix int64) (entity.IntentRecord, []string) {
	rec := entity.IntentRecord{
		Timestamp: nowUnix,
		SessionID: env.SessionID,
		ProjectID: env.ProjectID,
		ToolName:  normalizeToolName(env.ToolName),
		ToolUseID: env.ToolUseID,
		FileSizes: map[string]int64{},
	}

	var files []string
	var searchTags []string

	files = appendUnique(files, extractPathKeys(env.ToolInput)...)
	files = appendUnique(files, extractPathsList(env.ToolInput)...)

	if cmd, ok := stringField(env.ToolInput, "command"); ok {
		cmdTokens, tags := extractCommandTokens(cmd, env.ToolResponse)
		files = appendUnique(files, cmdTokens...)
		searchTags = append(searchTags, tags...)
	}

	if pattern, ok := stringField(env.ToolInput, "pattern"); ok {
		if strings.ContainsAny(pattern, "/*") {
			files = appendUnique(files, "pattern:"+pattern)
		}
	}

	if len(files) > entity.MaxFileTokens {
		files = files[:entity.MaxFileTokens]
	}
	rec.Files = files

	rec.OutputSize = outputSize(env.ToolResponse)
	rec.FileSizes = fileSizes(files)

	return rec, searchTags
}

func normalizeToolName(name string) string {
	switch name {
	case entity.ToolRead, entity.ToolEdit, entity.ToolWrite, entity.ToolBash,
		entity.ToolGrep, entity.ToolGlob, entity.ToolTask, entity.ToolPredict:
		return name
	default:
		return entity.ToolOther
	}
}

// extractPathKeys implements §4.1 rule 1: file_path/path/file/notebook_path,
// with offset/limit range suffixing.
func extractPathKeys(input map[string]any) []string {
	if input == nil {
		return nil
	}
	var out []string
	for _, key := range []string{"file_path", "path", "file", "notebook_path"} {
		v, ok := stringField(input, key)
		if !ok || v == "" {
			continue
		}
		out = append(out, v+offsetSuffix(input))
	}
	return out
}

func offsetSuffix(input map[string]any) string {
	offset, hasOffset := numberField(input, "offset")
	limit, hasLimit := numberField(input, "limit")
	switch {
	case hasOffset && hasLimit:
		return fmt.Sprintf(":%d-%d", offset, offset+limit)
	case hasOffset:
		return fmt.Sprintf(":%d+", offset)
	default:
		return ""
	}
}

// extractPathsList implements §4.1 rule 2.
func extractPathsList(input map[string]any) []string {
	if input == nil {
		return nil
	}
	raw, ok := input["paths"]
	if !ok {
		return nil
	}
	seq, ok := raw.([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range seq {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

// extractCommandTokens implements §4.1 rule 3 (a/b/c).
func extractCommandTokens(cmd string, response any) ([]string, []string) {
	var tokens []string
	var tags []string

	respText := responseText(response)
	cleanResp := ansiRe.ReplaceAllString(respText, "")

	matches := aoaCommandRe.FindAllStringSubmatchIndex(cmd, -1)
	if len(matches) > 0 {
		last := matches[len(matches)-1]
		sub := aoaCommandRe.FindStringSubmatch(cmd[last[0]:])
		name := sub[1]
		flag := sub[2]
		term := strings.Trim(sub[3], `"'`)

		searchType := classifySearchTypeWithFlag(name, flag, term)
		hits, ms := extractHitsAndTime(cleanResp)
		escaped := escapeColons(cmd)
		tokens = append(tokens, fmt.Sprintf("cmd:aoa:%s:%s:%d:%d", searchType, escaped, hits, ms))

		if hits > 0 {
			resultPaths := extractResultPaths(cleanResp)
			tokens = append(tokens, resultPaths...)
		}

		if term != "" {
			if tag := sanitizeSearchTag(term); tag != "" {
				tags = append(tags, "#"+tag)
			}
		}
	}

	tokens = append(tokens, extractInlinePaths(cmd)...)

	return tokens, tags
}

func classifySearchType(name, term string) string {
	switch name {
	case "grep":
		if strings.Contains(term, " ") || strings.Contains(term, "|") {
			return "multi-or"
		}
		return "indexed"
	case "egrep":
		return "regex"
	case "multi":
		return "multi-and"
	default:
		return name
	}
}

// classifySearchTypeWithFlag handles the -a/-E flag variants explicitly
// called out in §4.1.3a; kept separate from classifySearchType so the flag
// precedence (flag beats term heuristics) stays legible.
func classifySearchTypeWithFlag(name, flag, term string) string {
	if name == "grep" {
		switch flag {
		case "-a":
			return "multi-and"
		case "-E":
			return "regex"
		}
	}
	return classifySearchType(name, term)
}

func extractHitsAndTime(text string) (int, int) {
	m := hitsTimeRe.FindStringSubmatch(text)
	if m == nil {
		return 0, 0
	}
	hits, _ := strconv.Atoi(m[1])
	ms, _ := strconv.Atoi(m[2])
	return hits, ms
}

func extractResultPaths(text string) []string {
	var out []string
	seen := map[string]bool{}
	for _, line := range strings.Split(text, "\n") {
		m := resultLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		path := m[1]
		ext := extOf(path)
		if !allowedExtensions[ext] {
			continue
		}
		if seen[path] {
			continue
		}
		seen[path] = true
		out = append(out, path)
		if len(out) >= entity.MaxFileTokens {
			break
		}
	}
	return out
}

var inlinePathRe = regexp.MustCompile(`(?:^|[\s=])(/[\w./-]+\.([A-Za-z]+))`)

func extractInlinePaths(cmd string) []string {
	var out []string
	for _, m := range inlinePathRe.FindAllStringSubmatch(cmd, -1) {
		path, ext := m[1], strings.ToLower(m[2])
		if !allowedExtensions[ext] {
			continue
		}
		if !strings.Contains(strings.TrimPrefix(path, "/"), "/") {
			continue
		}
		out = append(out, path)
	}
	return out
}

func sanitizeSearchTag(term string) string {
	tag := searchTagRe.ReplaceAllString(strings.ToLower(term), "")
	if len(tag) > 20 {
		tag = tag[:20]
	}
	return tag
}

func escapeColons(s string) string {
	return strings.ReplaceAll(s, ":", `\:`)
}

func extOf(path string) string {
	idx := strings.LastIndex(path, ".")
	if idx < 0 {
		return ""
	}
	return strings.ToLower(path[idx+1:])
}

func outputSize(response any) int {
	switch v := response.(type) {
	case nil:
		return 0
	case string:
		return len(v)
	case map[string]any:
		if content, ok := v["content"].(string); ok {
			return len(content)
		}
		data, err := json.Marshal(v)
		if err != nil {
			return 0
		}
		return len(data)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return 0
		}
		return len(data)
	}
}

func responseText(response any) string {
	switch v := response.(type) {
	case string:
		return v
	case map[string]any:
		if content, ok := v["content"].(string); ok {
			return content
		}
	}
	return ""
}

// fileSizes stats every non-prefixed absolute path token per §4.1's "File
// sizes" step. Failures are omitted, never surfaced as an error.
func fileSizes(files []string) map[string]int64 {
	out := map[string]int64{}
	for _, f := range files {
		if strings.HasPrefix(f, "pattern:") || strings.HasPrefix(f, "cmd:") {
			continue
		}
		path := stripRangeSuffix(f)
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		out[f] = info.Size()
	}
	return out
}

var rangeSuffixRe = regexp.MustCompile(`:\d+(-\d+|\+)$`)

func stripRangeSuffix(token string) string {
	return rangeSuffixRe.ReplaceAllString(token, "")
}

func stringField(m map[string]any, key string) (string, bool) {
	if m == nil {
		return "", false
	}
	v, ok := m[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func numberField(m map[string]any, key string) (int, bool) {
	if m == nil {
		return 0, false
	}
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	default:
		return 0, false
	}
}

func appendUnique(existing []string, add ...string) []string {
	seen := make(map[string]bool, len(existing))
	for _, e := range existing {
		seen[e] = true
	}
	for _, a := range add {
		if a == "" || seen[a] {
			continue
		}
		seen[a] = true
		existing = append(existing, a)
	}
	return existing
}
