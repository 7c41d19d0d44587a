// Package aoaclient is the Go SDK client for the AOA Observatory HTTP
// facade, adapted from the teacher's sdk/go/ngoclaw/client.go: a small
// *http.Client wrapper with functional options and one method per §6
// endpoint.
package aoaclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client talks to one AOA Observatory server over loopback HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures the client.
type Option func(*Client)

// WithTimeout overrides the client's default HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithBaseURL overrides the server base URL set at construction.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(baseURL, "/") }
}

// NewClient builds a Client against baseURL with a 2-second HTTP timeout
// (§5's client-side bound) applied to every call, reads and writes alike;
// WithTimeout overrides it, and a caller's context deadline can shorten it.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 2 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IntentRequest mirrors the §6 POST /intent body.
type IntentRequest struct {
	SessionID    string         `json:"session_id"`
	ProjectID    string         `json:"project_id"`
	Tool         string         `json:"tool"`
	ToolInput    map[string]any `json:"tool_input,omitempty"`
	ToolResponse any            `json:"tool_response,omitempty"`
	ToolUseID    string         `json:"tool_use_id,omitempty"`
}

// PredictedFile is one ranked candidate from GET /predict.
type PredictedFile struct {
	Path       string  `json:"path"`
	Confidence float64 `json:"confidence"`
	Snippet    string  `json:"snippet"`
}

// LogPredictionRequest mirrors the §6 POST /predict/log body.
type LogPredictionRequest struct {
	SessionID      string   `json:"session_id"`
	PredictedFiles []string `json:"predicted_files"`
	Tags           []string `json:"tags"`
	TriggerFile    string   `json:"trigger_file"`
	Confidence     float64  `json:"confidence"`
}

// Metrics mirrors the §6 GET /metrics response's "rolling" object.
type Metrics struct {
	HitAt5Pct   float64 `json:"hit_at_5_pct"`
	Evaluated   int     `json:"evaluated"`
	Calibrating bool    `json:"calibrating"`
}

// DomainsStats mirrors the §6 GET /domains/stats response.
type DomainsStats struct {
	Domains         []Domain `json:"domains"`
	LearningPending bool     `json:"learning_pending"`
	TuneCount       int      `json:"tune_count"`
	TuningPending   bool     `json:"tuning_pending"`
	OrphanCount     int      `json:"orphan_count"`
}

// Domain mirrors entity.Domain's JSON shape.
type Domain struct {
	Name        string    `json:"name"`
	Terms       []string  `json:"terms"`
	LastTouched time.Time `json:"last_touched"`
	StaleCycles int       `json:"stale_cycles"`
}

// ProposedDomain mirrors a learner.ProposedDomain for POST /domains/add.
type ProposedDomain struct {
	Name  string   `json:"name"`
	Terms []string `json:"terms"`
}

// TuneResult mirrors the §6 POST /domains/tune/math response.
type TuneResult struct {
	Success             bool `json:"success"`
	TermsPruned         int  `json:"terms_pruned"`
	DomainsActive       int  `json:"domains_active"`
	DomainsFlaggedStale int  `json:"domains_flagged_stale"`
	DomainsDeprecated   int  `json:"domains_deprecated"`
}

// Health reports whether the server answered GET /health with 200. A
// transport error, a timeout and a 5xx all yield false (§7); the other
// client methods return such failures as errors.
func (c *Client) Health(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// AppendIntent posts one observation to POST /intent.
func (c *Client) AppendIntent(ctx context.Context, req IntentRequest) error {
	return c.postNoContent(ctx, "/intent", req)
}

// RecentIntents calls GET /intent/recent.
func (c *Client) RecentIntents(ctx context.Context, limit int, projectID string) (json.RawMessage, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if projectID != "" {
		q.Set("project_id", projectID)
	}
	return c.get(ctx, "/intent/recent", q)
}

// Predict calls GET /predict with an explicit keyword set.
func (c *Client) Predict(ctx context.Context, keywords []string, limit, snippetLines int) ([]PredictedFile, error) {
	return c.predict(ctx, keywords, "", limit, snippetLines)
}

// PredictFromPrompt calls GET /predict with a free-text prompt, letting
// the server run C4's keyword-extraction algorithm (§4.4) instead of
// pre-splitting keywords client-side — the prompt-submit path described in
// §2's "prompt text → C4 (keyword extract → candidate scoring)".
func (c *Client) PredictFromPrompt(ctx context.Context, prompt string, limit, snippetLines int) ([]PredictedFile, error) {
	return c.predict(ctx, nil, prompt, limit, snippetLines)
}

func (c *Client) predict(ctx context.Context, keywords []string, prompt string, limit, snippetLines int) ([]PredictedFile, error) {
	q := url.Values{}
	if len(keywords) > 0 {
		q.Set("keywords", strings.Join(keywords, ","))
	} else if prompt != "" {
		q.Set("prompt", prompt)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if snippetLines > 0 {
		q.Set("snippet_lines", strconv.Itoa(snippetLines))
	}

	raw, err := c.get(ctx, "/predict", q)
	if err != nil {
		return nil, err
	}

	var decoded struct {
		Files []PredictedFile `json:"files"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("decode predict response: %w", err)
	}
	return decoded.Files, nil
}

// LogPrediction posts POST /predict/log.
func (c *Client) LogPrediction(ctx context.Context, req LogPredictionRequest) error {
	return c.postNoContent(ctx, "/predict/log", req)
}

// CheckPrediction posts POST /predict/check.
func (c *Client) CheckPrediction(ctx context.Context, sessionID, projectID, file string) error {
	body := struct {
		SessionID string `json:"session_id"`
		ProjectID string `json:"project_id"`
		File      string `json:"file"`
	}{sessionID, projectID, file}
	return c.postNoContent(ctx, "/predict/check", body)
}

// GetMetrics calls GET /metrics.
func (c *Client) GetMetrics(ctx context.Context) (Metrics, error) {
	raw, err := c.get(ctx, "/metrics", nil)
	if err != nil {
		return Metrics{}, err
	}
	var decoded struct {
		Rolling Metrics `json:"rolling"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return Metrics{}, fmt.Errorf("decode metrics response: %w", err)
	}
	return decoded.Rolling, nil
}

// DomainsStats calls GET /domains/stats.
func (c *Client) DomainsStats(ctx context.Context, project string) (DomainsStats, error) {
	q := url.Values{}
	if project != "" {
		q.Set("project", project)
	}
	raw, err := c.get(ctx, "/domains/stats", q)
	if err != nil {
		return DomainsStats{}, err
	}
	var stats DomainsStats
	if err := json.Unmarshal(raw, &stats); err != nil {
		return DomainsStats{}, fmt.Errorf("decode domains/stats response: %w", err)
	}
	return stats, nil
}

// DomainsOrphans calls GET /domains/orphans.
func (c *Client) DomainsOrphans(ctx context.Context, project string, limit int) ([]string, error) {
	q := url.Values{}
	if project != "" {
		q.Set("project", project)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	raw, err := c.get(ctx, "/domains/orphans", q)
	if err != nil {
		return nil, err
	}
	var decoded struct {
		Orphans []string `json:"orphans"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("decode domains/orphans response: %w", err)
	}
	return decoded.Orphans, nil
}

// DomainsList calls GET /domains/list.
func (c *Client) DomainsList(ctx context.Context, project string, limit int) ([]Domain, error) {
	q := url.Values{}
	if project != "" {
		q.Set("project", project)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	raw, err := c.get(ctx, "/domains/list", q)
	if err != nil {
		return nil, err
	}
	var decoded struct {
		Domains []Domain `json:"domains"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("decode domains/list response: %w", err)
	}
	return decoded.Domains, nil
}

// DomainsAdd posts POST /domains/add.
func (c *Client) DomainsAdd(ctx context.Context, project string, domains []ProposedDomain) error {
	body := struct {
		Project string           `json:"project"`
		Domains []ProposedDomain `json:"domains"`
	}{project, domains}

	req, err := c.newJSONRequest(ctx, http.MethodPost, "/domains/add", body)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("POST /domains/add: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("domains/add rejected (%d): %s", resp.StatusCode, string(respBody))
	}
	return nil
}

// DomainsLearned posts POST /domains/learned.
func (c *Client) DomainsLearned(ctx context.Context, project string) error {
	body := struct {
		Project string `json:"project"`
	}{project}
	return c.postNoContent(ctx, "/domains/learned", body)
}

// DomainsTuneMath posts POST /domains/tune/math.
func (c *Client) DomainsTuneMath(ctx context.Context, project string) (TuneResult, error) {
	body := struct {
		Project string `json:"project"`
	}{project}

	req, err := c.newJSONRequest(ctx, http.MethodPost, "/domains/tune/math", body)
	if err != nil {
		return TuneResult{}, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return TuneResult{}, fmt.Errorf("POST /domains/tune/math: %w", err)
	}
	defer resp.Body.Close()

	var result TuneResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return TuneResult{}, fmt.Errorf("decode tune/math response: %w", err)
	}
	return result, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values) (json.RawMessage, error) {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned %d: %s", path, resp.StatusCode, string(body))
	}
	return body, nil
}

func (c *Client) postNoContent(ctx context.Context, path string, body any) error {
	req, err := c.newJSONRequest(ctx, http.MethodPost, path, body)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s returned %d: %s", path, resp.StatusCode, string(respBody))
	}
	return nil
}

func (c *Client) newJSONRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}
