package rewrite

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

const (
	defaultTimeout  = 60 * time.Second
	defaultVariants = 3
	defaultDialect  = "generic (closest to PostgreSQL)"
)

// Provider is one OpenAI-compatible chat-completions endpoint.
type Provider struct {
	URL    string
	Model  string
	APIKey string
}

// Config is everything the client needs; nothing is read from the environment.
type Config struct {
	Providers    map[string]Provider
	HTTPClient   *http.Client
	Timeout      time.Duration
	ExtraHeaders map[string]string
	ExtraPayload map[string]any
	Logger       log.Logger
}

// Request describes one generation call.
type Request struct {
	SQL         string
	Dialect     string
	NVariants   int
	Temperature float64
	Provider    string
}

// Client requests rewrite candidates from a chat-completions API.
type Client struct {
	cfg    Config
	http   *http.Client
	logger log.Logger
}

// New builds a client from an explicit configuration.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Client{cfg: cfg, http: httpClient, logger: log.With(logger, "component", "rewrite")}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message *struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Generate issues exactly one request and returns the parsed candidates.
func (c *Client) Generate(ctx context.Context, req Request) ([]Candidate, error) {
	sqlText := strings.TrimSpace(req.SQL)
	if sqlText == "" {
		return nil, &GenerationError{Kind: KindInput, Err: errors.New("empty sql statement")}
	}
	provider, err := c.resolve(req.Provider)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(c.payload(provider, sqlText, req))
	if err != nil {
		return nil, &GenerationError{Kind: KindInput, Err: fmt.Errorf("encode request: %w", err)}
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, provider.URL, bytes.NewReader(body))
	if err != nil {
		return nil, &GenerationError{Kind: KindTransport, Err: fmt.Errorf("build request: %w", err)}
	}
	httpReq.Header.Set("Authorization", "Bearer "+provider.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range c.cfg.ExtraHeaders {
		httpReq.Header.Set(k, v)
	}

	started := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, transportError(err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(err)
	}
	level.Debug(c.logger).Log("msg", "chat completion returned", "provider", req.Provider,
		"status", resp.StatusCode, "bytes", len(raw), "elapsed", time.Since(started))

	if resp.StatusCode != http.StatusOK {
		return nil, &GenerationError{Kind: KindStatus, StatusCode: resp.StatusCode, Excerpt: excerpt(string(raw))}
	}

	return parseResponse(raw)
}

func (c *Client) resolve(name string) (Provider, error) {
	provider, ok := c.cfg.Providers[name]
	if !ok {
		return Provider{}, &ConfigError{Provider: name, Reason: "unknown provider"}
	}
	if strings.TrimSpace(provider.URL) == "" {
		return Provider{}, &ConfigError{Provider: name, Reason: "missing endpoint url"}
	}
	if strings.TrimSpace(provider.APIKey) == "" {
		return Provider{}, &ConfigError{Provider: name, Reason: "missing api key"}
	}
	return provider, nil
}

func (c *Client) payload(provider Provider, sqlText string, req Request) map[string]any {
	n := req.NVariants
	if n <= 0 {
		n = defaultVariants
	}
	dialect := strings.TrimSpace(req.Dialect)
	if dialect == "" {
		dialect = defaultDialect
	}
	payload := map[string]any{
		"model":           provider.Model,
		"temperature":     req.Temperature,
		"response_format": map[string]string{"type": "json_object"},
		"messages": []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt(dialect, sqlText, n)},
		},
	}
	for k, v := range c.cfg.ExtraPayload {
		payload[k] = v
	}
	return payload
}

func parseResponse(raw []byte) ([]Candidate, error) {
	var resp chatResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, &GenerationError{Kind: KindDecode, Err: err, Excerpt: excerpt(string(raw))}
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message == nil || resp.Choices[0].Message.Content == nil {
		return nil, &GenerationError{Kind: KindContent, Err: errors.New("response has no message content"), Excerpt: excerpt(string(raw))}
	}
	content := *resp.Choices[0].Message.Content

	var parsed map[string]json.RawMessage
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, &GenerationError{Kind: KindContent, Err: fmt.Errorf("model returned invalid json: %w", err), Excerpt: excerpt(content)}
	}
	rawCandidates, ok := parsed["candidates"]
	if !ok {
		return nil, &GenerationError{Kind: KindEmpty, Err: errors.New("no candidates in model output"), Excerpt: excerpt(content)}
	}
	var candidates []Candidate
	if err := json.Unmarshal(rawCandidates, &candidates); err != nil {
		return nil, &GenerationError{Kind: KindEmpty, Err: fmt.Errorf("candidates is not a list: %w", err), Excerpt: excerpt(content)}
	}
	if len(candidates) == 0 {
		return nil, &GenerationError{Kind: KindEmpty, Err: errors.New("empty candidates list"), Excerpt: excerpt(content)}
	}
	for i := range candidates {
		candidates[i].Tags = dedupe(candidates[i].Tags)
	}
	return candidates, nil
}

func transportError(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &GenerationError{Kind: KindTimeout, Err: err}
	}
	return &GenerationError{Kind: KindTransport, Err: err}
}

func dedupe(tags []string) []string {
	if len(tags) == 0 {
		return tags
	}
	seen := make(map[string]struct{}, len(tags))
	out := tags[:0]
	for _, t := range tags {
		key := strings.ToLower(strings.TrimSpace(t))
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, t)
	}
	return out
}
