// Package translate implements the AI translation client used to fill in
// missing resource strings. It speaks to any OpenAI-compatible
// chat/completions endpoint over plain HTTP.
//
// The contract with the model is strict: it receives a JSON object of
// key→source-text pairs and must return a JSON object with the same keys
// (a subset is acceptable) and translated values, with no prose or
// markdown wrapping. Markdown code fences are stripped defensively before
// parsing because models add them anyway.
package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ---------------------------------------------------------------------------
// Provider configuration
// ---------------------------------------------------------------------------

// Provider holds the configuration for the translation endpoint.
type Provider struct {
	// BaseURL is the API base URL (with or without /chat/completions).
	BaseURL string
	// APIKey is the bearer token. Empty for local services.
	APIKey string
	// Model is the model identifier.
	Model string
	// Proxy is an optional HTTP/HTTPS proxy URL.
	Proxy string
	// Timeout is the per-request timeout (default 120s).
	Timeout time.Duration
	// MaxRetries is the number of transparent retries on transient
	// failure before TranslateBatch reports an error (default 3).
	MaxRetries int
}

func (p Provider) effectiveTimeout() time.Duration {
	if p.Timeout > 0 {
		return p.Timeout
	}
	return 120 * time.Second
}

func (p Provider) effectiveMaxRetries() int {
	if p.MaxRetries > 0 {
		return p.MaxRetries
	}
	return 3
}

// endpoint returns the full chat/completions URL.
func (p Provider) endpoint() string {
	base := strings.TrimRight(p.BaseURL, "/")
	if strings.HasSuffix(base, "/chat/completions") {
		return base
	}
	return base + "/chat/completions"
}

// ---------------------------------------------------------------------------
// System prompt
// ---------------------------------------------------------------------------

// SystemPrompt is the translation instruction sent with every batch.
// {{targetLang}} is replaced with the target language name and
// {{context}} with an optional application description.
const SystemPrompt = `You are a professional translator for software localization. You are translating UI resource strings.
{{context}}
Translation Guidelines:
1. Maintain the original meaning and tone.
2. Keep placeholders intact (e.g. {0}, {1}).
3. Preserve formatting characters (e.g. \n, \r) exactly as they appear.
4. Use natural, native expressions for the target language: {{targetLang}}.
5. Keep technical terms consistent.
6. For language names (like "中文 (简体)"), DO NOT TRANSLATE — keep them as is.
7. For proper nouns, brand names, and trademarks, DO NOT TRANSLATE — keep them as is.
8. Ensure UI text is concise and clear for a software interface.
9. Return ONLY a valid JSON object with the same keys and translated values. Do NOT add any explanations, comments, or markdown formatting.`

// renderPrompt substitutes the target language and optional app context
// into the system prompt.
func renderPrompt(prompt, targetLang, appContext string) string {
	ctxBlock := ""
	if appContext != "" {
		ctxBlock = "\nSoftware Context:\n" + appContext + "\n"
	}
	prompt = strings.ReplaceAll(prompt, "{{context}}", ctxBlock)
	return strings.ReplaceAll(prompt, "{{targetLang}}", targetLang)
}

// ---------------------------------------------------------------------------
// Client
// ---------------------------------------------------------------------------

// Client calls an OpenAI-compatible endpoint to translate key→text batches.
// It satisfies the syncer.Translator interface.
type Client struct {
	prov Provider
	// AppContext is an optional application description injected into the
	// system prompt so the model understands the UI domain.
	AppContext string
	// SystemPrompt overrides the default prompt when non-empty.
	SystemPrompt string

	httpc *http.Client
}

// NewClient builds a translation client for the given provider.
func NewClient(prov Provider) *Client {
	return &Client{
		prov:  prov,
		httpc: makeHTTPClient(prov.Proxy, prov.effectiveTimeout()),
	}
}

// makeHTTPClient builds an HTTP client honoring --proxy or the standard
// HTTP_PROXY/HTTPS_PROXY environment variables.
func makeHTTPClient(proxyURL string, timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	if proxyURL != "" {
		if parsed, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(parsed)
		}
	} else {
		transport.Proxy = http.ProxyFromEnvironment
	}

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

// TranslateBatch sends one batch of key→source-text pairs for translation
// into targetLang and returns the key→translated-text mapping the model
// produced. Transport errors, non-parseable responses, and empty responses
// all surface as an error after the retry budget is exhausted; the caller
// treats them identically (batch unresolved).
func (c *Client) TranslateBatch(ctx context.Context, items map[string]string, targetLang string) (map[string]string, error) {
	prompt := c.SystemPrompt
	if prompt == "" {
		prompt = SystemPrompt
	}
	systemPrompt := renderPrompt(prompt, targetLang, c.AppContext)

	userPrompt, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding batch: %w", err)
	}

	body, err := buildChatRequest(c.prov.Model, systemPrompt, string(userPrompt), 0.3)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	text, err := c.call(ctx, body)
	if err != nil {
		return nil, err
	}

	return parseBatchResponse(text)
}

// call posts the request body and returns the model's text output, retrying
// transient failures with exponential backoff and honoring 429 retry hints.
func (c *Client) call(ctx context.Context, body []byte) (string, error) {
	maxRetries := c.prov.effectiveMaxRetries()
	endpoint := c.prov.endpoint()

	for attempt := 0; attempt <= maxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(body))
		if err != nil {
			return "", fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.prov.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.prov.APIKey)
		}

		resp, err := c.httpc.Do(req)
		if err != nil {
			if attempt < maxRetries {
				if werr := sleepBackoff(ctx, attempt); werr != nil {
					return "", werr
				}
				continue
			}
			return "", fmt.Errorf("API request failed: %w", err)
		}

		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			retryDelay := parseRetryDelay(respBody)
			if attempt < maxRetries {
				select {
				case <-ctx.Done():
					return "", ctx.Err()
				case <-time.After(retryDelay):
				}
				continue
			}
			return "", fmt.Errorf("rate limited after %d retries: %s", maxRetries, truncate(string(respBody), 300))
		}

		if resp.StatusCode != http.StatusOK {
			if attempt < maxRetries && resp.StatusCode >= 500 {
				if werr := sleepBackoff(ctx, attempt); werr != nil {
					return "", werr
				}
				continue
			}
			return "", fmt.Errorf("API returned status %d: %s", resp.StatusCode, truncate(string(respBody), 500))
		}

		return extractResponseText(respBody)
	}

	return "", fmt.Errorf("exhausted all %d retries", maxRetries)
}

// sleepBackoff waits 2^attempt seconds or until the context is cancelled.
func sleepBackoff(ctx context.Context, attempt int) error {
	wait := time.Duration(math.Pow(2, float64(attempt))) * time.Second
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return nil
	}
}

// ---------------------------------------------------------------------------
// Request building
// ---------------------------------------------------------------------------

// buildChatRequest constructs an OpenAI chat/completions request body.
// response_format json_object nudges compliant endpoints into returning
// bare JSON; non-compliant ones ignore the field.
func buildChatRequest(model, systemPrompt, userPrompt string, temperature float64) ([]byte, error) {
	type msg struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	type respFormat struct {
		Type string `json:"type"`
	}
	req := struct {
		Model          string     `json:"model"`
		Messages       []msg      `json:"messages"`
		Temperature    float64    `json:"temperature"`
		Stream         bool       `json:"stream"`
		ResponseFormat respFormat `json:"response_format"`
	}{
		Model: model,
		Messages: []msg{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature:    temperature,
		Stream:         false,
		ResponseFormat: respFormat{Type: "json_object"},
	}
	return json.Marshal(req)
}

// ---------------------------------------------------------------------------
// Response parsing
// ---------------------------------------------------------------------------

// extractResponseText pulls the assistant message text out of a
// chat/completions response, surfacing API-level errors.
func extractResponseText(body []byte) (string, error) {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return "", fmt.Errorf("invalid JSON response: %w", err)
	}

	if errObj, ok := raw["error"]; ok {
		if errMap, ok := errObj.(map[string]any); ok {
			if msg, ok := errMap["message"].(string); ok {
				return "", fmt.Errorf("API error: %s", msg)
			}
		}
		return "", fmt.Errorf("API error: %v", errObj)
	}

	if choices, ok := raw["choices"].([]any); ok && len(choices) > 0 {
		if choice, ok := choices[0].(map[string]any); ok {
			if message, ok := choice["message"].(map[string]any); ok {
				if content, ok := message["content"].(string); ok {
					return content, nil
				}
			}
		}
	}

	return "", fmt.Errorf("could not extract text from response: %s", truncate(string(body), 500))
}

var markdownCodeBlock = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// parseBatchResponse decodes the model output into a key→text mapping.
// Markdown code fences and surrounding prose are stripped first; an empty
// or object-free response is an error.
func parseBatchResponse(content string) (map[string]string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("empty response from model")
	}

	if m := markdownCodeBlock.FindStringSubmatch(content); len(m) > 1 {
		content = m[1]
	}

	// Tolerate a prose envelope around the object.
	startIdx := strings.Index(content, "{")
	endIdx := strings.LastIndex(content, "}")
	if startIdx < 0 || endIdx <= startIdx {
		return nil, fmt.Errorf("no JSON object in response: %s", truncate(content, 300))
	}
	content = content[startIdx : endIdx+1]

	var result map[string]string
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		return nil, fmt.Errorf("parsing translation response: %w\nResponse: %s", err, truncate(content, 300))
	}
	if len(result) == 0 {
		return nil, fmt.Errorf("model returned no translations")
	}
	return result, nil
}

// parseRetryDelay extracts the retry delay from a 429 response body.
// Looks for a RetryInfo detail with a retryDelay field; defaults to
// 60s plus a 5s buffer.
func parseRetryDelay(body []byte) time.Duration {
	const defaultDelay = 65 * time.Second

	var errResp struct {
		Error struct {
			Details []struct {
				Type       string `json:"@type"`
				RetryDelay string `json:"retryDelay"`
			} `json:"details"`
		} `json:"error"`
	}

	if err := json.Unmarshal(body, &errResp); err != nil {
		return defaultDelay
	}

	for _, detail := range errResp.Error.Details {
		if strings.Contains(detail.Type, "RetryInfo") && detail.RetryDelay != "" {
			d := strings.TrimSuffix(detail.RetryDelay, "s")
			if secs, err := strconv.ParseFloat(d, 64); err == nil {
				return time.Duration(secs*1000)*time.Millisecond + 5*time.Second
			}
		}
	}

	return defaultDelay
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
