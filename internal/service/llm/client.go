// Package llm calls the Gemini generateContent endpoint, rotating across a
// pool of API keys with per-key retry and exponential backoff.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrMalformedRequest is returned when the provider rejects the request
	// body itself. Retrying or switching keys cannot help, so the message is
	// surfaced to the caller verbatim.
	ErrMalformedRequest = errors.New("upstream rejected the request as malformed")
	// ErrKeysExhausted is returned when every credential ran out of attempts.
	ErrKeysExhausted = errors.New("all upstream keys exhausted")
)

const (
	maxAttemptsPerKey = 5
	initialBackoff    = 1 * time.Second
	maxBackoff        = 16 * time.Second
	defaultTimeout    = 30 * time.Second
)

// Config describes the upstream endpoint and its credential pool.
type Config struct {
	APIKeys []string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// Client issues generation requests against an ordered pool of API keys. The
// pool is read-only after construction; retry state is local to a single
// Generate call, so a Client is safe for concurrent use.
type Client struct {
	keys    []string
	model   string
	baseURL string
	httpc   *http.Client
	sleep   func(ctx context.Context, d time.Duration) error
	logger  *zap.Logger
}

func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if len(cfg.APIKeys) == 0 {
		return nil, errors.New("llm: credential pool is empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		keys:    append([]string(nil), cfg.APIKeys...),
		model:   cfg.Model,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpc:   &http.Client{Timeout: timeout},
		sleep:   sleepCtx,
		logger:  logger,
	}, nil
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Role  string `json:"role"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Generate relays one prompt/message pair upstream and returns the first
// generated candidate, rotating keys per the failover policy.
func (c *Client) Generate(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	payload, err := json.Marshal(generateRequest{
		Contents: []content{
			{Role: "user", Parts: []part{{Text: systemPrompt}}},
			{Role: "user", Parts: []part{{Text: userMessage}}},
		},
	})
	if err != nil {
		return "", fmt.Errorf("llm: encoding request: %w", err)
	}

	rot := newRotation(len(c.keys))
	for !rot.done() {
		text, status, err := c.attempt(ctx, c.keys[rot.key], payload)
		if err != nil {
			return "", err
		}
		if status.ok {
			return text, nil
		}

		if status.out == outcomeTransport {
			c.logger.Warn("upstream transport failure",
				zap.Int("key_index", rot.key),
				zap.Int("attempt", rot.attempt),
				zap.Error(status.cause))
			if rot.lastChance() {
				return "", fmt.Errorf("llm: upstream call failed: %w", status.cause)
			}
		}

		if delay := rot.advance(status.out); delay > 0 {
			if err := c.sleep(ctx, delay); err != nil {
				return "", err
			}
		}
	}

	return "", ErrKeysExhausted
}

// attemptStatus reports a non-terminal attempt failure to the rotation.
type attemptStatus struct {
	ok    bool
	out   outcome
	cause error
}

func (c *Client) attempt(ctx context.Context, key string, payload []byte) (string, attemptStatus, error) {
	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, key)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", attemptStatus{}, fmt.Errorf("llm: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", attemptStatus{out: outcomeTransport, cause: err}, nil
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		text, err := decodeCandidateText(resp.Body)
		if err != nil {
			return "", attemptStatus{}, err
		}
		return text, attemptStatus{ok: true}, nil

	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable:
		drain(resp.Body)
		return "", attemptStatus{out: outcomeThrottled}, nil

	case resp.StatusCode == http.StatusBadRequest:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", attemptStatus{}, fmt.Errorf("%w: %s", ErrMalformedRequest, strings.TrimSpace(string(body)))

	default:
		drain(resp.Body)
		return "", attemptStatus{out: outcomeKeyFailed}, nil
	}
}

func decodeCandidateText(r io.Reader) (string, error) {
	var parsed generateResponse
	if err := json.NewDecoder(r).Decode(&parsed); err != nil {
		return "", fmt.Errorf("llm: decoding response: %w", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("llm: response contained no candidates")
	}
	return parsed.Candidates[0].Content.Parts[0].Text, nil
}

func drain(r io.Reader) {
	io.Copy(io.Discard, r)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
