// Package recognition talks to the external image recognition and transcript
// interpretation endpoints and parses their loosely structured output.
package recognition

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"pantry/internal/core"
)

// maxResponseBytes caps how much of an endpoint response is read.
const maxResponseBytes = 4 << 20

var (
	ErrEndpointNotConfigured = errors.New("recognition endpoint not configured")
	// ErrEndpointFailed covers transport errors and non-2xx responses.
	ErrEndpointFailed = errors.New("recognition endpoint failed")
)

// Client calls the recognition endpoints over HTTP.
type Client struct {
	http         *http.Client
	recognizeURL string
	interpretURL string
}

func NewClient(recognizeURL, interpretURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		http:         newHTTPClient(timeout),
		recognizeURL: strings.TrimSpace(recognizeURL),
		interpretURL: strings.TrimSpace(interpretURL),
	}
}

// newHTTPClient returns a pooled client with bounded dial and header timeouts.
func newHTTPClient(timeout time.Duration) *http.Client {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   5,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{Transport: transport, Timeout: timeout}
}

// Recognize sends an image reference and returns the recognized items.
// Malformed entries are dropped; their count is returned.
func (c *Client) Recognize(ctx context.Context, imageURL string) ([]core.RecognizedItem, int, error) {
	if c.recognizeURL == "" {
		return nil, 0, ErrEndpointNotConfigured
	}
	body, err := c.post(ctx, c.recognizeURL, map[string]string{"imageUrl": imageURL})
	if err != nil {
		return nil, 0, fmt.Errorf("recognize image: %w", err)
	}

	var envelope struct {
		RecognizedItems []json.RawMessage `json:"recognizedItems"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.RecognizedItems != nil {
		lines := make([]string, len(envelope.RecognizedItems))
		for i, raw := range envelope.RecognizedItems {
			lines[i] = string(raw)
		}
		items, dropped := ParseRecognitionBatch(ctx, lines)
		return items, dropped, nil
	}

	items, dropped := ParseRecognitionOutput(ctx, string(body))
	return items, dropped, nil
}

// Interpret sends a free-text transcript and returns the operations it implies.
func (c *Client) Interpret(ctx context.Context, transcript string) ([]core.Operation, int, error) {
	if c.interpretURL == "" {
		return nil, 0, ErrEndpointNotConfigured
	}
	body, err := c.post(ctx, c.interpretURL, map[string]string{"transcript": transcript})
	if err != nil {
		return nil, 0, fmt.Errorf("interpret transcript: %w", err)
	}

	var envelope struct {
		InterpretedOperations json.RawMessage `json:"interpretedOperations"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && len(envelope.InterpretedOperations) > 0 {
		// Some endpoints return the model text as a JSON string.
		var text string
		if err := json.Unmarshal(envelope.InterpretedOperations, &text); err == nil {
			return ParseOperations(ctx, text)
		}
		return ParseOperations(ctx, string(envelope.InterpretedOperations))
	}
	return ParseOperations(ctx, string(body))
}

func (c *Client) post(ctx context.Context, url string, payload any) ([]byte, error) {
	buf, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: call %s: %v", ErrEndpointFailed, url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	slog.DebugContext(ctx, "Recognition endpoint responded",
		"url", url,
		"status", resp.StatusCode,
		"bytes", len(body),
		"duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %s returned status %d", ErrEndpointFailed, url, resp.StatusCode)
	}
	return body, nil
}
