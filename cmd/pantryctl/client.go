package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	apphttp "pantry/internal/http"
)

type category struct {
	Name  string `json:"name"`
	Color string `json:"color"`
	Hex   string `json:"hex,omitempty"`
}

type item struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Amount     string     `json:"amount"`
	Categories []category `json:"categories"`
	CreatedAt  string     `json:"createdAt,omitempty"`
}

type recognizedItem struct {
	Name       string     `json:"name"`
	Amount     string     `json:"amount"`
	Categories []category `json:"categories"`
}

type batch struct {
	ID                string           `json:"id"`
	Items             []recognizedItem `json:"items"`
	CreatedCategories []category       `json:"createdCategories"`
	Dropped           int              `json:"dropped"`
}

type itemResult struct {
	Action string `json:"action"`
	Item   item   `json:"item"`
}

type confirmResult struct {
	Items               []itemResult `json:"items"`
	Skipped             int          `json:"skipped"`
	PersistedCategories []category   `json:"persistedCategories"`
}

// apiError is a non-2xx answer from the server.
type apiError struct {
	Status int
	Body   apphttp.ErrorBody
}

func (e *apiError) Error() string {
	msg := e.Body.Error
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if e.Body.RequestID != "" {
		return fmt.Sprintf("server returned %d: %s (request %s)", e.Status, msg, e.Body.RequestID)
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, msg)
}

type apiClient struct {
	baseURL string
	http    *http.Client
}

func newAPIClient(baseURL string) *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *apiClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	slog.Debug("API call", "method", method, "path", path, "status", resp.StatusCode, "duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode >= 300 {
		apiErr := &apiError{Status: resp.StatusCode}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&apiErr.Body)
		return apiErr
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *apiClient) ListCategories(ctx context.Context) ([]category, error) {
	var out struct {
		Categories []category `json:"categories"`
	}
	err := c.do(ctx, http.MethodGet, "/api/categories", nil, &out)
	return out.Categories, err
}

func (c *apiClient) CreateCategory(ctx context.Context, name, color string) (category, bool, error) {
	var out struct {
		Category category `json:"category"`
		Created  bool     `json:"created"`
	}
	err := c.do(ctx, http.MethodPost, "/api/categories", map[string]string{"name": name, "color": color}, &out)
	return out.Category, out.Created, err
}

func (c *apiClient) DeleteCategory(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodDelete, "/api/categories/"+url.PathEscape(name), nil, nil)
}

func (c *apiClient) SeedCategories(ctx context.Context) ([]category, error) {
	var out struct {
		Created []category `json:"created"`
	}
	err := c.do(ctx, http.MethodPost, "/api/categories/seed", nil, &out)
	return out.Created, err
}

func (c *apiClient) ListItems(ctx context.Context) ([]item, error) {
	var out struct {
		Items []item `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, "/api/items", nil, &out)
	return out.Items, err
}

func (c *apiClient) SearchItems(ctx context.Context, query, cat string) ([]item, error) {
	q := url.Values{}
	if query != "" {
		q.Set("q", query)
	}
	if cat != "" {
		q.Set("category", cat)
	}
	var out struct {
		Items []item `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, "/api/items/search?"+q.Encode(), nil, &out)
	return out.Items, err
}

type itemInput struct {
	Name              string   `json:"name"`
	Amount            string   `json:"amount"`
	Categories        []string `json:"categories"`
	PersistCategories bool     `json:"persistCategories"`
}

func (c *apiClient) AddItem(ctx context.Context, in itemInput) (itemResult, error) {
	var out itemResult
	err := c.do(ctx, http.MethodPost, "/api/items", in, &out)
	return out, err
}

func (c *apiClient) DeleteItem(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/items/"+url.PathEscape(id), nil, nil)
}

func (c *apiClient) PreviewRecognition(ctx context.Context, output string) (batch, error) {
	var out struct {
		Batch batch `json:"batch"`
	}
	err := c.do(ctx, http.MethodPost, "/api/recognitions", map[string]string{"output": output}, &out)
	return out.Batch, err
}

func (c *apiClient) ConfirmRecognition(ctx context.Context, id string, persistCategories bool) (confirmResult, error) {
	var out confirmResult
	err := c.do(ctx, http.MethodPost, "/api/recognitions/"+url.PathEscape(id)+"/confirm",
		map[string]bool{"persistCategories": persistCategories}, &out)
	return out, err
}
