package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"codepad/internal/suggest"
)

// Client calls a suggestion service over HTTP. It implements
// suggest.Requester.
type Client struct {
	url        string
	httpClient *http.Client
}

// NewClient targets the service at baseURL, e.g. "http://localhost:8080".
// A nil httpClient uses http.DefaultClient; request deadlines come from the
// caller's context.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		url:        strings.TrimSuffix(baseURL, "/") + Route,
		httpClient: httpClient,
	}
}

// Suggest implements suggest.Requester.
func (c *Client) Suggest(ctx context.Context, r suggest.Request) (string, error) {
	body, err := json.Marshal(SuggestionRequest{
		FileContent:    r.Text,
		CursorLine:     r.Cursor.Line,
		CursorColumn:   r.Cursor.Column,
		SuggestionType: string(r.Kind),
		FileName:       r.FileName,
	})
	if err != nil {
		return "", fmt.Errorf("%w: marshal request: %v", suggest.ErrService, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %v", suggest.ErrService, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.TraceID != "" {
		req.Header.Set("X-Request-ID", r.TraceID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			return "", fmt.Errorf("%w: %v", suggest.ErrTimeout, err)
		case errors.Is(err, context.Canceled):
			return "", err
		}
		return "", fmt.Errorf("%w: %v", suggest.ErrService, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", suggest.ErrService, err)
	}

	if resp.StatusCode != http.StatusOK {
		var e ErrorResponse
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			return "", fmt.Errorf("%w: %s (status %d)", suggest.ErrService, e.Error, resp.StatusCode)
		}
		return "", fmt.Errorf("%w: status %d", suggest.ErrService, resp.StatusCode)
	}

	var out struct {
		SuggestionResponse
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("%w: %v", suggest.ErrInvalidFormat, err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("%w: %s", suggest.ErrService, out.Error)
	}
	if out.Suggestion == "" {
		return "", suggest.ErrInvalidFormat
	}
	return out.Suggestion, nil
}
