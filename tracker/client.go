// Copyright 2026 The Chatrelay Authors
// SPDX-License-Identifier: Apache-2.0

package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// maxResponseSize caps an issue response body. Summaries are a few
// hundred bytes; 1 MB is generous headroom against a misbehaving
// server.
const maxResponseSize = 1 << 20

// ClientConfig holds configuration for creating a Client.
type ClientConfig struct {
	// BaseURL is the tracker root, e.g. "https://tracker.example.com".
	// Required.
	BaseURL string

	// HTTPClient is used for all requests. If nil, http.DefaultClient
	// is used.
	HTTPClient *http.Client

	// Logger is used for structured logging. If nil, slog.Default()
	// is used.
	Logger *slog.Logger
}

// Client fetches issue summaries from the tracker's REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient validates the config and creates a Client.
func NewClient(config ClientConfig) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("tracker: BaseURL is required")
	}
	if _, err := url.Parse(config.BaseURL); err != nil {
		return nil, fmt.Errorf("tracker: invalid BaseURL %q: %w", config.BaseURL, err)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// BrowseURL returns the human-facing URL for a tracker key.
func (c *Client) BrowseURL(key string) string {
	return c.baseURL + "/browse/" + key
}

// RemoteError is an error payload returned by the tracker itself —
// unknown key, no permission, and the like. It is distinct from a
// transport failure: the request worked, the tracker said no.
type RemoteError struct {
	// Messages is the tracker's errorMessages array.
	Messages []string
}

// Error implements error.
func (e *RemoteError) Error() string {
	return "tracker: " + e.Reason()
}

// Reason returns the first tracker error message, lower-cased, or
// "unknown" when the payload carried an empty array.
func (e *RemoteError) Reason() string {
	if len(e.Messages) == 0 {
		return "unknown"
	}
	return strings.ToLower(e.Messages[0])
}

// issueResponse is the wire shape of the issue endpoint: either a
// fields object with the requested summary, or an errorMessages
// array.
type issueResponse struct {
	Fields *struct {
		Summary string `json:"summary"`
	} `json:"fields"`
	ErrorMessages []string `json:"errorMessages"`
}

// Summary fetches one issue's summary field. It returns a
// *RemoteError when the tracker answered with an error payload, and a
// plain error for transport failures or unparseable responses.
func (c *Client) Summary(ctx context.Context, key string) (string, error) {
	requestURL := c.baseURL + "/rest/api/2/issue/" + url.PathEscape(key) + "?fields=summary"

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return "", fmt.Errorf("tracker: building request for %s: %w", key, err)
	}
	request.Header.Set("Accept", "application/json")

	response, err := c.httpClient.Do(request)
	if err != nil {
		return "", fmt.Errorf("tracker: fetching %s: %w", key, err)
	}
	defer response.Body.Close()

	body, err := io.ReadAll(io.LimitReader(response.Body, maxResponseSize))
	if err != nil {
		return "", fmt.Errorf("tracker: reading response for %s: %w", key, err)
	}

	var parsed issueResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("tracker: non-JSON response for %s: %w", key, err)
	}

	if len(parsed.ErrorMessages) > 0 {
		return "", &RemoteError{Messages: parsed.ErrorMessages}
	}
	if parsed.Fields == nil {
		// Some error responses carry neither field; HTTP status alone
		// is not trustworthy across tracker versions.
		if response.StatusCode != http.StatusOK {
			return "", &RemoteError{}
		}
		return "", fmt.Errorf("tracker: response for %s has no summary", key)
	}

	return parsed.Fields.Summary, nil
}
