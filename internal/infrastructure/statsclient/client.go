// Package statsclient talks to the call server's stats API.
package statsclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"rillscope/internal/core/domain"
	"rillscope/pkg/tracing"
)

const (
	pathDetailedStats = "/api/v1/stats/detailed"
	pathRoomStats     = "/api/v1/rooms/%s/stats"
	pathAnalytics     = "/api/v1/rooms/%s/analytics"
	pathModerate      = "/api/v1/rooms/%s/participants/%s/%s"
)

// StatusError is a non-2xx answer from the stats API.
type StatusError struct {
	Path       string
	StatusCode int
	Body       string
}

// Error implements error.
func (e *StatusError) Error() string {
	return fmt.Sprintf("request %s failed with status %d: %s", e.Path, e.StatusCode, e.Body)
}

// Temporary reports whether retrying the request may succeed.
func (e *StatusError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// Client implements ports.StatsProvider and ports.Moderator over HTTP.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient creates a stats API client. An empty apiKey sends no key header.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http: &http.Client{
			Timeout:   timeout,
			Transport: http.DefaultTransport.(*http.Transport).Clone(),
		},
	}
}

// GetDetailedStats fetches the local connection snapshot.
func (c *Client) GetDetailedStats(ctx context.Context) (*domain.Snapshot, error) {
	ctx, span := tracing.TraceStatsFetch(ctx, "detailed_stats", "")
	defer span.End()

	var out domain.Snapshot
	if err := c.do(ctx, http.MethodGet, pathDetailedStats, nil, nil, &out); err != nil {
		tracing.RecordError(ctx, err)
		return nil, err
	}
	return &out, nil
}

// GetRoomStats fetches the participant snapshot for roomID.
func (c *Client) GetRoomStats(ctx context.Context, roomID string) (*domain.ParticipantSnapshot, error) {
	ctx, span := tracing.TraceStatsFetch(ctx, "room_stats", roomID)
	defer span.End()

	var out domain.ParticipantSnapshot
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf(pathRoomStats, url.PathEscape(roomID)), nil, nil, &out); err != nil {
		tracing.RecordError(ctx, err)
		return nil, err
	}
	return &out, nil
}

// GetHistoricalAnalytics fetches aggregated history for rng.
func (c *Client) GetHistoricalAnalytics(ctx context.Context, roomID string, rng domain.RangeToken) (*domain.HistoricalSnapshot, error) {
	ctx, span := tracing.TraceStatsFetch(ctx, "historical_stats", roomID)
	defer span.End()

	query := url.Values{}
	query.Set("range", string(rng))

	var out domain.HistoricalSnapshot
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf(pathAnalytics, url.PathEscape(roomID)), query, nil, &out); err != nil {
		tracing.RecordError(ctx, err)
		return nil, err
	}
	return &out, nil
}

// Mute asks the media service to mute a participant.
func (c *Client) Mute(ctx context.Context, roomID, participantID string) error {
	return c.moderate(ctx, roomID, participantID, domain.ActionMute)
}

// Kick asks the media service to remove a participant.
func (c *Client) Kick(ctx context.Context, roomID, participantID string) error {
	return c.moderate(ctx, roomID, participantID, domain.ActionKick)
}

func (c *Client) moderate(ctx context.Context, roomID, participantID string, action domain.ModerationAction) error {
	path := fmt.Sprintf(pathModerate, url.PathEscape(roomID), url.PathEscape(participantID), action)
	return c.do(ctx, http.MethodPost, path, nil, struct{}{}, nil)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	endpoint := c.baseURL + path
	if query != nil {
		endpoint = endpoint + "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request %s: %w", path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("build request %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Path: path, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response %s: %w", path, err)
	}
	return nil
}
