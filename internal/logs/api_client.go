package logs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"grabit/internal/api"
)

// ErrAPIUnavailable marks failures to reach the daemon HTTP API at all,
// as opposed to the API answering with an error.
var ErrAPIUnavailable = errors.New("log API unavailable")

// StreamClient fetches structured log events from the daemon's HTTP API.
// Its http.Client carries no timeout: follow requests block server side
// until events arrive, so only the caller's context may cut them off.
type StreamClient struct {
	base  *url.URL
	httpc *http.Client
	token string
}

// NewStreamClient builds a client for the daemon bind address. An empty
// bind yields a nil client, which Fetch reports as unavailable.
func NewStreamClient(bind string) (*StreamClient, error) {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil, nil
	}
	base, err := parseBindURL(bind)
	if err != nil {
		return nil, err
	}
	return &StreamClient{base: base, httpc: &http.Client{}}, nil
}

// parseBindURL turns a bind address like "127.0.0.1:8000" into a base URL,
// keeping only scheme and host so per-request paths resolve cleanly.
func parseBindURL(bind string) (*url.URL, error) {
	if !strings.Contains(bind, "://") {
		bind = "http://" + bind
	}
	parsed, err := url.Parse(bind)
	if err != nil {
		return nil, err
	}
	return &url.URL{Scheme: parsed.Scheme, Host: parsed.Host}, nil
}

// SetToken configures the bearer token sent with every request. An empty
// token clears it.
func (c *StreamClient) SetToken(token string) {
	if c == nil {
		return
	}
	c.token = strings.TrimSpace(token)
}

// StreamQuery selects which events /api/logs should return.
type StreamQuery struct {
	Since     uint64
	Limit     int
	Follow    bool
	Tail      bool
	Component string
	TaskID    string
	Level     string
	Search    string
}

func (q StreamQuery) values() url.Values {
	values := url.Values{}
	if q.Since > 0 {
		values.Set("since", strconv.FormatUint(q.Since, 10))
	}
	if q.Limit > 0 {
		values.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Follow {
		values.Set("follow", "1")
	}
	if q.Tail {
		values.Set("tail", "1")
	}
	for param, value := range map[string]string{
		"component": q.Component,
		"task":      q.TaskID,
		"level":     q.Level,
		"search":    q.Search,
	} {
		if strings.TrimSpace(value) != "" {
			values.Set(param, value)
		}
	}
	return values
}

// Fetch performs one /api/logs request and decodes the event page.
func (c *StreamClient) Fetch(ctx context.Context, q StreamQuery) (api.LogStreamResponse, error) {
	if c == nil {
		return api.LogStreamResponse{}, ErrAPIUnavailable
	}

	endpoint := c.base.ResolveReference(&url.URL{Path: "/api/logs", RawQuery: q.values().Encode()})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return api.LogStreamResponse{}, err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return api.LogStreamResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return api.LogStreamResponse{}, fmt.Errorf("log API answered with status %d", resp.StatusCode)
	}
	var page api.LogStreamResponse
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return api.LogStreamResponse{}, err
	}
	return page, nil
}

// IsAPIUnavailable reports whether err means the daemon API cannot be
// reached, as opposed to the API rejecting the request.
func IsAPIUnavailable(err error) bool {
	if errors.Is(err, ErrAPIUnavailable) {
		return true
	}
	unwrapped := err
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		unwrapped = urlErr.Err
	}
	var opErr *net.OpError
	return errors.As(unwrapped, &opErr)
}
