// Package gateway is the thin client over the independently-deployed game
// session backends. Each backend gets its own request with its own timeout;
// a dead backend degrades to an empty result, never to a failed caller.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/nuruplay/api/internal/games"
	"github.com/nuruplay/api/internal/middleware"
)

type Client struct {
	backends   map[string]string
	httpClient *http.Client
	timeout    time.Duration
}

// Result is one backend's answer to a session query. Err is recorded, not
// propagated: aggregation continues with whichever backends answered.
type Result struct {
	Backend string
	Records []games.Record
	Err     error
}

func New(backendURLs map[string]string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		backends: backendURLs,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		timeout: timeout,
	}
}

// SessionsForAssignment fetches every child's sessions for the assignment
// from one backend.
func (c *Client) SessionsForAssignment(ctx context.Context, gameKey string, assignmentID int64) Result {
	q := url.Values{"assignmentId": {strconv.FormatInt(assignmentID, 10)}}
	return c.query(ctx, gameKey, q)
}

// SessionsForChild fetches one child's sessions for the assignment from one
// backend.
func (c *Client) SessionsForChild(ctx context.Context, gameKey string, assignmentID, childID int64) Result {
	q := url.Values{
		"assignmentId": {strconv.FormatInt(assignmentID, 10)},
		"childId":      {strconv.FormatInt(childID, 10)},
	}
	return c.query(ctx, gameKey, q)
}

// ChildSessions fetches all of a child's sessions from one backend,
// assignment-bound and free-play alike.
func (c *Client) ChildSessions(ctx context.Context, gameKey string, childID int64) Result {
	q := url.Values{"childId": {strconv.FormatInt(childID, 10)}}
	return c.query(ctx, gameKey, q)
}

// DeleteSessions removes the assignment's sessions from one backend. The
// caller logs failures and moves on; rows already deleted locally stay
// deleted.
func (c *Client) DeleteSessions(ctx context.Context, gameKey string, assignmentID int64) error {
	base, ok := c.backends[gameKey]
	if !ok {
		return fmt.Errorf("unknown backend %q", gameKey)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u := base + "/sessions?assignmentId=" + strconv.FormatInt(assignmentID, 10)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set(middleware.RequestIDHeader, requestID(ctx))

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		middleware.RecordBackendCall(gameKey, "delete", false, time.Since(start))
		return fmt.Errorf("delete sessions from %s: %w", gameKey, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		middleware.RecordBackendCall(gameKey, "delete", false, time.Since(start))
		return fmt.Errorf("delete sessions from %s: status %d", gameKey, resp.StatusCode)
	}

	middleware.RecordBackendCall(gameKey, "delete", true, time.Since(start))
	return nil
}

// Backends returns the configured backend keys.
func (c *Client) Backends() []string {
	keys := make([]string, 0, len(c.backends))
	for k := range c.backends {
		keys = append(keys, k)
	}
	return keys
}

func (c *Client) query(ctx context.Context, gameKey string, q url.Values) Result {
	base, ok := c.backends[gameKey]
	if !ok {
		return Result{Backend: gameKey, Err: fmt.Errorf("unknown backend %q", gameKey)}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u := base + "/sessions?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Result{Backend: gameKey, Err: err}
	}
	req.Header.Set(middleware.RequestIDHeader, requestID(ctx))

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		middleware.RecordBackendCall(gameKey, "sessions", false, time.Since(start))
		log.Printf("Warning: backend %s unreachable: %v", gameKey, err)
		return Result{Backend: gameKey, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		middleware.RecordBackendCall(gameKey, "sessions", false, time.Since(start))
		err := fmt.Errorf("backend %s returned status %d", gameKey, resp.StatusCode)
		log.Printf("Warning: %v", err)
		return Result{Backend: gameKey, Err: err}
	}

	var raw []map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		middleware.RecordBackendCall(gameKey, "sessions", false, time.Since(start))
		log.Printf("Warning: backend %s sent undecodable payload: %v", gameKey, err)
		return Result{Backend: gameKey, Err: err}
	}

	middleware.RecordBackendCall(gameKey, "sessions", true, time.Since(start))

	records := make([]games.Record, 0, len(raw))
	for _, obj := range raw {
		records = append(records, games.ParseRecord(obj))
	}
	return Result{Backend: gameKey, Records: records}
}

type ctxKey string

const requestIDKey ctxKey = "requestID"

// WithRequestID stores a correlation id on the context for backend calls.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

func requestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok && id != "" {
		return id
	}
	return uuid.NewString()
}
