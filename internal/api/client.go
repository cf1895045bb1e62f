package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrDaemonUnreachable reports that no daemon answered at the endpoint.
var ErrDaemonUnreachable = errors.New("daemon unreachable")

// StatusError is returned for non-2xx API responses.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: %s", http.StatusText(e.Code))
	}
	return fmt.Sprintf("api error (%d): %s", e.Code, e.Message)
}

// IsNotFound reports whether err is a 404 from the daemon.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusNotFound
}

// Client provides HTTP access to the daemon API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient builds a client for the daemon at baseURL (for example
// http://127.0.0.1:7490). token is sent as a bearer token when non-empty.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:   strings.TrimSpace(token),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// BaseURL returns the endpoint the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Status retrieves the daemon status.
func (c *Client) Status(ctx context.Context) (*DaemonStatus, error) {
	var resp DaemonStatus
	if err := c.do(ctx, http.MethodGet, "/api/status", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TestNotification asks the daemon to send a test notification.
func (c *Client) TestNotification(ctx context.Context) (*NotificationResponse, error) {
	var resp NotificationResponse
	if err := c.do(ctx, http.MethodPost, "/api/notifications/test", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// List returns every transaction the daemon knows about.
func (c *Client) List(ctx context.Context) ([]Transaction, error) {
	var resp TransactionListResponse
	if err := c.do(ctx, http.MethodGet, "/api/transactions", &resp); err != nil {
		return nil, err
	}
	return resp.Transactions, nil
}

// Show fetches one transaction.
func (c *Client) Show(ctx context.Context, kind string, id int64) (*Transaction, error) {
	return c.transaction(ctx, http.MethodGet, transactionPath(kind, id))
}

// Open opens or attaches to the fulfillment session of a transaction.
func (c *Client) Open(ctx context.Context, kind string, id int64) (*Transaction, error) {
	return c.transaction(ctx, http.MethodPost, transactionPath(kind, id))
}

// Cancel stops a running session.
func (c *Client) Cancel(ctx context.Context, kind string, id int64) (*Transaction, error) {
	return c.transaction(ctx, http.MethodDelete, transactionPath(kind, id))
}

// Retry restarts a failed or canceled session.
func (c *Client) Retry(ctx context.Context, kind string, id int64) (*Transaction, error) {
	return c.transaction(ctx, http.MethodPost, transactionPath(kind, id)+"/retry")
}

func (c *Client) transaction(ctx context.Context, method, path string) (*Transaction, error) {
	var resp TransactionResponse
	if err := c.do(ctx, method, path, &resp); err != nil {
		return nil, err
	}
	return &resp.Transaction, nil
}

func transactionPath(kind string, id int64) string {
	return "/api/transactions/" + url.PathEscape(strings.TrimSpace(kind)) + "/" + strconv.FormatInt(id, 10)
}

func (c *Client) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, http.NoBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w at %s: %w", ErrDaemonUnreachable, c.baseURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr ErrorResponse
		_ = json.Unmarshal(bytes.TrimSpace(body), &apiErr)
		return &StatusError{Code: resp.StatusCode, Message: apiErr.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
