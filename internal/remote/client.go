package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	// DefaultBaseURL is the public endpoint of the user-management API.
	DefaultBaseURL = "https://reqres.in/api"
	// DefaultAPIKey is sent on every request in the x-api-key header.
	DefaultAPIKey = "reqres-free-v1"

	apiKeyHeader = "x-api-key"
	maxErrorBody = 4 << 10
)

// Observer receives the outcome of every remote call.
type Observer interface {
	ObserveRemote(op string, err error, elapsed time.Duration)
}

// Options configures a Client.
type Options struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
	Observer   Observer
}

// Client wraps interactions with the remote user API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	observer   Observer
	lists      singleflight.Group
}

// NewClient constructs a new client.
func NewClient(opts Options) *Client {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	apiKey := opts.APIKey
	if apiKey == "" {
		apiKey = DefaultAPIKey
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: httpClient,
		observer:   opts.Observer,
	}
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	var out loginResponse
	if err := c.do(ctx, "login", http.MethodPost, "/login", "", loginRequest{Email: email, Password: password}, &out); err != nil {
		return "", err
	}
	if out.Token == "" {
		return "", ErrEmptyToken
	}
	return out.Token, nil
}

// ListUsers fetches one server page. Identical concurrent calls share a
// single round trip.
func (c *Client) ListUsers(ctx context.Context, token string, page int) (Page, error) {
	if page < 1 {
		page = 1
	}
	key := strconv.Itoa(page) + "|" + token
	ch := c.lists.DoChan(key, func() (interface{}, error) {
		var out Page
		path := "/users?" + url.Values{"page": {strconv.Itoa(page)}}.Encode()
		if err := c.do(context.WithoutCancel(ctx), "list_users", http.MethodGet, path, token, nil, &out); err != nil {
			return Page{}, err
		}
		return out, nil
	})
	select {
	case <-ctx.Done():
		return Page{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Page{}, res.Err
		}
		return res.Val.(Page), nil
	}
}

// GetUser fetches a single record.
func (c *Client) GetUser(ctx context.Context, token string, id int64) (User, error) {
	var out singleUserResponse
	if err := c.do(ctx, "get_user", http.MethodGet, userPath(id), token, nil, &out); err != nil {
		return User{}, err
	}
	return out.Data, nil
}

// CreateUser creates a record. The response body is not consumed.
func (c *Client) CreateUser(ctx context.Context, token string, payload UserPayload) error {
	return c.do(ctx, "create_user", http.MethodPost, "/users", token, payload, nil)
}

// UpdateUser replaces the editable fields of a record.
func (c *Client) UpdateUser(ctx context.Context, token string, id int64, payload UserPayload) error {
	return c.do(ctx, "update_user", http.MethodPut, userPath(id), token, payload, nil)
}

// DeleteUser removes a record.
func (c *Client) DeleteUser(ctx context.Context, token string, id int64) error {
	return c.do(ctx, "delete_user", http.MethodDelete, userPath(id), token, nil, nil)
}

func userPath(id int64) string {
	return "/users/" + strconv.FormatInt(id, 10)
}

func (c *Client) do(ctx context.Context, op, method, path, token string, in, out any) (err error) {
	start := time.Now()
	defer func() {
		if c.observer != nil {
			c.observer.ObserveRemote(op, err, time.Since(start))
		}
	}()

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("remote %s: encode: %w", op, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("remote %s: %w", op, err)
	}
	req.Header.Set(apiKeyHeader, c.apiKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("remote %s: %w", op, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Op: op, StatusCode: resp.StatusCode, Message: errorMessage(resp.Body)}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("remote %s: decode: %w", op, err)
	}
	return nil
}

func errorMessage(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil || len(raw) == 0 {
		return ""
	}
	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &payload) == nil && payload.Error != "" {
		return payload.Error
	}
	return ""
}
