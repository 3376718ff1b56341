// Package client is a Go client for the CursorConnect API, including an
// incremental consumer for the streaming generate endpoint.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client talks to a CursorConnect server. Authenticated calls require a
// token obtained via Register or Login, or supplied with SetToken.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New creates a client for the server at baseURL.
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 60 * time.Second},
	}
}

// SetToken installs a previously obtained bearer token.
func (c *Client) SetToken(token string) {
	c.token = token
}

// User is the public view of an account.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// AuthResult is the server's answer to register and login calls.
type AuthResult struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// GenerateResult is a non-streaming generation response.
type GenerateResult struct {
	ID        string          `json:"id"`
	Query     string          `json:"query"`
	Response  string          `json:"response"`
	Metadata  json.RawMessage `json:"metadata"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Interaction is one persisted query/response pair from the history API.
type Interaction struct {
	ID        string          `json:"id"`
	Query     string          `json:"query"`
	Response  string          `json:"response"`
	Metadata  json.RawMessage `json:"metadata"`
	CreatedAt time.Time       `json:"createdAt"`
}

// HistoryPage is one page of interaction history.
type HistoryPage struct {
	Items []Interaction
	Total int
	Page  int
	Pages int
}

type errorEnvelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func (c *Client) url(path string) string {
	return c.baseURL + path
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path), reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return apiError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func apiError(resp *http.Response) error {
	respBody, _ := io.ReadAll(resp.Body)
	var envelope errorEnvelope
	if json.Unmarshal(respBody, &envelope) == nil && envelope.Error != "" {
		return fmt.Errorf("API error %d: %s", resp.StatusCode, envelope.Error)
	}
	return fmt.Errorf("API error %d", resp.StatusCode)
}

// Register creates an account and installs its token on the client.
func (c *Client) Register(ctx context.Context, username, email, password string) (*AuthResult, error) {
	var result AuthResult
	err := c.do(ctx, http.MethodPost, "/api/auth/register", map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	}, &result)
	if err != nil {
		return nil, err
	}
	c.token = result.Token
	return &result, nil
}

// Login authenticates and installs the account's token on the client.
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	var result AuthResult
	err := c.do(ctx, http.MethodPost, "/api/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, &result)
	if err != nil {
		return nil, err
	}
	c.token = result.Token
	return &result, nil
}

// Me returns the account behind the installed token.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var result struct {
		Data User `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/auth/me", nil, &result); err != nil {
		return nil, err
	}
	return &result.Data, nil
}

// Generate submits a query on the non-streaming path.
func (c *Client) Generate(ctx context.Context, query string) (*GenerateResult, error) {
	var result struct {
		Data GenerateResult `json:"data"`
	}
	err := c.do(ctx, http.MethodPost, "/api/generate", map[string]string{"query": query}, &result)
	if err != nil {
		return nil, err
	}
	return &result.Data, nil
}

// History returns one page of interaction history.
func (c *Client) History(ctx context.Context, page, limit int) (*HistoryPage, error) {
	var result struct {
		Total      int           `json:"total"`
		Data       []Interaction `json:"data"`
		Pagination struct {
			Page  int `json:"page"`
			Pages int `json:"pages"`
		} `json:"pagination"`
	}
	path := fmt.Sprintf("/api/history?page=%d&limit=%d", page, limit)
	if err := c.do(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return &HistoryPage{
		Items: result.Data,
		Total: result.Total,
		Page:  result.Pagination.Page,
		Pages: result.Pagination.Pages,
	}, nil
}

// DeleteHistoryItem removes one interaction by id.
func (c *Client) DeleteHistoryItem(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/history/"+id, nil, nil)
}

// DeleteAllHistory clears the account's history.
func (c *Client) DeleteAllHistory(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/api/history", nil, nil)
}
