// Package todoclient provides a client for the AI todo agent HTTP and
// WebSocket API.
package todoclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Client is a todo agent API client.
type Client struct {
	BaseURL    string
	ConfigDir  string
	Email      string
	Token      string
	HTTPClient *http.Client
}

// Config holds cached credentials.
type Config struct {
	Email string `json:"email"`
	Token string `json:"access_token"`
}

// NewClient creates a new client and loads cached credentials if present.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:8000"
	}

	configDir := os.Getenv("TODO_AGENT_CONFIG")
	if configDir == "" {
		home, _ := os.UserHomeDir()
		configDir = filepath.Join(home, ".todo-agent")
	}

	c := &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		ConfigDir:  configDir,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}

	_ = c.LoadConfig()
	return c
}

// LoadConfig loads credentials from disk.
func (c *Client) LoadConfig() error {
	data, err := os.ReadFile(filepath.Join(c.ConfigDir, "credentials.json"))
	if err != nil {
		return err
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return err
	}

	c.Email = config.Email
	c.Token = config.Token
	return nil
}

// SaveConfig saves credentials to disk.
func (c *Client) SaveConfig() error {
	if err := os.MkdirAll(c.ConfigDir, 0700); err != nil {
		return err
	}

	data, _ := json.MarshalIndent(Config{Email: c.Email, Token: c.Token}, "", "  ")
	return os.WriteFile(filepath.Join(c.ConfigDir, "credentials.json"), data, 0600)
}

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("todo agent error %d: %s", e.Status, e.Message)
}

// doRequest performs an HTTP request and returns the response body.
func (c *Client) doRequest(ctx context.Context, method, path string, body io.Reader, contentType string, authed bool) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if authed {
		if c.Token == "" {
			return nil, fmt.Errorf("not logged in")
		}
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		json.Unmarshal(respBody, &errResp)
		if errResp.Error == "" {
			errResp.Error = strings.TrimSpace(string(respBody))
		}
		return nil, &APIError{Status: resp.StatusCode, Message: errResp.Error}
	}

	return respBody, nil
}

func decode[T any](data []byte) (*T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// Task is one todo item.
type Task struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	Description *string `json:"description"`
	IsCompleted bool    `json:"is_completed"`
}

// User is an account with its tasks.
type User struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Todos []Task `json:"todos"`
}

// Register creates an account.
func (c *Client) Register(ctx context.Context, email, password string) (*User, error) {
	body, _ := json.Marshal(map[string]string{"email": email, "password": password})
	respBody, err := c.doRequest(ctx, http.MethodPost, "/register", bytes.NewReader(body), "application/json", false)
	if err != nil {
		return nil, err
	}
	return decode[User](respBody)
}

// Login exchanges credentials for a token and caches it.
func (c *Client) Login(ctx context.Context, email, password string) error {
	form := url.Values{"username": {email}, "password": {password}}
	respBody, err := c.doRequest(ctx, http.MethodPost, "/token", strings.NewReader(form.Encode()), "application/x-www-form-urlencoded", false)
	if err != nil {
		return err
	}

	var resp struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return err
	}

	c.Email = email
	c.Token = resp.AccessToken
	return c.SaveConfig()
}

// Me returns the logged-in user.
func (c *Client) Me(ctx context.Context) (*User, error) {
	respBody, err := c.doRequest(ctx, http.MethodGet, "/users/me", nil, "", true)
	if err != nil {
		return nil, err
	}
	return decode[User](respBody)
}

// Todos lists the logged-in user's tasks.
func (c *Client) Todos(ctx context.Context) ([]Task, error) {
	respBody, err := c.doRequest(ctx, http.MethodGet, "/todos", nil, "", true)
	if err != nil {
		return nil, err
	}
	tasks, err := decode[[]Task](respBody)
	if err != nil {
		return nil, err
	}
	return *tasks, nil
}

// UploadResponse carries either a message or an ingestion error.
type UploadResponse struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Upload sends a document for the agent to search.
func (c *Client) Upload(ctx context.Context, filename string, r io.Reader) (*UploadResponse, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filepath.Base(filename))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(fw, r); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	respBody, err := c.doRequest(ctx, http.MethodPost, "/upload", &body, mw.FormDataContentType(), true)
	if err != nil {
		return nil, err
	}
	return decode[UploadResponse](respBody)
}

// HealthResponse is the server health report.
type HealthResponse struct {
	Status    string                 `json:"status"`
	Version   string                 `json:"version"`
	Checks    map[string]interface{} `json:"checks"`
	Timestamp string                 `json:"timestamp"`
}

// Health checks server health.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	respBody, err := c.doRequest(ctx, http.MethodGet, "/health", nil, "", false)
	if err != nil {
		return nil, err
	}
	return decode[HealthResponse](respBody)
}
