// Package apiclient is a Go client for the AI Studio API: signup/login,
// generation creation with bounded retry on overload, and history listing.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/aistudio-dev/aistudio/internal/retry"
)

// ErrModelOverloaded matches the server's transient 503 overload response.
// Classification is by status code, not by message text.
var ErrModelOverloaded = errors.New("model overloaded")

const defaultTimeout = 30 * time.Second

// APIError is a non-2xx response decoded from the server's {message} body.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (%d): %s", e.StatusCode, e.Message)
}

func (e *APIError) Is(target error) bool {
	return target == ErrModelOverloaded && e.StatusCode == http.StatusServiceUnavailable
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string

	maxRetries int
	sleep      func(context.Context, time.Duration) error
	onRetry    func(attempt int, err error)
}

type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithToken sets the bearer token for authenticated requests.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithMaxRetries overrides the retry budget for GenerateWithRetry.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithSleep overrides how backoff waits are performed (useful for tests).
func WithSleep(fn func(context.Context, time.Duration) error) Option {
	return func(c *Client) {
		c.sleep = fn
	}
}

// WithOnRetry registers a callback invoked before each retry, e.g. to render
// "retrying (k/3)".
func WithOnRetry(fn func(attempt int, err error)) Option {
	return func(c *Client) {
		c.onRetry = fn
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
		maxRetries: retry.DefaultMaxRetries,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Token returns the bearer token acquired by Signup or Login.
func (c *Client) Token() string {
	return c.token
}

type UserInfo struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type AuthResponse struct {
	Token string   `json:"token"`
	User  UserInfo `json:"user"`
}

type Generation struct {
	ID        string    `json:"id"`
	ImageURL  string    `json:"imageUrl"`
	Prompt    string    `json:"prompt"`
	Style     string    `json:"style"`
	CreatedAt time.Time `json:"createdAt"`
	Status    string    `json:"status"`
}

func (c *Client) Signup(ctx context.Context, email, password string) (*AuthResponse, error) {
	return c.authenticate(ctx, "/auth/signup", email, password)
}

func (c *Client) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	return c.authenticate(ctx, "/auth/login", email, password)
}

func (c *Client) authenticate(ctx context.Context, path, email, password string) (*AuthResponse, error) {
	body, err := json.Marshal(map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return nil, fmt.Errorf("encode credentials: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var auth AuthResponse
	if err := c.do(req, &auth); err != nil {
		return nil, err
	}

	c.token = auth.Token
	return &auth, nil
}

// Generate uploads the image and creates one generation. Cancelling the
// context aborts the call client-side only: a server-side insert that has
// already committed persists and will show up in the next history listing.
func (c *Client) Generate(ctx context.Context, imagePath, prompt, style string) (*Generation, error) {
	f, err := os.Open(imagePath)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("image", filepath.Base(imagePath))
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("copy image: %w", err)
	}
	if err := writer.WriteField("prompt", prompt); err != nil {
		return nil, fmt.Errorf("write prompt field: %w", err)
	}
	if err := writer.WriteField("style", style); err != nil {
		return nil, fmt.Errorf("write style field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/generations", &buf)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var generation Generation
	if err := c.do(req, &generation); err != nil {
		return nil, err
	}

	return &generation, nil
}

// GenerateWithRetry wraps Generate in a bounded exponential-backoff loop that
// retries only overload failures.
func (c *Client) GenerateWithRetry(ctx context.Context, imagePath, prompt, style string) (*Generation, error) {
	return retry.Do(ctx, retry.Config{
		MaxRetries: c.maxRetries,
		Retryable: func(err error) bool {
			return errors.Is(err, ErrModelOverloaded)
		},
		Sleep:   c.sleep,
		OnRetry: c.onRetry,
	}, func(ctx context.Context) (*Generation, error) {
		return c.Generate(ctx, imagePath, prompt, style)
	})
}

func (c *Client) ListGenerations(ctx context.Context, limit int) ([]Generation, error) {
	url := c.baseURL + "/generations"
	if limit > 0 {
		url = fmt.Sprintf("%s?limit=%d", url, limit)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}

	var generations []Generation
	if err := c.do(req, &generations); err != nil {
		return nil, err
	}

	return generations, nil
}

func (c *Client) do(req *http.Request, out interface{}) error {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp.StatusCode, body)
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}

	return nil
}

func decodeError(statusCode int, body []byte) error {
	var payload struct {
		Message string `json:"message"`
	}

	message := http.StatusText(statusCode)
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		message = payload.Message
	}

	return &APIError{StatusCode: statusCode, Message: message}
}
