package hosting

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sergeknystautas/landed/internal/version"
)

const (
	// maxBodyBytes caps how much of a response body is read into memory.
	maxBodyBytes = 8 << 20
	// maxSnippet caps the body excerpt kept in error values.
	maxSnippet = 256
)

var defaultHTTPClient = &http.Client{Timeout: 30 * time.Second}

// AuthScheme injects a token into an outbound request using one header convention.
type AuthScheme struct {
	Name  string
	Apply func(req *http.Request, token string)
}

var (
	// PrivateTokenScheme sends the token in a PRIVATE-TOKEN header.
	PrivateTokenScheme = AuthScheme{
		Name: "private-token",
		Apply: func(req *http.Request, token string) {
			req.Header.Set("PRIVATE-TOKEN", token)
		},
	}
	// BearerScheme sends the token as an OAuth-style bearer credential.
	BearerScheme = AuthScheme{
		Name: "bearer",
		Apply: func(req *http.Request, token string) {
			req.Header.Set("Authorization", "Bearer "+token)
		},
	}
)

// DefaultSchemes returns the schemes tried by NewClient, in order.
func DefaultSchemes() []AuthScheme {
	return []AuthScheme{PrivateTokenScheme, BearerScheme}
}

// Client issues GET requests against the hosting API. A request is sent with
// each auth scheme in turn, moving to the next only on a 401. Any other status
// ends the attempt. There are no other retries.
type Client struct {
	httpClient *http.Client
	schemes    []AuthScheme
	userAgent  string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithSchemes replaces the ordered list of auth schemes.
func WithSchemes(schemes ...AuthScheme) Option {
	return func(c *Client) {
		if len(schemes) > 0 {
			c.schemes = append([]AuthScheme(nil), schemes...)
		}
	}
}

// NewClient creates a client with the default schemes and a 30s transport timeout.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: defaultHTTPClient,
		schemes:    DefaultSchemes(),
		userAgent:  "landed/" + version.Version,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Response is a successful (2xx, JSON) hosting API response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	// Scheme is the name of the auth scheme that was accepted.
	Scheme string
}

// Get fetches rawURL. It makes one outbound call, or two when the first scheme
// is answered with 401. Failures are returned as the typed errors in errors.go.
func (c *Client) Get(ctx context.Context, rawURL, token string) (*Response, error) {
	tried := make([]string, 0, len(c.schemes))
	for _, scheme := range c.schemes {
		resp, err := c.send(ctx, rawURL, token, scheme)
		if err != nil {
			return nil, err
		}
		tried = append(tried, scheme.Name)
		if resp.StatusCode == http.StatusUnauthorized {
			continue
		}
		return checkResponse(resp)
	}
	return nil, &AuthError{Schemes: tried}
}

// GetJSON fetches rawURL and decodes the JSON body into v.
func (c *Client) GetJSON(ctx context.Context, rawURL, token string, v any) error {
	resp, err := c.Get(ctx, rawURL, token)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(resp.Body, v); err != nil {
		return &DecodeError{Err: err}
	}
	return nil
}

func (c *Client) send(ctx context.Context, rawURL, token string, scheme AuthScheme) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	scheme.Apply(req, token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
		Scheme:     scheme.Name,
	}, nil
}

func checkResponse(resp *Response) (*Response, error) {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		ct := resp.Header.Get("Content-Type")
		if !isJSONContentType(ct) {
			return nil, &NonJSONError{StatusCode: resp.StatusCode, ContentType: ct, Snippet: snippet(resp.Body)}
		}
		return resp, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, &NotFoundError{Message: errorMessage(resp)}
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &RateLimitError{StatusCode: resp.StatusCode, RetryAfterSec: parseRetryAfter(resp.Header)}
	case resp.StatusCode == http.StatusForbidden && resp.Header.Get("Retry-After") != "":
		return nil, &RateLimitError{StatusCode: resp.StatusCode, RetryAfterSec: parseRetryAfter(resp.Header)}
	}
	return nil, &StatusError{StatusCode: resp.StatusCode, Message: errorMessage(resp)}
}

func isJSONContentType(ct string) bool {
	if ct == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

// errorMessage pulls "message" or "error" out of a JSON error body, falling
// back to a raw body snippet.
func errorMessage(resp *Response) string {
	if isJSONContentType(resp.Header.Get("Content-Type")) {
		var payload struct {
			Message any    `json:"message"`
			Error   string `json:"error"`
		}
		if err := json.Unmarshal(resp.Body, &payload); err == nil {
			switch m := payload.Message.(type) {
			case string:
				if m != "" {
					return m
				}
			case nil:
			default:
				if data, err := json.Marshal(m); err == nil {
					return string(data)
				}
			}
			if payload.Error != "" {
				return payload.Error
			}
		}
	}
	return snippet(resp.Body)
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxSnippet {
		s = s[:maxSnippet] + "..."
	}
	return s
}

func parseRetryAfter(h http.Header) int {
	if v := h.Get("Retry-After"); v != "" {
		if sec, err := strconv.Atoi(v); err == nil {
			return sec
		}
	}
	return 60
}
