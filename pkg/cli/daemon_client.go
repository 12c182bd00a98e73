package cli

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

	"github.com/gorilla/websocket"

	"github.com/sergeknystautas/landed/internal/api/contracts"
)

// Client implements DaemonClient for communicating with the landed daemon.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// APIError is a non-2xx response from the daemon.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("daemon returned status %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("daemon returned status %d: %s", e.StatusCode, e.Message)
}

// NewDaemonClient creates a new daemon client.
func NewDaemonClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 2 * time.Minute,
		},
	}
}

// GetDefaultURL returns the default daemon URL.
func GetDefaultURL() string {
	return "http://localhost:7447"
}

// URLForPort returns the daemon URL for a configured port.
func URLForPort(port int) string {
	return fmt.Sprintf("http://localhost:%d", port)
}

// IsRunning checks if the daemon is running.
func (c *Client) IsRunning() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/healthz", nil)
	if err != nil {
		return false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// GetConfig fetches the daemon configuration.
func (c *Client) GetConfig() (*contracts.ConfigResponse, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var cfg contracts.ConfigResponse
	if err := c.do(ctx, http.MethodGet, "/api/config", nil, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// GetProjects fetches the configured projects.
func (c *Client) GetProjects() ([]contracts.Project, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var resp contracts.ProjectsResponse
	if err := c.do(ctx, http.MethodGet, "/api/projects", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Projects, nil
}

// Branches lists branches in a project matching search.
func (c *Client) Branches(ctx context.Context, project, search string) (*contracts.BranchesResponse, error) {
	path := "/api/projects/" + url.PathEscape(project) + "/branches?search=" + url.QueryEscape(search)

	var resp contracts.BranchesResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CheckInclusion resolves a branch against targets in one request.
func (c *Client) CheckInclusion(ctx context.Context, project, branch string, targets []string) (*contracts.InclusionResponse, error) {
	body := contracts.InclusionRequest{Branch: branch, Targets: targets}

	var resp contracts.InclusionResponse
	if err := c.do(ctx, http.MethodPost, "/api/projects/"+url.PathEscape(project)+"/inclusion", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CompareMany runs a multi-term compare.
func (c *Client) CompareMany(ctx context.Context, req contracts.MultiCompareRequest) (*contracts.MultiCompareResponse, error) {
	var resp contracts.MultiCompareResponse
	if err := c.do(ctx, http.MethodPost, "/api/compare/multi", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// StreamInclusion resolves a branch over /ws/inclusion/{project}. The
// returned results are in target order.
func (c *Client) StreamInclusion(ctx context.Context, project, branch string, targets []string, onResult func(int, contracts.InclusionResult)) ([]contracts.InclusionResult, error) {
	wsURL := "ws" + strings.TrimPrefix(c.baseURL, "http") + "/ws/inclusion/" + url.PathEscape(project)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to daemon: %w", err)
	}
	defer conn.Close()

	// Unblock ReadJSON when the caller gives up.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if err := conn.WriteJSON(contracts.InclusionRequest{Branch: branch, Targets: targets}); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	for {
		var ev contracts.InclusionEvent
		if err := conn.ReadJSON(&ev); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("failed to read event: %w", err)
		}
		switch ev.Type {
		case "result":
			if onResult != nil && ev.Result != nil {
				onResult(ev.Index, *ev.Result)
			}
		case "done":
			return ev.Results, nil
		case "error":
			return nil, fmt.Errorf("daemon error: %s", ev.Error)
		}
	}
}

// do sends a request with an optional JSON body and decodes a JSON response into out.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to daemon: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errorBody, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return fmt.Errorf("daemon returned status %d (failed to read error body: %v)", resp.StatusCode, readErr)
		}
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(errorBody))}
		var parsed contracts.ErrorResponse
		if json.Unmarshal(errorBody, &parsed) == nil && parsed.Error != "" {
			apiErr.Code = parsed.Code
			apiErr.Message = parsed.Error
		}
		return apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
