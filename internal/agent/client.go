// Package agent is the HTTP client for the local automation agent's
// command API. The agent accepts the same text commands over IPC that
// it accepts in chat; results come back as free text inside a JSON
// envelope and are handed to internal/parse for structuring.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/asfclaim/claimerd/internal/domain"
)

// CommandRequest is the JSON body posted to /Api/Command.
type CommandRequest struct {
	Command string `json:"Command"`
}

// CommandResponse maps the agent's response envelope.
type CommandResponse struct {
	Success bool   `json:"Success"`
	Result  string `json:"Result"`
	Message string `json:"Message"`
}

// Commander abstracts the agent so the gate and cycle can be tested
// against a stub without real HTTP calls.
type Commander interface {
	// Ping checks basic reachability of the agent's API.
	Ping(ctx context.Context) error
	// Command submits one text command and returns the agent's envelope.
	Command(ctx context.Context, command string) (*CommandResponse, error)
	// Redeem submits a claim command for one code.
	Redeem(ctx context.Context, code domain.Code) (*CommandResponse, error)
	// Status queries the aggregate account status of all managed accounts.
	Status(ctx context.Context) (string, error)
}

// Client talks to the agent over its IPC interface. The base URL and
// shared secret are injected from config so tests can point at a local
// mock server.
type Client struct {
	baseURL    string
	password   string
	httpClient *http.Client
}

func NewClient(baseURL, password string, timeout time.Duration) *Client {
	return &Client{
		baseURL:  baseURL,
		password: password,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Ping performs a lightweight GET against the agent's status endpoint.
// Any 2xx response counts as reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/Api/ASF", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	c.authenticate(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ping agent: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected agent status: %d", resp.StatusCode)
	}
	return nil
}

// Command posts one text command to /Api/Command. A transport failure
// or non-2xx status is returned as an error; an envelope with
// Success=false is returned to the caller for policy decisions.
func (c *Client) Command(ctx context.Context, command string) (*CommandResponse, error) {
	body, err := json.Marshal(CommandRequest{Command: command})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/Api/Command", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authenticate(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send command: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected agent status: %d", resp.StatusCode)
	}

	var cmdResp CommandResponse
	if err := json.NewDecoder(resp.Body).Decode(&cmdResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &cmdResp, nil
}

func (c *Client) Redeem(ctx context.Context, code domain.Code) (*CommandResponse, error) {
	return c.Command(ctx, "!addlicense asf "+string(code))
}

func (c *Client) Status(ctx context.Context) (string, error) {
	resp, err := c.Command(ctx, "!status asf")
	if err != nil {
		return "", err
	}
	return resp.Result, nil
}

// authenticate attaches the shared secret header when configured.
func (c *Client) authenticate(req *http.Request) {
	if c.password != "" {
		req.Header.Set("Authentication", c.password)
	}
}

// compile-time check that Client implements Commander
var _ Commander = (*Client)(nil)
