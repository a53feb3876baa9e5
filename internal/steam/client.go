// Package steam enriches notifications with store metadata for a code.
// Every lookup is best-effort: on any failure the caller gets
// placeholder metadata, never an error.
package steam

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/asfclaim/claimerd/internal/domain"
)

const defaultBaseURL = "https://store.steampowered.com/api"

// PlaceholderName is used when no metadata could be fetched for a code.
const PlaceholderName = "Unknown package"

// Meta is the resolved display metadata for one code.
type Meta struct {
	Name     string
	ImageURL string
}

// Enricher is the lookup capability consumed by the claim cycle.
type Enricher interface {
	Describe(ctx context.Context, code domain.Code) Meta
}

// Client resolves app codes via the appdetails lookup and sub codes via
// the packagedetails lookup.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// NewClientWithBaseURL is used by tests to point at a local mock server.
func NewClientWithBaseURL(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	c := NewClient(timeout, logger)
	c.baseURL = baseURL
	return c
}

type appDetails struct {
	Success bool `json:"success"`
	Data    struct {
		Name        string `json:"name"`
		HeaderImage string `json:"header_image"`
	} `json:"data"`
}

type packageDetails struct {
	Success bool `json:"success"`
	Data    struct {
		Name      string `json:"name"`
		SmallLogo string `json:"small_logo"`
	} `json:"data"`
}

// Describe resolves display metadata for a code. Codes look like
// "a/1034290" (app), "s/303" (sub/package) or a bare numeric ID, which
// is treated as a sub. Anything that cannot be resolved falls back to
// the placeholder.
func (c *Client) Describe(ctx context.Context, code domain.Code) Meta {
	kind, id := splitCode(code)
	if id == "" {
		return Meta{Name: PlaceholderName}
	}

	switch kind {
	case "a", "app":
		return c.describeApp(ctx, id)
	default:
		return c.describePackage(ctx, id)
	}
}

func (c *Client) describeApp(ctx context.Context, id string) Meta {
	var payload map[string]appDetails
	url := fmt.Sprintf("%s/appdetails?appids=%s", c.baseURL, id)
	if err := c.get(ctx, url, &payload); err != nil {
		c.logger.Debug("app lookup failed", zap.String("id", id), zap.Error(err))
		return Meta{Name: PlaceholderName}
	}

	d, ok := payload[id]
	if !ok || !d.Success || d.Data.Name == "" {
		return Meta{Name: PlaceholderName}
	}
	return Meta{Name: d.Data.Name, ImageURL: d.Data.HeaderImage}
}

func (c *Client) describePackage(ctx context.Context, id string) Meta {
	var payload map[string]packageDetails
	url := fmt.Sprintf("%s/packagedetails?packageids=%s", c.baseURL, id)
	if err := c.get(ctx, url, &payload); err != nil {
		c.logger.Debug("package lookup failed", zap.String("id", id), zap.Error(err))
		return Meta{Name: PlaceholderName}
	}

	d, ok := payload[id]
	if !ok || !d.Success || d.Data.Name == "" {
		return Meta{Name: PlaceholderName}
	}
	return Meta{Name: d.Data.Name, ImageURL: d.Data.SmallLogo}
}

func (c *Client) get(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// splitCode breaks a code into its kind prefix and numeric ID.
func splitCode(code domain.Code) (kind, id string) {
	s := string(code)
	if i := strings.IndexByte(s, '/'); i >= 0 {
		return strings.ToLower(s[:i]), s[i+1:]
	}
	return "", s
}

// compile-time check that Client implements Enricher
var _ Enricher = (*Client)(nil)
