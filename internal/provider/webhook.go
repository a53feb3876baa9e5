package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/asfclaim/claimerd/internal/domain"
)

// Severity → embed accent color (standard Discord palette values).
var severityColors = map[domain.Severity]int{
	domain.SeverityInfo:    0x3498db,
	domain.SeverityWarn:    0xf1c40f,
	domain.SeverityError:   0xe74c3c,
	domain.SeveritySuccess: 0x2ecc71,
}

// WebhookSender delivers notifications by POSTing embed payloads to the
// configured sink URL. An empty URL disables the sender entirely, and
// severities outside the enabled set are dropped without an HTTP call;
// both cases report success so callers never treat suppression as a
// delivery failure.
type WebhookSender struct {
	url        string
	username   string
	avatarURL  string
	enabled    map[domain.Severity]bool
	httpClient *http.Client
}

func NewWebhookSender(url, username, avatarURL string, enabled map[domain.Severity]bool, timeout time.Duration) *WebhookSender {
	return &WebhookSender{
		url:       url,
		username:  username,
		avatarURL: avatarURL,
		enabled:   enabled,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Configured reports whether a sink URL is present at all.
func (s *WebhookSender) Configured() bool { return s.url != "" }

func (s *WebhookSender) Deliver(ctx context.Context, n domain.Notification) error {
	if s.url == "" || !s.enabled[n.Severity] {
		return nil
	}

	embed := Embed{
		Title:       n.Title,
		Color:       severityColors[n.Severity],
		Description: n.Description,
		Fields:      n.Fields,
	}
	if n.ImageURL != "" {
		embed.Image = &EmbedImage{URL: n.ImageURL}
	}

	body, err := json.Marshal(WebhookPayload{
		Embeds:    []Embed{embed},
		Username:  s.username,
		AvatarURL: s.avatarURL,
	})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected sink status: %d", resp.StatusCode)
	}
	return nil
}

// compile-time check that WebhookSender implements Deliverer
var _ Deliverer = (*WebhookSender)(nil)
