package provider

import (
	"context"

	"github.com/asfclaim/claimerd/internal/domain"
)

// Embed is one embed object in the sink payload.
type Embed struct {
	Title       string              `json:"title"`
	Color       int                 `json:"color"`
	Description string              `json:"description,omitempty"`
	Image       *EmbedImage         `json:"image,omitempty"`
	Fields      []domain.EmbedField `json:"fields,omitempty"`
}

type EmbedImage struct {
	URL string `json:"url"`
}

// WebhookPayload is the JSON body posted to the notification sink.
type WebhookPayload struct {
	Embeds    []Embed `json:"embeds"`
	Username  string  `json:"username"`
	AvatarURL string  `json:"avatar_url"`
}

// Deliverer abstracts the notification sink so the dispatch queue can
// be tested with full control over delivery behaviour, without real
// HTTP calls.
type Deliverer interface {
	Deliver(ctx context.Context, n domain.Notification) error
}
