package domain

import "strings"

// Code is an opaque redeemable product identifier, one trimmed non-empty
// line from the upstream code list (e.g. "a/1034290" or "s/303").
type Code string

// AccountResult is the parsed outcome of one claim submission for a
// single managed account.
type AccountResult struct {
	// ItemRef is the optional item reference reported by the agent
	// (word characters, a slash, digits). Empty when the agent gave
	// no per-item detail.
	ItemRef string
	Status  string
}

// ClaimResult maps account name to the parsed outcome of one submission.
// Created fresh per submission and discarded after classification.
type ClaimResult map[string]AccountResult

// RateLimited reports whether any account's status carries the agent's
// RateLimitExceeded marker. A single rate-limited account taints the
// whole submission: the code must not be marked processed.
func (r ClaimResult) RateLimited() bool {
	for _, ar := range r {
		if strings.Contains(ar.Status, "RateLimitExceeded") {
			return true
		}
	}
	return false
}

// AccountStatus is the parsed readiness of a single managed account.
type AccountStatus struct {
	StatusText string
	Ready      bool
}

// ReadinessResult is the parsed outcome of one aggregate status query.
// AllReady is the AND over all matched accounts; with zero matched
// accounts it is vacuously true.
type ReadinessResult struct {
	Accounts map[string]AccountStatus
	AllReady bool
}

// Severity classifies a notification or log event.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarn    Severity = "warn"
	SeverityError   Severity = "error"
	SeveritySuccess Severity = "success"
)

func (s Severity) IsValid() bool {
	switch s {
	case SeverityInfo, SeverityWarn, SeverityError, SeveritySuccess:
		return true
	}
	return false
}

// EmbedField is one name/value pair attached to a notification embed.
type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// Notification is the outbound payload handed to the dispatch queue.
// It is owned exclusively by the queue from enqueue until the delivery
// attempt completes.
type Notification struct {
	ID          string
	Severity    Severity
	Title       string
	Description string
	ImageURL    string
	Fields      []EmbedField
}
