package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/asfclaim/claimerd/internal/domain"
)

// Config holds all runtime configuration loaded from environment variables.
// Every field has a sensible default; nothing is strictly required, but an
// invalid CLAIM_INTERVAL fails Load (startup-fatal per the error policy).
type Config struct {
	// Automation agent (ASF IPC)
	AgentURL      string
	AgentPassword string
	AgentTimeout  time.Duration

	// Code list source
	CodeListURL string

	// Notification sink (empty URL disables delivery entirely)
	WebhookURL       string
	WebhookUsername  string
	WebhookAvatarURL string
	NotifySeverities map[domain.Severity]bool
	NotifyDetail     bool

	// Cycle pacing
	ClaimInterval time.Duration
	BatchLimit    int
	SubmitSpacing time.Duration

	// Dispatch queue spacing between deliveries
	DispatchSpacing time.Duration

	// Connectivity gate
	ReachAttempts     int
	ReachDelay        time.Duration
	ReadyPollInterval time.Duration

	// State files live under DataDir: claimed.json and lastindex.txt.
	DataDir string

	// Ops HTTP surface
	OpsPort string
}

func Load() (*Config, error) {
	interval := getDuration("CLAIM_INTERVAL", 6*time.Hour)
	if interval <= 0 {
		return nil, fmt.Errorf("%w: CLAIM_INTERVAL=%s", domain.ErrInvalidInterval, os.Getenv("CLAIM_INTERVAL"))
	}

	severities, err := parseSeverities(getEnv("NOTIFY_SEVERITIES", "info,warn,error,success"))
	if err != nil {
		return nil, err
	}

	return &Config{
		AgentURL:      getEnv("AGENT_URL", "http://127.0.0.1:1242"),
		AgentPassword: os.Getenv("AGENT_PASSWORD"),
		AgentTimeout:  getDuration("AGENT_TIMEOUT", 30*time.Second),

		CodeListURL: getEnv("CODE_LIST_URL", "https://raw.githubusercontent.com/C4illin/ASF-games/main/codes.txt"),

		WebhookURL:       os.Getenv("WEBHOOK_URL"),
		WebhookUsername:  getEnv("WEBHOOK_USERNAME", "claimerd"),
		WebhookAvatarURL: os.Getenv("WEBHOOK_AVATAR_URL"),
		NotifySeverities: severities,
		NotifyDetail:     getBool("NOTIFY_DETAIL", false),

		ClaimInterval: interval,
		BatchLimit:    getInt("BATCH_LIMIT", 40),
		SubmitSpacing: getDuration("SUBMIT_SPACING", 2*time.Second),

		DispatchSpacing: getDuration("DISPATCH_SPACING", 200*time.Millisecond),

		ReachAttempts:     getInt("REACH_ATTEMPTS", 5),
		ReachDelay:        getDuration("REACH_DELAY", 5*time.Second),
		ReadyPollInterval: getDuration("READY_POLL_INTERVAL", 10*time.Second),

		DataDir: getEnv("DATA_DIR", "data"),

		OpsPort: getEnv("OPS_PORT", "8081"),
	}, nil
}

// parseSeverities parses the comma-separated severity filter, e.g.
// "error,success". Unknown names are rejected so a typo does not
// silently drop a whole notification class.
func parseSeverities(csv string) (map[domain.Severity]bool, error) {
	out := make(map[domain.Severity]bool)
	for _, part := range strings.Split(csv, ",") {
		s := domain.Severity(strings.ToLower(strings.TrimSpace(part)))
		if s == "" {
			continue
		}
		if !s.IsValid() {
			return nil, fmt.Errorf("unknown severity %q in NOTIFY_SEVERITIES", part)
		}
		out[s] = true
	}
	return out, nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func getBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		// A present but unparsable value is reported as zero so Load
		// rejects it instead of silently using the default.
		return 0
	}
	return defaultVal
}
