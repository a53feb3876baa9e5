// Package parse turns the automation agent's human-readable command
// output into structured per-account results. The agent's response
// format is an undocumented third-party contract; the regular
// expressions below encode the observed field boundaries (angle-bracket
// account names, the ID: label, escaped-newline terminators) and must
// be changed only against captured agent output.
//
// Both parsers are total: malformed lines are skipped, never fatal.
package parse

import (
	"regexp"
	"strings"

	"github.com/asfclaim/claimerd/internal/domain"
)

// BareOKStatus replaces a bare "OK" claim status. The agent reports
// plain OK both for genuine no-op successes and for already-owned
// entries; an actionable success always carries detail after the OK,
// so a bare OK is treated as "nothing granted", not as a failure.
const BareOKStatus = "OK -> Not available for this account"

var (
	// <bot> [ID: app/123] free-text status
	claimLineRe = regexp.MustCompile(`(?i)<(?P<name>[^<>]+)>\s+(?:ID:\s*(?P<item>\w+/\d+)\s*)?(?P<status>.+)`)

	// <bot> status phrase (up to an optional colon-qualified suffix)
	readyLineRe = regexp.MustCompile(`<(?P<name>[^<>]+)>\s+(?P<status>[^:\r\n]+)`)

	connectingRe = regexp.MustCompile(`(?i)connecting to steam network`)
)

// Claim parses one claim-command response into per-account results.
// Keys of the returned map are exactly the account names matched.
func Claim(text string) domain.ClaimResult {
	result := make(domain.ClaimResult)

	for _, line := range strings.Split(text, "\n") {
		line = strings.Trim(strings.TrimSpace(line), `'"`)
		m := claimLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		name := strings.TrimSpace(m[claimLineRe.SubexpIndex("name")])
		item := m[claimLineRe.SubexpIndex("item")]
		status := m[claimLineRe.SubexpIndex("status")]

		// The status runs to end of line, a literal \n escape, or a
		// trailing quoted suffix.
		if i := strings.Index(status, `\n`); i >= 0 {
			status = status[:i]
		}
		status = strings.TrimSpace(strings.TrimRight(status, `'" `))

		if status == "OK" {
			status = BareOKStatus
		}

		result[name] = domain.AccountResult{ItemRef: item, Status: status}
	}

	return result
}

// Readiness parses one aggregate status response. A matched account is
// not ready exactly when its status phrase says it is still connecting
// to the Steam network. Zero matched accounts yields AllReady=true:
// with nothing reported as connecting there is nothing to wait for.
func Readiness(text string) domain.ReadinessResult {
	result := domain.ReadinessResult{
		Accounts: make(map[string]domain.AccountStatus),
		AllReady: true,
	}

	for _, line := range strings.Split(text, "\n") {
		m := readyLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		name := strings.TrimSpace(m[readyLineRe.SubexpIndex("name")])
		status := strings.TrimSpace(m[readyLineRe.SubexpIndex("status")])
		status = strings.TrimRight(status, ".,!? ")

		ready := !connectingRe.MatchString(status)
		result.Accounts[name] = domain.AccountStatus{StatusText: status, Ready: ready}
		if !ready {
			result.AllReady = false
		}
	}

	return result
}
