// Package codelist fetches the upstream list of redeemable codes.
package codelist

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/asfclaim/claimerd/internal/domain"
)

// Source is the read-only fetch capability for the candidate code list.
type Source interface {
	Fetch(ctx context.Context) ([]domain.Code, error)
}

// HTTPSource fetches a newline-delimited raw text document. Lines are
// trimmed and empties dropped; the original line order is preserved
// (the list is assumed append-only, newest entries at the end).
type HTTPSource struct {
	url        string
	httpClient *http.Client
}

func NewHTTPSource(url string, timeout time.Duration) *HTTPSource {
	return &HTTPSource{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (s *HTTPSource) Fetch(ctx context.Context) ([]domain.Code, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch code list: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected code list status: %d", resp.StatusCode)
	}

	var codes []domain.Code
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		codes = append(codes, domain.Code(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read code list: %w", err)
	}
	return codes, nil
}

// compile-time check that HTTPSource implements Source
var _ Source = (*HTTPSource)(nil)
