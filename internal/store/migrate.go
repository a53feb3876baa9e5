package store

import (
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/asfclaim/claimerd/internal/domain"
)

// MigrateLegacyMarker backfills the processed set from the historical
// "already-seen count" marker file: the marker holds a single integer N
// meaning the first N entries of the current code list were handled by
// the previous tooling. The marker is deleted after consumption.
//
// The whole path is best-effort: a missing or unparsable marker is
// silently skipped, and a failure to add a single code aborts the
// backfill without failing the caller (the worst case is re-submitting
// an already-owned code, which the agent tolerates).
func MigrateLegacyMarker(markerPath string, candidates []domain.Code, s Store, logger *zap.Logger) {
	data, err := os.ReadFile(markerPath)
	if err != nil {
		return
	}

	n, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || n < 0 {
		logger.Warn("legacy marker unreadable, skipping backfill",
			zap.String("path", markerPath), zap.Error(err))
		return
	}
	if n > len(candidates) {
		n = len(candidates)
	}

	added := 0
	for _, code := range candidates[:n] {
		if s.Contains(code) {
			continue
		}
		if err := s.Add(code); err != nil {
			logger.Warn("legacy backfill aborted", zap.String("code", string(code)), zap.Error(err))
			return
		}
		added++
	}

	if err := os.Remove(markerPath); err != nil {
		logger.Warn("could not delete legacy marker", zap.String("path", markerPath), zap.Error(err))
	}

	logger.Info("legacy marker consumed",
		zap.String("path", markerPath),
		zap.Int("marker", n),
		zap.Int("backfilled", added))
}
