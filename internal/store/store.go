package store

import "github.com/asfclaim/claimerd/internal/domain"

// Store holds the set of codes already successfully submitted.
// A code is added if and only if its submission outcome was a definitive
// success; codes are never removed. The file implementation is in
// file.go; tests use the in-memory mock (mock.go).
type Store interface {
	Contains(code domain.Code) bool
	// Add records the code and persists immediately.
	Add(code domain.Code) error
	Len() int
}
