// Package fingerprint provides content-addressed deduplication of ingested documents.
package fingerprint

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// ErrAlreadyExists is returned by Register when the fingerprint is already
// recorded. Callers treat it as a benign outcome, not a failure: two concurrent
// registrations of the same fingerprint must leave exactly one row behind.
var ErrAlreadyExists = errors.New("fingerprint already registered")

// Fingerprint returns the content hash of raw file bytes as lowercase hex.
// It is a pure function of the bytes alone; the filename never participates,
// so byte-identical uploads always map to the same document identity.
func Fingerprint(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// Store persists the set of previously ingested content fingerprints.
// Implementations must survive process restarts and tolerate concurrent
// registration races on the same fingerprint.
type Store interface {
	// Exists reports whether the fingerprint has been registered.
	Exists(ctx context.Context, fp string) (bool, error)
	// Register durably records the fingerprint with its original filename.
	// Returns ErrAlreadyExists if the fingerprint is already present.
	Register(ctx context.Context, fp, filename string) error
	// Count returns the number of registered documents.
	Count(ctx context.Context) (int64, error)
	Close() error
}
