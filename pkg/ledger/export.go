package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gowebpki/jcs"

	"github.com/sentinel-labs/sentinel/pkg/contracts"
)

// Bundle is an exportable snapshot of the ledger with a canonical digest,
// so an exported trail can be integrity-checked offline.
type Bundle struct {
	BundleID   string                 `json:"bundle_id"`
	CreatedAt  time.Time              `json:"created_at"`
	EntryCount int                    `json:"entry_count"`
	Entries    []contracts.AuditEntry `json:"entries"`
	Digest     string                 `json:"digest"`
}

// ErrDigestMismatch indicates bundle entries that no longer match the digest.
var ErrDigestMismatch = errors.New("bundle digest mismatch")

// ExportBundle snapshots the current entries into a digestable bundle.
func (l *AuditLedger) ExportBundle() (*Bundle, error) {
	entries := l.Snapshot()

	digest, err := entriesDigest(entries)
	if err != nil {
		return nil, err
	}
	return &Bundle{
		BundleID:   uuid.New().String(),
		CreatedAt:  l.clock().UTC(),
		EntryCount: len(entries),
		Entries:    entries,
		Digest:     digest,
	}, nil
}

// VerifyBundle recomputes the canonical digest of a bundle's entries.
func VerifyBundle(b *Bundle) error {
	digest, err := entriesDigest(b.Entries)
	if err != nil {
		return err
	}
	if digest != b.Digest {
		return fmt.Errorf("%w: computed %s, stored %s", ErrDigestMismatch, digest, b.Digest)
	}
	return nil
}

// entriesDigest hashes the RFC 8785 canonical form of the entry sequence, so
// the digest is stable across JSON serializers and key orderings.
func entriesDigest(entries []contracts.AuditEntry) (string, error) {
	if entries == nil {
		entries = []contracts.AuditEntry{}
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return "", fmt.Errorf("marshal entries: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("canonicalize entries: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return "sha256:" + hex.EncodeToString(sum[:]), nil
}
