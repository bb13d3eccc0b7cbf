// Package attest derives transfer identifiers, produces attestations, and
// stores them for destination-side completion. Verification is a
// stored-content equality check against a trusted attesting authority, not
// a signature check; swap the Attester implementation to change that.
package attest

import (
	"bytes"
	"context"
	"encoding/binary"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"
)

// TransferID derives the unique identifier for a transfer from its
// monotonically increasing nonce, creation time, and sender. The nonce
// alone guarantees collision-freedom; time and sender bind the id to its
// originating context.
func TransferID(nonce uint64, createdAt int64, sender common.Address) string {
	buf := make([]byte, 16, 16+common.AddressLength)
	binary.BigEndian.PutUint64(buf[0:8], nonce)
	binary.BigEndian.PutUint64(buf[8:16], uint64(createdAt))
	buf = append(buf, sender.Bytes()...)
	return hexutil.Encode(crypto.Keccak256(buf))
}

// Attester is the external attesting authority. Attest may take arbitrary
// time; the store records whatever it eventually produces.
type Attester interface {
	Attest(ctx context.Context, message []byte) ([]byte, error)
}

// DigestAttester is the default trusted-infrastructure attester: the
// attestation is the keccak digest of the message. Deterministic, so the
// destination side can be driven from the same message bytes in tests.
type DigestAttester struct {
	// Delay simulates attestation finality lag.
	Delay time.Duration
}

// Attest produces the digest attestation after the configured delay.
func (a DigestAttester) Attest(ctx context.Context, message []byte) ([]byte, error) {
	if a.Delay > 0 {
		select {
		case <-time.After(a.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return crypto.Keccak256(message), nil
}

// Store holds attestations keyed by transfer id.
type Store struct {
	mu           sync.RWMutex
	attestations map[string][]byte
}

// NewStore creates an empty attestation store.
func NewStore() *Store {
	return &Store{attestations: make(map[string][]byte)}
}

// Put records an attestation for a transfer id.
func (s *Store) Put(transferID string, attestation []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attestations[transferID] = attestation
	logrus.WithField("transfer_id", transferID).Debug("Attestation recorded")
}

// Get returns the attestation for a transfer id, if present.
func (s *Store) Get(transferID string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	att, ok := s.attestations[transferID]
	return att, ok
}

// Matches reports whether a supplied attestation equals the one on file.
// Returns false both for a mismatch and for a missing attestation.
func (s *Store) Matches(transferID string, attestation []byte) bool {
	stored, ok := s.Get(transferID)
	return ok && bytes.Equal(stored, attestation)
}

// Wait polls for an attestation within the timeout budget. A budget expiry
// is a valid non-error outcome: (nil, false, nil) means "not yet ready",
// distinct from verification failure. Cancelling the context aborts the
// wait with the context's error.
func (s *Store) Wait(ctx context.Context, transferID string, timeout time.Duration) ([]byte, bool, error) {
	const pollInterval = 50 * time.Millisecond

	deadline := time.Now().Add(timeout)
	for {
		if att, ok := s.Get(transferID); ok {
			return att, true, nil
		}
		if time.Now().After(deadline) {
			return nil, false, nil
		}
		select {
		case <-ctx.Done():
			return nil, false, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}
