// Package codestore keeps short-lived verification codes in process memory.
//
// A Store maps a normalized email address to at most one pending record.
// Issuing overwrites whatever was pending for that address; verifying
// consumes the record on success and on expiry, but leaves it in place on a
// mismatch so the caller can retry. Expiry is only checked when a code is
// presented; nothing sweeps the map in the background.
package codestore

import (
	"crypto/subtle"
	"errors"
	"strings"
	"sync"
	"time"
)

var (
	ErrNotFound = errors.New("no pending code for this email")
	ErrExpired  = errors.New("code expired")
	ErrMismatch = errors.New("code mismatch")
)

// Record is a pending verification. Payload carries flow-specific data from
// issuance to verification and is handed back exactly once.
type Record struct {
	Email    string
	Code     string
	IssuedAt time.Time
	Payload  map[string]string
}

// Generator returns a fresh code. Implementations must use a secure source.
type Generator func() (string, error)

// Store is safe for concurrent use.
type Store struct {
	ttl      time.Duration
	generate Generator
	now      func() time.Time

	mu      sync.Mutex
	records map[string]Record
}

type Option func(*Store)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New returns an empty store whose codes live for ttl.
func New(ttl time.Duration, gen Generator, opts ...Option) *Store {
	s := &Store{
		ttl:      ttl,
		generate: gen,
		now:      time.Now,
		records:  make(map[string]Record),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// TTL is the configured code lifetime.
func (s *Store) TTL() time.Duration { return s.ttl }

// NormalizeEmail trims and lower-cases an address the same way the store keys it.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Issue generates a code for email, replacing any pending one, and returns
// it for dispatch.
func (s *Store) Issue(email string, payload map[string]string) (string, error) {
	code, err := s.generate()
	if err != nil {
		return "", err
	}
	code = strings.ToUpper(code)

	cp := make(map[string]string, len(payload))
	for k, v := range payload {
		cp[k] = v
	}
	key := NormalizeEmail(email)

	s.mu.Lock()
	s.records[key] = Record{Email: key, Code: code, IssuedAt: s.now(), Payload: cp}
	s.mu.Unlock()
	return code, nil
}

// Verify checks code against the pending record for email and returns its
// payload on success.
func (s *Store) Verify(email, code string) (map[string]string, error) {
	key := NormalizeEmail(email)
	presented := strings.ToUpper(strings.TrimSpace(code))

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok {
		return nil, ErrNotFound
	}
	if s.now().Sub(rec.IssuedAt) > s.ttl {
		delete(s.records, key)
		return nil, ErrExpired
	}
	if subtle.ConstantTimeCompare([]byte(rec.Code), []byte(presented)) != 1 {
		return nil, ErrMismatch
	}
	delete(s.records, key)
	return rec.Payload, nil
}

// Pending reports how many records are held, expired ones included.
func (s *Store) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
