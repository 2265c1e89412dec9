/*
DESCRIPTION
  One-time passcodes for email sign-in.

LICENSE
  Copyright (C) 2026 the Australian Ocean Lab (AusOcean)

  This is free software: you can redistribute it and/or modify it
  under the terms of the GNU General Public License as published by
  the Free Software Foundation, either version 3 of the License, or
  (at your option) any later version.

  It is distributed in the hope that it will be useful,
  but WITHOUT ANY WARRANTY; without even the implied warranty of
  MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
  GNU General Public License for more details.

  You should have received a copy of the GNU General Public License
  in gpl.txt. If not, see http://www.gnu.org/licenses/.
*/

// Package pin issues and verifies 6-digit one-time passcodes keyed by
// email address. Codes are stored only as bcrypt hashes, expire after
// a TTL and allow a limited number of verification attempts.
package pin

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net/mail"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Defaults.
const (
	CodeLength  = 6
	MaxAttempts = 5
	TTL         = 10 * time.Minute
)

// Errors returned by Verify and Issue.
var (
	ErrNotFound        = errors.New("PIN not found or expired")
	ErrTooManyAttempts = errors.New("too many attempts, please request a new PIN")
	ErrInvalidEmail    = errors.New("invalid email address")
)

// MismatchError is returned when a code does not match.
type MismatchError struct {
	Remaining int // Attempts remaining.
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("invalid PIN, %d attempts remaining", e.Remaining)
}

// Entry is a pending passcode.
type Entry struct {
	Email    string    `firestore:"email"`
	Hash     []byte    `firestore:"hash"`
	Name     string    `firestore:"name"`
	Issued   time.Time `firestore:"issued"`
	Attempts int       `firestore:"attempts"`
}

// Service issues and verifies passcodes.
type Service struct {
	kv          KV
	ttl         time.Duration
	maxAttempts int
	cost        int
	now         func() time.Time
	mu          sync.Mutex // Serializes Verify.
}

// Option configures a Service.
type Option func(*Service)

// WithTTL sets the passcode lifetime.
func WithTTL(d time.Duration) Option {
	return func(s *Service) { s.ttl = d }
}

// WithMaxAttempts sets the number of verification attempts allowed.
func WithMaxAttempts(n int) Option {
	return func(s *Service) { s.maxAttempts = n }
}

// WithCost sets the bcrypt cost.
func WithCost(cost int) Option {
	return func(s *Service) { s.cost = cost }
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService returns a Service storing entries in kv.
func NewService(kv KV, opts ...Option) *Service {
	s := &Service{kv: kv, ttl: TTL, maxAttempts: MaxAttempts, cost: bcrypt.DefaultCost, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidEmail returns true if email is a bare address.
func ValidEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email && addr.Name == ""
}

// Issue generates a new code for email, replacing any pending one, and
// returns it.
func (s *Service) Issue(ctx context.Context, email, name string) (string, error) {
	email = NormalizeEmail(email)
	if !ValidEmail(email) {
		return "", ErrInvalidEmail
	}
	code, err := generate()
	if err != nil {
		return "", fmt.Errorf("could not generate PIN: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), s.cost)
	if err != nil {
		return "", fmt.Errorf("could not hash PIN: %w", err)
	}
	err = s.kv.Put(ctx, &Entry{Email: email, Hash: hash, Name: strings.TrimSpace(name), Issued: s.now()})
	if err != nil {
		return "", fmt.Errorf("could not store PIN: %w", err)
	}
	return code, nil
}

// Verify checks code against the pending entry for email. A match
// consumes the entry and returns it. Otherwise Verify returns
// ErrNotFound, ErrTooManyAttempts or a *MismatchError.
func (s *Service) Verify(ctx context.Context, email, code string) (*Entry, error) {
	email = NormalizeEmail(email)
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.kv.Get(ctx, email)
	if err != nil {
		return nil, err
	}
	if s.now().Sub(e.Issued) > s.ttl {
		s.kv.Delete(ctx, email)
		return nil, ErrNotFound
	}
	if e.Attempts >= s.maxAttempts {
		s.kv.Delete(ctx, email)
		return nil, ErrTooManyAttempts
	}

	if bcrypt.CompareHashAndPassword(e.Hash, []byte(strings.TrimSpace(code))) != nil {
		e.Attempts++
		err = s.kv.Put(ctx, e)
		if err != nil {
			return nil, fmt.Errorf("could not record attempt: %w", err)
		}
		return nil, &MismatchError{Remaining: s.maxAttempts - e.Attempts}
	}

	err = s.kv.Delete(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("could not consume PIN: %w", err)
	}
	return e, nil
}

// Sweep deletes entries older than the TTL and returns how many were
// deleted.
func (s *Service) Sweep(ctx context.Context) (int, error) {
	return s.kv.DeleteBefore(ctx, s.now().Add(-s.ttl))
}

// generate returns a random code of CodeLength digits.
func generate() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
