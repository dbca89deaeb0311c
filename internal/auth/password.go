package auth

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

const (
	// MinPasswordLength is the shortest password accepted for new accounts.
	MinPasswordLength = 8
	// MaxPasswordLength is the bcrypt input limit in bytes.
	MaxPasswordLength = 72
)

// ErrPasswordLength is returned by Hash for input bcrypt cannot digest.
var ErrPasswordLength = errors.New("password must be at most 72 bytes")

// Hasher hashes and verifies passwords with bcrypt. The number of hashes
// computed at the same time is bounded so that a burst of logins cannot starve
// the rest of the server of CPU.
type Hasher struct {
	cost int
	sem  *semaphore.Weighted

	dummyOnce sync.Once
	dummy     []byte
}

// NewHasher returns a Hasher using cost (bcrypt.DefaultCost when out of range)
// and at most concurrency parallel hashes (GOMAXPROCS when <= 0).
func NewHasher(cost, concurrency int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	if concurrency <= 0 {
		concurrency = runtime.GOMAXPROCS(0)
	}
	return &Hasher{
		cost: cost,
		sem:  semaphore.NewWeighted(int64(concurrency)),
	}
}

// Hash returns a salted bcrypt digest of plaintext. Account policy such as a
// minimum length is left to the caller.
func (h *Hasher) Hash(ctx context.Context, plaintext string) (string, error) {
	if len(plaintext) > MaxPasswordLength {
		return "", ErrPasswordLength
	}
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer h.sem.Release(1)

	digest, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(digest), nil
}

// Verify reports whether plaintext matches digest. A malformed digest does not
// match. The error is non-nil only when ctx ends while waiting for a slot.
func (h *Hasher) Verify(ctx context.Context, plaintext, digest string) (bool, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return false, err
	}
	defer h.sem.Release(1)

	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext)) == nil, nil
}

// burn spends the same work as a real verification. It keeps a login for an
// unknown email as slow as one with a wrong password.
func (h *Hasher) burn(ctx context.Context, plaintext string) error {
	h.dummyOnce.Do(func() {
		h.dummy, _ = bcrypt.GenerateFromPassword([]byte("medtrack-dummy-password"), h.cost)
	})
	_, err := h.Verify(ctx, plaintext, string(h.dummy))
	return err
}
