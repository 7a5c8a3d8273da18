package utils

import (
	"context"
	"sync"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

// PasswordHasher wraps bcrypt.  Every hash and compare runs on its own
// goroutine behind a weighted semaphore, so at most `concurrency` bcrypt
// calls burn CPU at once and callers stop waiting when ctx ends.
type PasswordHasher struct {
	cost int
	sem  *semaphore.Weighted

	dummyOnce sync.Once
	dummy     []byte
}

func NewPasswordHasher(cost, concurrency int) *PasswordHasher {
	if concurrency < 1 {
		concurrency = 1
	}
	return &PasswordHasher{cost: cost, sem: semaphore.NewWeighted(int64(concurrency))}
}

type hashResult struct {
	digest []byte
	err    error
}

// Hash returns the salt segment and the full bcrypt digest of plain.
func (h *PasswordHasher) Hash(ctx context.Context, plain string) (salt, digest string, err error) {
	res, err := h.run(ctx, func() hashResult {
		b, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
		return hashResult{digest: b, err: err}
	})
	if err != nil {
		return "", "", err
	}
	if res.err != nil {
		return "", "", res.err
	}
	d := string(res.digest)
	return SaltOf(d), d, nil
}

// Verify compares plain with digest.  Malformed digests, cancelled contexts
// and mismatches all yield false.
func (h *PasswordHasher) Verify(ctx context.Context, plain, digest string) bool {
	res, err := h.run(ctx, func() hashResult {
		return hashResult{err: bcrypt.CompareHashAndPassword([]byte(digest), []byte(plain))}
	})
	return err == nil && res.err == nil
}

// Burn spends the same work as a real Verify.  Sign-in calls it for unknown
// users so response times do not reveal which accounts exist.
func (h *PasswordHasher) Burn(ctx context.Context, plain string) {
	h.dummyOnce.Do(func() {
		h.dummy, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), h.cost)
	})
	_ = h.Verify(ctx, plain, string(h.dummy))
}

func (h *PasswordHasher) run(ctx context.Context, fn func() hashResult) (hashResult, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return hashResult{}, err
	}
	out := make(chan hashResult, 1)
	go func() {
		defer h.sem.Release(1)
		out <- fn()
	}()
	select {
	case res := <-out:
		return res, nil
	case <-ctx.Done():
		return hashResult{}, ctx.Err()
	}
}

// SaltOf extracts the 22 character salt from a "$2a$NN$..." digest.
func SaltOf(digest string) string {
	const start, size = 7, 22
	if len(digest) < start+size {
		return ""
	}
	return digest[start : start+size]
}
