// Package hashcash implements the proof of work puzzle used to mine and
// validate blocks. A solution is a nonce that, when appended to the content
// being mined, produces a sha256 hex digest with a required number of
// leading zeros.
package hashcash

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// DefaultDifficulty is the number of leading zeros a block digest needs
// when a node is not configured otherwise.
const DefaultDifficulty = 4

// maxDifficulty is the length of a hex encoded sha256 digest.
const maxDifficulty = sha256.Size * 2

// Set of error variables for the puzzle search.
var (
	ErrSearchExhausted   = errors.New("search exhausted before a solution was found")
	ErrInvalidDifficulty = errors.New("invalid difficulty")
)

// EventHandler defines a function that is called when events
// occur during the search for a solution.
type EventHandler func(v string, args ...any)

// =============================================================================

type options struct {
	maxAttempts    uint64
	targetHashRate float64
	evHandler      EventHandler
}

// Option configures the behavior of FindToken.
type Option func(opts *options)

// WithMaxAttempts caps the number of nonces that will be tried. Once the cap
// is reached FindToken returns ErrSearchExhausted. Zero means no cap.
func WithMaxAttempts(attempts uint64) Option {
	return func(opts *options) {
		opts.maxAttempts = attempts
	}
}

// WithTargetHashRate throttles the search to a best effort rate, measured
// in thousands of hashes per second. Zero means no throttling.
func WithTargetHashRate(kHashesPerSecond float64) Option {
	return func(opts *options) {
		opts.targetHashRate = kHashesPerSecond
	}
}

// WithEvHandler registers a function to receive progress events.
func WithEvHandler(evHandler EventHandler) Option {
	return func(opts *options) {
		opts.evHandler = evHandler
	}
}

// =============================================================================

// CountLeadingZeros returns the number of leading '0' characters in the
// digest. The full length is returned when every character is a zero.
func CountLeadingZeros(digest string) int {
	for i := 0; i < len(digest); i++ {
		if digest[i] != '0' {
			return i
		}
	}

	return len(digest)
}

// Hash returns the hex encoded sha256 digest of the content followed by the
// base 10 representation of the nonce. Mining and verification must both
// go through this function so every node agrees on the digest.
func Hash(content []byte, nonce uint64) string {
	h := sha256.New()
	h.Write(content)
	h.Write(strconv.AppendUint(nil, nonce, 10))

	return hex.EncodeToString(h.Sum(nil))
}

// IsSolved reports whether the digest satisfies the difficulty.
func IsSolved(digest string, difficulty int) bool {
	return CountLeadingZeros(digest) >= difficulty
}

// ValidateDifficulty checks the difficulty can be satisfied by a sha256 hex digest.
func ValidateDifficulty(difficulty int) error {
	if difficulty < 0 || difficulty > maxDifficulty {
		return fmt.Errorf("%w: %d, must be between 0 and %d", ErrInvalidDifficulty, difficulty, maxDifficulty)
	}

	return nil
}

// FindToken searches for the first nonce, starting at 1, whose digest over
// the content satisfies the difficulty. The search runs until a solution is
// found, the context is cancelled, or the optional attempt cap is reached.
func FindToken(ctx context.Context, content []byte, difficulty int, opts ...Option) (string, uint64, error) {
	if err := ValidateDifficulty(difficulty); err != nil {
		return "", 0, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	ev := func(v string, args ...any) {
		if o.evHandler != nil {
			o.evHandler(v, args...)
		}
	}

	var throttle time.Duration
	if o.targetHashRate > 0 {
		throttle = time.Duration(float64(time.Second) / o.targetHashRate)
	}
	start := time.Now()

	for nonce := uint64(1); ; nonce++ {
		if ctx.Err() != nil {
			ev("hashcash: FindToken: CANCELLED: attempts[%d]", nonce-1)
			return "", 0, ctx.Err()
		}

		if o.maxAttempts > 0 && nonce > o.maxAttempts {
			return "", 0, fmt.Errorf("%w: attempts[%d]", ErrSearchExhausted, o.maxAttempts)
		}

		digest := Hash(content, nonce)
		if IsSolved(digest, difficulty) {
			ev("hashcash: FindToken: SOLVED: nonce[%d]: digest[%s]", nonce, digest)
			return digest, nonce, nil
		}

		if nonce%1_000_000 == 0 {
			ev("hashcash: FindToken: attempts[%d]", nonce)
		}

		// Every thousand hashes wait out whatever is left of the time
		// budget for those hashes.
		if throttle > 0 && nonce%1000 == 0 {
			if wait := throttle - time.Since(start); wait > 0 {
				if err := sleep(ctx, wait); err != nil {
					return "", 0, err
				}
			}
			start = time.Now()
		}
	}
}

// Verify recomputes the digest for the content and nonce and reports
// whether it satisfies the difficulty.
func Verify(content []byte, nonce uint64, difficulty int) bool {
	return IsSolved(Hash(content, nonce), difficulty)
}

// =============================================================================

// sleep pauses for the duration unless the context is cancelled first.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
