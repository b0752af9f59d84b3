// ===========================================
// Package shortcode - Short Code Generation
// ===========================================
// Generated codes are base62 (0-9, A-Z, a-z). Custom codes may
// also use '-' and '_'. Both must be 2-32 characters long; two
// character vanity codes ("gh", "yt") are allowed.
//
// GENERATION:
// 1. Draw a random candidate from crypto/rand
// 2. Ask the caller whether it is taken
// 3. Retry on collision, up to MaxAttempts
// Exhausting the attempts means the code space is too small for
// the load. It is reported as ErrExhausted and must not be retried
// per request.
// ===========================================

package shortcode

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
)

const (
	MinLength          = 2
	MaxLength          = 32
	DefaultLength      = 6
	DefaultMaxAttempts = 10

	base62Chars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

	// unbiasedLimit is the largest multiple of len(base62Chars) <= 256.
	unbiasedLimit = 256 - 256%len(base62Chars)
)

var (
	// ErrInvalid is returned by Validate for malformed codes.
	ErrInvalid = errors.New("invalid short code")
	// ErrExhausted is returned when every candidate collided.
	ErrExhausted = errors.New("short code space exhausted")
)

// ExistsFunc reports whether code is already taken.
type ExistsFunc func(ctx context.Context, code string) (bool, error)

// Generator produces random short codes. The zero value is not usable;
// construct with New.
type Generator struct {
	length      int
	maxAttempts int
	random      io.Reader
}

// Option customizes a Generator.
type Option func(*Generator)

// WithRandom replaces crypto/rand as the entropy source. Tests use it
// to force collisions.
func WithRandom(r io.Reader) Option {
	return func(g *Generator) { g.random = r }
}

// New creates a generator. Non-positive arguments fall back to the defaults.
func New(length, maxAttempts int, opts ...Option) *Generator {
	if length <= 0 {
		length = DefaultLength
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	g := &Generator{
		length:      length,
		maxAttempts: maxAttempts,
		random:      rand.Reader,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// MaxAttempts is the collision budget of one Generate call.
func (g *Generator) MaxAttempts() int {
	return g.maxAttempts
}

// Candidate draws one random code without checking for collisions.
func (g *Generator) Candidate() (string, error) {
	code := make([]byte, 0, g.length)
	buf := make([]byte, g.length)
	for len(code) < g.length {
		if _, err := io.ReadFull(g.random, buf); err != nil {
			return "", fmt.Errorf("failed to generate random bytes: %w", err)
		}
		for _, b := range buf {
			// Bytes at or above unbiasedLimit would favor the first
			// 256%62 characters.
			if int(b) >= unbiasedLimit {
				continue
			}
			code = append(code, base62Chars[int(b)%len(base62Chars)])
			if len(code) == g.length {
				break
			}
		}
	}
	return string(code), nil
}

// Generate returns a candidate for which exists reports false.
// Errors from exists are returned unchanged.
func (g *Generator) Generate(ctx context.Context, exists ExistsFunc) (string, error) {
	for i := 0; i < g.maxAttempts; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		code, err := g.Candidate()
		if err != nil {
			return "", err
		}

		taken, err := exists(ctx, code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
	}
	return "", fmt.Errorf("%w after %d attempts", ErrExhausted, g.maxAttempts)
}

// Validate checks the length and charset rule shared by custom and
// generated codes.
func Validate(code string) error {
	if len(code) < MinLength || len(code) > MaxLength {
		return fmt.Errorf("%w: length must be %d-%d characters", ErrInvalid, MinLength, MaxLength)
	}
	for _, c := range code {
		if !isAllowed(c) {
			return fmt.Errorf("%w: character %q not allowed", ErrInvalid, c)
		}
	}
	return nil
}

func isAllowed(c rune) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '-' || c == '_':
		return true
	}
	return false
}
