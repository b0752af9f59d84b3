package shortcode_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/linkshortener/internal/shortcode"
)

func never(context.Context, string) (bool, error) { return false, nil }

func TestGenerate_SatisfiesRule(t *testing.T) {
	g := shortcode.New(6, 10)

	seen := make(map[string]struct{})
	for i := 0; i < 200; i++ {
		code, err := g.Generate(context.Background(), never)
		require.NoError(t, err)
		assert.Len(t, code, 6)
		assert.NoError(t, shortcode.Validate(code))
		seen[code] = struct{}{}
	}
	assert.Greater(t, len(seen), 190, "random codes should rarely repeat")
}

func TestGenerate_DefaultsForNonPositiveArgs(t *testing.T) {
	g := shortcode.New(0, 0)
	assert.Equal(t, shortcode.DefaultMaxAttempts, g.MaxAttempts())

	code, err := g.Generate(context.Background(), never)
	require.NoError(t, err)
	assert.Len(t, code, shortcode.DefaultLength)
}

func TestGenerate_RetriesOnCollision(t *testing.T) {
	g := shortcode.New(6, 10)

	calls := 0
	exists := func(_ context.Context, code string) (bool, error) {
		calls++
		return calls < 4, nil
	}

	code, err := g.Generate(context.Background(), exists)
	require.NoError(t, err)
	assert.NotEmpty(t, code)
	assert.Equal(t, 4, calls)
}

func TestGenerate_ExhaustsBudget(t *testing.T) {
	// A constant entropy source yields the same candidate every time.
	zeros := bytes.NewReader(make([]byte, 1024))
	g := shortcode.New(6, 10, shortcode.WithRandom(zeros))

	calls := 0
	exists := func(_ context.Context, code string) (bool, error) {
		calls++
		assert.Equal(t, "000000", code)
		return true, nil
	}

	_, err := g.Generate(context.Background(), exists)
	require.Error(t, err)
	assert.ErrorIs(t, err, shortcode.ErrExhausted)
	assert.Equal(t, 10, calls)
}

func TestCandidate_SkipsBiasedBytes(t *testing.T) {
	// 248..255 would wrap onto the first eight characters; they must be
	// discarded rather than mapped.
	entropy := append(bytes.Repeat([]byte{0xFF, 248}, 3), 1, 1, 1, 1, 1, 1)
	g := shortcode.New(6, 10, shortcode.WithRandom(bytes.NewReader(entropy)))

	code, err := g.Candidate()
	require.NoError(t, err)
	assert.Equal(t, "111111", code)
}

func TestCandidate_ShortEntropy(t *testing.T) {
	g := shortcode.New(6, 10, shortcode.WithRandom(bytes.NewReader([]byte{0xFF, 0xFF, 0xFF})))

	_, err := g.Candidate()
	assert.Error(t, err)
}

func TestGenerate_PropagatesLookupError(t *testing.T) {
	boom := errors.New("store down")
	g := shortcode.New(6, 10)

	_, err := g.Generate(context.Background(), func(context.Context, string) (bool, error) {
		return false, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestGenerate_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := shortcode.New(6, 10).Generate(ctx, never)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		code  string
		valid bool
	}{
		{"g", false},
		{"gh", true},
		{"abc", true},
		{"sa-promo", true},
		{"under_score", true},
		{"MixedCase09", true},
		{strings.Repeat("a", 32), true},
		{strings.Repeat("a", 33), false},
		{"has space", false},
		{"slash/es", false},
		{"dot.ted", false},
		{"émoji", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := shortcode.Validate(tt.code)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, shortcode.ErrInvalid)
			}
		})
	}
}
