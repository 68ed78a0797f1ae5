package embedding

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewService_RequiresModel(t *testing.T) {
	_, err := NewService(&Config{})
	assert.Error(t, err)
}

func TestNewService_Defaults(t *testing.T) {
	svc, err := NewService(&Config{Model: "text-embedding-3-small"})
	require.NoError(t, err)
	assert.Equal(t, 768, svc.Dimensions())

	s, ok := svc.(*service)
	require.True(t, ok)
	assert.Equal(t, 8000, s.maxChars)
}

func TestEmbedBatch_EmptyInputRejected(t *testing.T) {
	svc, err := NewService(&Config{Model: "text-embedding-3-small"})
	require.NoError(t, err)

	_, err = svc.EmbedBatch(context.Background(), nil)
	assert.Error(t, err)

	// Whitespace-only text is rejected before any provider call.
	_, err = svc.EmbedBatch(context.Background(), []string{"   \n\t "})
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate([]float32{1, 2, 3}, 3))
	assert.Error(t, Validate([]float32{1, 2}, 3), "wrong dimension")
	assert.Error(t, Validate([]float32{1, float32(math.NaN()), 3}, 3), "NaN component")
	assert.Error(t, Validate([]float32{1, float32(math.Inf(1)), 3}, 3), "Inf component")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 100))
	assert.Equal(t, "abc", truncate("abcdef", 3))

	// Rune-aware: multibyte characters are not split.
	got := truncate(strings.Repeat("日", 10), 4)
	assert.Equal(t, strings.Repeat("日", 4), got)
}
