package tts

import (
	"context"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyRenderer struct {
	calls int
	err   error
}

func (f *flakyRenderer) Render(ctx context.Context, text, voice string) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []byte(text), nil
}

func TestBreakerRendererPassesThrough(t *testing.T) {
	inner := &flakyRenderer{}
	r := NewBreakerRenderer(inner, time.Minute)

	out, err := r.Render(context.Background(), "hello", "onyx")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(out))
	assert.Equal(t, 1, inner.calls)
}

func TestBreakerRendererOpensAfterRepeatedFailures(t *testing.T) {
	inner := &flakyRenderer{err: assert.AnError}
	r := NewBreakerRenderer(inner, time.Minute)

	for i := 0; i < 3; i++ {
		_, err := r.Render(context.Background(), "x", "onyx")
		assert.ErrorIs(t, err, assert.AnError)
	}

	_, err := r.Render(context.Background(), "x", "onyx")
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 3, inner.calls)
}

func TestBreakerRendererIgnoresCancellation(t *testing.T) {
	inner := &flakyRenderer{err: context.Canceled}
	r := NewBreakerRenderer(inner, time.Minute)

	for i := 0; i < 5; i++ {
		_, err := r.Render(context.Background(), "x", "onyx")
		assert.ErrorIs(t, err, context.Canceled)
	}
	assert.Equal(t, 5, inner.calls)
}
