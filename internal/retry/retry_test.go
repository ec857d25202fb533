package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTransient = errors.New("transient")
var errFatal = errors.New("fatal")

func classify(err error) bool { return errors.Is(err, errTransient) }

func TestDoSucceedsFirstTry(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), 3, time.Millisecond, classify,
		func(context.Context) (string, error) {
			calls++
			return "ok", nil
		})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 1, calls)
}

func TestDoRetriesTransientUntilSuccess(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), 3, time.Millisecond, classify,
		func(context.Context) (int, error) {
			calls++
			if calls < 2 {
				return 0, errTransient
			}
			return 42, nil
		})
	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 2, calls)
}

func TestDoReturnsLastErrorAfterExhaustion(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), 2, time.Millisecond, classify,
		func(context.Context) (int, error) {
			calls++
			return 0, errTransient
		})
	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 2, calls)
}

func TestDoStopsImmediatelyOnNonTransient(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), 5, time.Millisecond, classify,
		func(context.Context) (int, error) {
			calls++
			return 0, errFatal
		})
	assert.ErrorIs(t, err, errFatal)
	assert.Equal(t, 1, calls)
}

func TestDoBackoffIsLinear(t *testing.T) {
	base := 30 * time.Millisecond
	start := time.Now()
	calls := 0
	_, err := Do(context.Background(), 3, base, classify,
		func(context.Context) (int, error) {
			calls++
			return 0, errTransient
		})
	elapsed := time.Since(start)

	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 3, calls)
	// Waits are base*1 then base*2.
	assert.GreaterOrEqual(t, elapsed, 3*base)
}

func TestDoHonorsContextDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := Do(ctx, 3, time.Second, classify,
		func(context.Context) (int, error) {
			calls++
			return 0, errTransient
		})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
