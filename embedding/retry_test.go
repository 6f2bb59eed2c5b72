package embedding

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTemporary = errors.New("temporary")

// failing returns an operation that fails the first n calls.
func failing(n int, attempts *int) func() error {
	return func() error {
		*attempts++
		if *attempts <= n {
			return errTemporary
		}
		return nil
	}
}

func TestRetryWithBackoff(t *testing.T) {
	tests := []struct {
		name         string
		failures     int
		maxAttempts  int
		wantErr      error
		wantAttempts int
	}{
		{"first try", 0, 3, nil, 1},
		{"eventual success", 2, 5, nil, 3},
		{"budget spent", 10, 3, errTemporary, 3},
		{"zero attempts", 0, 0, ErrInvalidMaxAttempts, 0},
		{"negative attempts", 0, -1, ErrInvalidMaxAttempts, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attempts := 0
			err := RetryWithBackoff(context.Background(), failing(tt.failures, &attempts), tt.maxAttempts, time.Millisecond)

			if tt.wantErr == nil {
				require.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			assert.Equal(t, tt.wantAttempts, attempts)
		})
	}
}

func TestRetryWithBackoff_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	operation := func() error {
		attempts++
		if attempts == 2 {
			cancel()
		}
		return errTemporary
	}

	err := RetryWithBackoff(ctx, operation, 10, time.Millisecond)
	assert.ErrorIs(t, err, context.Canceled)
	assert.LessOrEqual(t, attempts, 2)
}

func TestRetryWithBackoff_ContextTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	attempts := 0
	operation := func() error {
		attempts++
		time.Sleep(30 * time.Millisecond)
		return errTemporary
	}

	err := RetryWithBackoff(ctx, operation, 10, 10*time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.LessOrEqual(t, attempts, 3)
}

func TestRetryWithBackoff_DelayDoubles(t *testing.T) {
	attempts := 0
	var delays []time.Duration
	last := time.Now()

	operation := func() error {
		attempts++
		if attempts > 1 {
			delays = append(delays, time.Since(last))
		}
		last = time.Now()
		if attempts < 4 {
			return errTemporary
		}
		return nil
	}

	require.NoError(t, RetryWithBackoff(context.Background(), operation, 5, 10*time.Millisecond))
	require.Len(t, delays, 3)
	assert.Greater(t, delays[1], delays[0])
	assert.Greater(t, delays[2], delays[1])
}

func TestRetryIf_StopsOnPermanentError(t *testing.T) {
	permanent := errors.New("bad input")
	attempts := 0
	operation := func() error {
		attempts++
		if attempts == 1 {
			return errTemporary
		}
		return permanent
	}

	err := RetryIf(context.Background(), operation, func(err error) bool {
		return errors.Is(err, errTemporary)
	}, 5, time.Millisecond)

	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 2, attempts)
}
