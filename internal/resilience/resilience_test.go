package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetry_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	val, err := Retry(context.Background(), Policy{Attempts: 3, BaseDelay: time.Millisecond}, func(context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, &StatusError{Code: 503, URL: "http://x"}
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, val)
	assert.Equal(t, 3, calls)
}

func TestRetry_StopsOnPermanentError(t *testing.T) {
	calls := 0
	_, err := Retry(context.Background(), Policy{Attempts: 5, BaseDelay: time.Millisecond}, func(context.Context) (int, error) {
		calls++
		return 0, errors.New("bad request")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	calls := 0
	_, err := Retry(context.Background(), Policy{Attempts: 2, BaseDelay: time.Millisecond}, func(context.Context) (int, error) {
		calls++
		return 0, &StatusError{Code: 429, URL: "http://x"}
	})
	require.Error(t, err)
	assert.Equal(t, 2, calls)
}

func TestRetry_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	_, err := Retry(ctx, Policy{Attempts: 3, BaseDelay: time.Millisecond}, func(context.Context) (int, error) {
		calls++
		return 0, &StatusError{Code: 503, URL: "http://x"}
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"status 503", &StatusError{Code: 503, URL: "u"}, true},
		{"status 429", &StatusError{Code: 429, URL: "u"}, true},
		{"status 404", &StatusError{Code: 404, URL: "u"}, false},
		{"timeout text", errors.New("dial tcp: i/o timeout"), true},
		{"plain", errors.New("parse failure"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Transient(tt.err))
		})
	}
}
