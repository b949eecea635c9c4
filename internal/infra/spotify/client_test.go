package spotify

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RequiresCredentials(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "missing client id", cfg: Config{ClientSecret: "s", RefreshToken: "t"}},
		{name: "missing client secret", cfg: Config{ClientID: "i", RefreshToken: "t"}},
		{name: "missing refresh token", cfg: Config{ClientID: "i", ClientSecret: "s"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(context.Background(), tt.cfg)
			assert.Error(t, err)
		})
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "rate limit", err: errors.New("API rate limit exceeded"), want: true},
		{name: "429", err: errors.New("HTTP 429 Too Many Requests"), want: true},
		{name: "500", err: errors.New("HTTP 500 Internal Server Error"), want: true},
		{name: "503", err: errors.New("HTTP 503 Service Unavailable"), want: true},
		{name: "not found", err: errors.New("HTTP 404 Not Found"), want: false},
		{name: "unauthorized", err: errors.New("HTTP 401 Unauthorized"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isRetryable(tt.err))
		})
	}
}

func TestRetry(t *testing.T) {
	t.Run("succeeds after transient failures", func(t *testing.T) {
		c := &Client{maxRetries: 3, retryDelay: 0}
		calls := 0
		err := c.retry(func() error {
			calls++
			if calls < 3 {
				return errors.New("HTTP 503 Service Unavailable")
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		c := &Client{maxRetries: 3, retryDelay: 0}
		calls := 0
		err := c.retry(func() error {
			calls++
			return errors.New("HTTP 503 Service Unavailable")
		})
		assert.Error(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("non-retryable errors fail immediately", func(t *testing.T) {
		c := &Client{maxRetries: 3, retryDelay: 0}
		calls := 0
		err := c.retry(func() error {
			calls++
			return errors.New("HTTP 401 Unauthorized")
		})
		assert.Error(t, err)
		assert.Equal(t, 1, calls)
	})
}
