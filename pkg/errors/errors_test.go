package errors_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	pkgerrors "github.com/FairHead/eventourismo-discover/pkg/errors"
)

func TestAPIError(t *testing.T) {
	t.Run("rate limited", func(t *testing.T) {
		err := pkgerrors.NewAPIError("ticketmaster", 429, "quota exceeded")
		assert.Equal(t, "API error from ticketmaster (status 429): quota exceeded", err.Error())
		assert.True(t, errors.Is(err, pkgerrors.ErrRateLimited))
		assert.False(t, errors.Is(err, pkgerrors.ErrProviderUnavailable))
		assert.True(t, pkgerrors.IsRateLimited(err))
	})

	t.Run("server error", func(t *testing.T) {
		err := pkgerrors.NewAPIError("osm", 503, "overloaded")
		assert.True(t, errors.Is(err, pkgerrors.ErrProviderUnavailable))
		assert.False(t, errors.Is(err, pkgerrors.ErrRateLimited))
	})

	t.Run("client error is neither", func(t *testing.T) {
		err := pkgerrors.NewAPIError("eventbrite", 401, "bad token")
		assert.False(t, errors.Is(err, pkgerrors.ErrRateLimited))
		assert.False(t, errors.Is(err, pkgerrors.ErrProviderUnavailable))
	})

	t.Run("unwrap", func(t *testing.T) {
		inner := errors.New("connection reset")
		err := &pkgerrors.APIError{Provider: "osm", Message: "request failed", Err: inner}
		assert.True(t, errors.Is(err, inner))
	})
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limited", pkgerrors.NewAPIError("tm", 429, ""), true},
		{"server error", pkgerrors.NewAPIError("tm", 500, ""), true},
		{"bad gateway", pkgerrors.NewAPIError("tm", 502, ""), true},
		{"transport failure", pkgerrors.NewAPIError("tm", 0, "dial tcp: refused"), true},
		{"timeout sentinel", pkgerrors.ErrTimeout, true},
		{"wrapped timeout", fmt.Errorf("fetch cell: %w", pkgerrors.ErrTimeout), true},
		{"unauthorized", pkgerrors.NewAPIError("tm", 401, ""), false},
		{"not found", pkgerrors.NewAPIError("tm", 404, ""), false},
		{"validation", &pkgerrors.ValidationError{Field: "lat", Message: "out of range"}, false},
		{"plain error", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, pkgerrors.Retryable(tt.err))
		})
	}
}

func TestRetryAfter(t *testing.T) {
	t.Run("hint present", func(t *testing.T) {
		err := &pkgerrors.APIError{Provider: "tm", StatusCode: 429, RetryAfter: 2 * time.Second}
		d, ok := pkgerrors.RetryAfter(fmt.Errorf("page fetch: %w", err))
		assert.True(t, ok)
		assert.Equal(t, 2*time.Second, d)
	})

	t.Run("no hint", func(t *testing.T) {
		_, ok := pkgerrors.RetryAfter(pkgerrors.NewAPIError("tm", 429, ""))
		assert.False(t, ok)
	})
}

func TestStoreError(t *testing.T) {
	inner := errors.New("deadlock detected")
	err := pkgerrors.WrapStore("update", "venue", "v-42", inner)
	assert.Equal(t, "store update of venue v-42 failed: deadlock detected", err.Error())
	assert.True(t, errors.Is(err, inner))
	assert.Nil(t, pkgerrors.WrapStore("update", "venue", "v-42", nil))
}

func TestIngestError(t *testing.T) {
	inner := pkgerrors.ErrRateLimited
	err := &pkgerrors.IngestError{Provider: "eventbrite", Cell: "3/7", Err: inner}
	assert.Equal(t, "ingest error for provider eventbrite (cell 3/7): rate limited", err.Error())
	assert.True(t, errors.Is(err, pkgerrors.ErrRateLimited))
}

func TestConfigError(t *testing.T) {
	err := pkgerrors.NewConfigError("store", "DISCOVER_PG_DSN not set", nil)
	assert.Equal(t, "configuration error in store: DISCOVER_PG_DSN not set", err.Error())
}
