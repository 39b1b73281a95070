package clients

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sand/fraud-detector/backend/internal/fraud/entities"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleEvent() entities.FlagEvent {
	return entities.FlagEvent{
		TransactionID: 42,
		UserID:        7,
		Reason:        entities.ReasonAmount,
		Timestamp:     time.Date(2025, 4, 11, 10, 0, 5, 0, time.UTC),
		Amount:        6000,
		Country:       "US",
	}
}

func TestHTTPForwarder_PostsPayload(t *testing.T) {
	var got entities.FlagPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	f := NewHTTPForwarder(discardLogger(), srv.URL, time.Second)
	require.NoError(t, f.Forward(context.Background(), sampleEvent()))

	require.NotNil(t, got.TransactionID)
	assert.Equal(t, int64(42), *got.TransactionID)
	require.NotNil(t, got.Date)
	assert.Equal(t, "2025-04-11 10:00:05", *got.Date)
	assert.Equal(t, "US", got.Country)
}

func TestHTTPForwarder_Non2xxIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := NewHTTPForwarder(discardLogger(), srv.URL, time.Second)
	err := f.Forward(context.Background(), sampleEvent())

	require.Error(t, err)
	assert.True(t, errors.Is(err, entities.ErrTransport))
	assert.Contains(t, err.Error(), "500")
}

func TestHTTPForwarder_UnreachableIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	f := NewHTTPForwarder(discardLogger(), url, time.Second)
	err := f.Forward(context.Background(), sampleEvent())

	assert.ErrorIs(t, err, entities.ErrTransport)
}

func TestLocalForwarder(t *testing.T) {
	var seen []entities.FlagEvent
	f := LocalForwarder(func(_ context.Context, ev entities.FlagEvent) (entities.Outcome, error) {
		seen = append(seen, ev)
		return entities.OutcomeDuplicate, nil
	})

	require.NoError(t, f.Forward(context.Background(), sampleEvent()))
	assert.Len(t, seen, 1)

	failing := LocalForwarder(func(context.Context, entities.FlagEvent) (entities.Outcome, error) {
		return entities.OutcomeError, entities.ErrPersistence
	})
	assert.ErrorIs(t, failing.Forward(context.Background(), sampleEvent()), entities.ErrTransport)
}
