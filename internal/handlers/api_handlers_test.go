package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sand/fraud-detector/backend/internal/fraud/entities"
	"github.com/sand/fraud-detector/backend/internal/usecases"
	"github.com/sand/fraud-detector/backend/internal/usecases/repository"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubFraudService struct {
	mu         sync.Mutex
	detected   int
	enqueueErr error
	acceptErr  error
	outcome    entities.Outcome
	enqueued   []entities.FlagEvent
	accepted   []entities.FlagEvent
	records    []entities.SuspiciousRecord
}

func (s *stubFraudService) RunDetectionSweep(context.Context) (int, error) {
	return s.detected, nil
}

func (s *stubFraudService) Enqueue(_ context.Context, ev entities.FlagEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.enqueueErr != nil {
		return s.enqueueErr
	}
	s.enqueued = append(s.enqueued, ev)
	return nil
}

func (s *stubFraudService) AcceptFlag(_ context.Context, ev entities.FlagEvent) (entities.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accepted = append(s.accepted, ev)
	if s.acceptErr != nil {
		return entities.OutcomeError, s.acceptErr
	}
	return s.outcome, nil
}

func (s *stubFraudService) SuspiciousByUser(context.Context, int64) ([]entities.SuspiciousRecord, error) {
	return s.records, nil
}

func newRouter(fraudSvc FraudService) *mux.Router {
	store := repository.NewMemoryStore()
	txSvc := usecases.NewTransactionService(discardLogger(), store, store, nil)

	router := mux.NewRouter()
	NewHTTPHandler(discardLogger(), fraudSvc, txSvc).RegisterRoutes(router)
	return router
}

func do(t *testing.T, h http.Handler, method, target string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func multipartCSV(t *testing.T, data string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "transactions.csv")
	require.NoError(t, err)
	_, err = fw.Write([]byte(data))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

const payloadJSON = `{"transaction_id": 2, "user_id": 1, "reason": "Transaction amount exceeds $5000", "date": "2025-04-11 10:00:30", "amount": 6000, "country": "US"}`

func TestUpload(t *testing.T) {
	router := newRouter(&stubFraudService{})

	t.Run("no file", func(t *testing.T) {
		rec := do(t, router, http.MethodPost, "/upload", nil, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "No file was uploaded")
	})

	t.Run("all rows valid", func(t *testing.T) {
		body, ct := multipartCSV(t, "transaction_id,user_id,amount,currency,timestamp\n1,1,10,USD,2025-04-11 10:00:00\n2,1,20,USD,2025-04-11 10:00:10\n")
		rec := do(t, router, http.MethodPost, "/upload", body, ct)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "2 transactions imported successfully!", rec.Body.String())
	})

	t.Run("partial failure", func(t *testing.T) {
		body, ct := multipartCSV(t, "transaction_id,user_id,amount,currency,timestamp\n3,1,x,USD,2025-04-11 10:00:00\n4,1,20,USD,2025-04-11 10:00:10\n")
		rec := do(t, router, http.MethodPost, "/upload", body, ct)
		assert.Equal(t, http.StatusMultiStatus, rec.Code)
		assert.Equal(t, "1 transactions imported. 1 rows failed.", rec.Body.String())
	})

	t.Run("unusable file", func(t *testing.T) {
		body, ct := multipartCSV(t, "")
		rec := do(t, router, http.MethodPost, "/upload", body, ct)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, rec.Body.String(), "Import failed:")
	})

	t.Run("lookup imported", func(t *testing.T) {
		rec := do(t, router, http.MethodGet, "/transactions/user?user_id=1", nil, "")
		require.Equal(t, http.StatusOK, rec.Code)

		var txs []map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &txs))
		assert.Len(t, txs, 3)
	})
}

func TestDetectFraud(t *testing.T) {
	router := newRouter(&stubFraudService{detected: 3})

	rec := do(t, router, http.MethodPost, "/detect-fraud", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "3 suspicious transactions detected", rec.Body.String())

	rec = do(t, router, http.MethodGet, "/detect-fraud", nil, "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestEnqueueTask(t *testing.T) {
	svc := &stubFraudService{}
	router := newRouter(svc)

	rec := do(t, router, http.MethodPost, "/tasks", strings.NewReader(payloadJSON), "application/json")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, svc.enqueued, 1)
	assert.Equal(t, time.Date(2025, 4, 11, 10, 0, 30, 0, time.UTC), svc.enqueued[0].Timestamp)

	rec = do(t, router, http.MethodPost, "/tasks", strings.NewReader(`{"user_id": 1}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	svc.enqueueErr = entities.ErrQueueFull
	rec = do(t, router, http.MethodPost, "/tasks", strings.NewReader(payloadJSON), "application/json")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestProcessFraud(t *testing.T) {
	svc := &stubFraudService{outcome: entities.OutcomeAccepted}
	router := newRouter(svc)

	rec := do(t, router, http.MethodPost, "/process-fraud", strings.NewReader(payloadJSON), "application/json")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Suspicious transaction saved", rec.Body.String())

	svc.outcome = entities.OutcomeDuplicate
	rec = do(t, router, http.MethodPost, "/process-fraud", strings.NewReader(payloadJSON), "application/json")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Suspicious transaction already recorded", rec.Body.String())

	rec = do(t, router, http.MethodPost, "/process-fraud", strings.NewReader(`{}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "transaction_id")

	rec = do(t, router, http.MethodPost, "/process-fraud", strings.NewReader(`not json`), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	svc.acceptErr = entities.ErrPersistence
	rec = do(t, router, http.MethodPost, "/process-fraud", strings.NewReader(payloadJSON), "application/json")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	assert.Len(t, svc.accepted, 3)
}

func TestGetUserSuspicious(t *testing.T) {
	router := newRouter(&stubFraudService{})

	rec := do(t, router, http.MethodGet, "/suspicious/user?user_id=1", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = do(t, router, http.MethodGet, "/suspicious/user", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodGet, "/suspicious/user?user_id=abc", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	router := newRouter(&stubFraudService{})

	rec := do(t, router, http.MethodGet, "/metrics", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "fraud_dispatch_queue_depth")
}
