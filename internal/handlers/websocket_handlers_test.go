package handlers

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sand/fraud-detector/backend/internal/fraud/entities"
)

func TestWebSocketFeed(t *testing.T) {
	manager := NewWebSocketManager(discardLogger())
	router := mux.NewRouter()
	NewWebSocketHandler(discardLogger(), manager).RegisterRoutes(router)

	srv := httptest.NewServer(router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/flags?user_id=2"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return manager.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	// Another user's record is filtered out.
	manager.NotifyAccepted(entities.SuspiciousRecord{ID: 1, TransactionID: 10, UserID: 1, Reason: entities.ReasonAmount})
	manager.NotifyAccepted(entities.SuspiciousRecord{ID: 2, TransactionID: 11, UserID: 2, Reason: entities.ReasonGeo})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var got entities.SuspiciousRecord
	require.NoError(t, json.Unmarshal(msg, &got))
	assert.Equal(t, int64(11), got.TransactionID)
	assert.Equal(t, entities.ReasonGeo, got.Reason)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return manager.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
}

func TestWebSocketFeed_InvalidUser(t *testing.T) {
	router := mux.NewRouter()
	NewWebSocketHandler(discardLogger(), NewWebSocketManager(discardLogger())).RegisterRoutes(router)

	rec := do(t, router, "GET", "/ws/flags?user_id=x", nil, "")
	assert.Equal(t, 400, rec.Code)
}
