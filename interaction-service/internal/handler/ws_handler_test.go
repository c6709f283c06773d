package handler

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/wes-io-social/interaction-service/internal/config"
	"github.com/weiawesome/wes-io-social/interaction-service/internal/domain"
	"github.com/weiawesome/wes-io-social/interaction-service/internal/hub"
)

func newLiveServer(t *testing.T) (*hub.Hub, *websocket.Conn) {
	t.Helper()
	h := hub.NewHub(config.WebSocketConfig{MaxWatches: 2}, 4, nil)
	go h.Run()
	t.Cleanup(h.Stop)

	r := mux.NewRouter()
	NewWSHandler(h, stubValidator{}).RegisterRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/live"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, time.Millisecond)
	return h, conn
}

func readType(t *testing.T, conn *websocket.Conn, v map[string]interface{}) string {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	require.NoError(t, conn.ReadJSON(&v))
	s, _ := v["type"].(string)
	return s
}

func TestLivePing(t *testing.T) {
	_, conn := newLiveServer(t)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": domain.MsgTypePing}))
	assert.Equal(t, domain.MsgTypePong, readType(t, conn, map[string]interface{}{}))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("nope")))
	assert.Equal(t, domain.MsgTypeError, readType(t, conn, map[string]interface{}{}))
}

func TestLiveWatchReceivesUpdates(t *testing.T) {
	h, conn := newLiveServer(t)

	require.NoError(t, conn.WriteJSON(domain.WatchMessage{Type: domain.MsgTypeWatch, TargetIDs: []string{"post-1"}}))
	assert.Equal(t, domain.MsgTypeWatching, readType(t, conn, map[string]interface{}{}))
	require.Eventually(t, func() bool { return h.WatcherCount("post-1") == 1 }, time.Second, time.Millisecond)

	require.NoError(t, h.DeliverTargetUpdate(domain.BroadcastEvent{
		ID: "evt-1", TargetID: "post-1", Kind: domain.KindLike, State: domain.StateOn, Count: 7, Version: 7,
	}))

	msg := map[string]interface{}{}
	assert.Equal(t, domain.MsgTypeTargetUpdate, readType(t, conn, msg))
	assert.Equal(t, float64(7), msg["count"])
}

func TestLiveWatchLimit(t *testing.T) {
	_, conn := newLiveServer(t)

	require.NoError(t, conn.WriteJSON(domain.WatchMessage{Type: domain.MsgTypeWatch, TargetIDs: []string{"a", "b", "c"}}))

	msg := map[string]interface{}{}
	assert.Equal(t, domain.MsgTypeError, readType(t, conn, msg))
	assert.Equal(t, domain.ErrCodeTooMany, msg["code"])
}

func TestLiveAuthRoutesNotifications(t *testing.T) {
	h, conn := newLiveServer(t)

	require.NoError(t, conn.WriteJSON(domain.AuthMessage{Type: domain.MsgTypeAuth, Token: "bad"}))
	msg := map[string]interface{}{}
	assert.Equal(t, domain.MsgTypeAuthResult, readType(t, conn, msg))
	assert.Equal(t, false, msg["success"])

	require.NoError(t, conn.WriteJSON(domain.AuthMessage{Type: domain.MsgTypeAuth, Token: "bob"}))
	msg = map[string]interface{}{}
	assert.Equal(t, domain.MsgTypeAuthResult, readType(t, conn, msg))
	assert.Equal(t, true, msg["success"])
	assert.Equal(t, "bob", msg["user_id"])

	require.NoError(t, h.DeliverNotification("bob", &domain.NotificationMessage{
		Type: domain.MsgTypeNotification, ActorID: "alice", TargetID: "post-1", Kind: domain.KindLike, Text: "someone liked your post",
	}))
	msg = map[string]interface{}{}
	assert.Equal(t, domain.MsgTypeNotification, readType(t, conn, msg))
	assert.Equal(t, "alice", msg["actor_id"])
}
