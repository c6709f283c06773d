package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/weiawesome/wes-io-social/interaction-service/internal/audit"
	"github.com/weiawesome/wes-io-social/interaction-service/internal/domain"
	"github.com/weiawesome/wes-io-social/interaction-service/internal/hub"
	pkglog "github.com/weiawesome/wes-io-social/pkg/log"
	"github.com/weiawesome/wes-io-social/pkg/middleware"
)

// WSHandler serves the live endpoint: clients watch targets for counter
// updates and, once authenticated, receive their own notifications.
type WSHandler struct {
	hub       *hub.Hub
	validator middleware.TokenValidator
	upgrader  websocket.Upgrader
}

// NewWSHandler creates a new WebSocket handler.
func NewWSHandler(h *hub.Hub, validator middleware.TokenValidator) *WSHandler {
	return &WSHandler{
		hub:       h,
		validator: validator,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// RegisterRoutes registers the live routes onto the router.
func (h *WSHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/live", h.HandleWebSocket).Methods(http.MethodGet)
	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods(http.MethodGet)
}

// HandleWebSocket handles WebSocket upgrade and connection.
func (h *WSHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	l := pkglog.Ctx(r.Context())

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		l.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := hub.NewClient(uuid.New().String(), h.hub, conn)
	if err := h.hub.Register(client); err != nil {
		l.Warn().Err(err).Msg("live hub not accepting clients")
		conn.Close()
		return
	}

	go client.WritePump()
	go func() {
		client.ReadPump(h.handleMessage)
		if userID := client.UserID(); userID != "" {
			audit.Log(context.Background(), audit.ActionLiveDisconnect, userID, "live client disconnected")
		}
	}()
}

func (h *WSHandler) handleMessage(client *hub.Client, message []byte) {
	ctx := pkglog.WithFields(context.Background(), pkglog.FieldClientID, client.ID)
	l := pkglog.Ctx(ctx)

	var base domain.BaseMessage
	if err := json.Unmarshal(message, &base); err != nil {
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "invalid message format"))
		return
	}

	switch base.Type {
	case domain.MsgTypeAuth:
		var msg domain.AuthMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "invalid auth message"))
			return
		}
		h.handleAuth(ctx, client, msg.Token)

	case domain.MsgTypeWatch:
		var msg domain.WatchMessage
		if err := json.Unmarshal(message, &msg); err != nil || len(msg.TargetIDs) == 0 {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "invalid watch message"))
			return
		}
		if err := h.hub.Watch(client, msg.TargetIDs...); err != nil {
			if errors.Is(err, hub.ErrTooManyWatches) {
				client.SendMessage(domain.NewErrorMessage(domain.ErrCodeTooMany, err.Error()))
				return
			}
			l.Warn().Err(err).Msg("watch failed")
			return
		}
		client.SendMessage(&domain.WatchingMessage{Type: domain.MsgTypeWatching, TargetIDs: msg.TargetIDs})

	case domain.MsgTypeUnwatch:
		var msg domain.WatchMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "invalid unwatch message"))
			return
		}
		h.hub.Unwatch(client, msg.TargetIDs...)
		client.SendMessage(&domain.WatchingMessage{Type: domain.MsgTypeUnwatched, TargetIDs: msg.TargetIDs})

	case domain.MsgTypePing:
		client.SendMessage(map[string]string{"type": domain.MsgTypePong})

	default:
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "unknown message type"))
	}
}

func (h *WSHandler) handleAuth(ctx context.Context, client *hub.Client, token string) {
	claims, err := h.validator.ValidateToken(token)
	if err != nil {
		audit.Log(ctx, audit.ActionLiveAuthFailed, "", err.Error())
		client.SendMessage(&domain.AuthResultMessage{
			Type:    domain.MsgTypeAuthResult,
			Success: false,
			Message: err.Error(),
		})
		return
	}

	h.hub.BindUser(client, claims.UserID)
	audit.Log(ctx, audit.ActionLiveAuth, claims.UserID, "live client authenticated")
	client.SendMessage(&domain.AuthResultMessage{
		Type:    domain.MsgTypeAuthResult,
		Success: true,
		UserID:  claims.UserID,
	})
}
