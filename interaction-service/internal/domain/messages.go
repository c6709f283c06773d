package domain

import "time"

// WebSocket message types from client.
const (
	MsgTypeAuth    = "auth"
	MsgTypeWatch   = "watch"
	MsgTypeUnwatch = "unwatch"
	MsgTypePing    = "ping"
)

// WebSocket message types to client.
const (
	MsgTypeAuthResult   = "auth_result"
	MsgTypeWatching     = "watching"
	MsgTypeUnwatched    = "unwatched"
	MsgTypeTargetUpdate = "target_update"
	MsgTypeNotification = "notification"
	MsgTypeError        = "error"
	MsgTypePong         = "pong"
)

// Error codes
const (
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeBadRequest   = "BAD_REQUEST"
	ErrCodeTooMany      = "TOO_MANY_WATCHES"
)

// BaseMessage is the base structure for all WebSocket messages.
type BaseMessage struct {
	Type string `json:"type"`
}

// Client -> Server messages

type AuthMessage struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

type WatchMessage struct {
	Type      string   `json:"type"`
	TargetIDs []string `json:"target_ids"`
}

// Server -> Client messages

type AuthResultMessage struct {
	Type    string `json:"type"`
	Success bool   `json:"success"`
	UserID  string `json:"user_id,omitempty"`
	Message string `json:"message,omitempty"`
}

type WatchingMessage struct {
	Type      string   `json:"type"`
	TargetIDs []string `json:"target_ids"`
}

type TargetUpdateMessage struct {
	Type      string          `json:"type"`
	EventID   string          `json:"event_id"`
	TargetID  string          `json:"target_id"`
	Kind      InteractionKind `json:"kind"`
	State     State           `json:"state"`
	Count     int64           `json:"count"`
	Version   int64           `json:"version"`
	Timestamp time.Time       `json:"timestamp"`
}

type NotificationMessage struct {
	Type      string          `json:"type"`
	EventID   string          `json:"event_id"`
	ActorID   string          `json:"actor_id"`
	TargetID  string          `json:"target_id"`
	Kind      InteractionKind `json:"kind"`
	Text      string          `json:"text"`
	Timestamp time.Time       `json:"timestamp"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewErrorMessage(code, message string) *ErrorMessage {
	return &ErrorMessage{
		Type:    MsgTypeError,
		Code:    code,
		Message: message,
	}
}

// TargetUpdateFromEvent renders a broadcast event for live viewers.
func TargetUpdateFromEvent(ev BroadcastEvent) *TargetUpdateMessage {
	return &TargetUpdateMessage{
		Type:      MsgTypeTargetUpdate,
		EventID:   ev.ID,
		TargetID:  ev.TargetID,
		Kind:      ev.Kind,
		State:     ev.State,
		Count:     ev.Count,
		Version:   ev.Version,
		Timestamp: ev.Timestamp,
	}
}
