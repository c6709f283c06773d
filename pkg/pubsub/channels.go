package pubsub

import (
	"fmt"
	"time"
)

// Channel naming conventions for interaction fan-out.
const (
	// Per-target live updates (counter changes)
	ChannelTargetUpdates = "interaction:target:%s:updates"

	// Per-user personal notifications
	ChannelUserNotifications = "interaction:user:%s:notifications"

	PatternTargetUpdates     = "interaction:target:*:updates"
	PatternUserNotifications = "interaction:user:*:notifications"
)

// Event types.
const (
	EventTargetUpdate = "target_update"
	EventNotification = "notification"
)

// TargetUpdatesChannel returns the channel carrying live updates for a target.
func TargetUpdatesChannel(targetID string) string {
	return fmt.Sprintf(ChannelTargetUpdates, targetID)
}

// UserNotificationsChannel returns the channel carrying notifications for a user.
func UserNotificationsChannel(userID string) string {
	return fmt.Sprintf(ChannelUserNotifications, userID)
}

// TargetUpdatePayload is published after a committed toggle changes a counter.
type TargetUpdatePayload struct {
	EventID   string    `json:"event_id"`
	TargetID  string    `json:"target_id"`
	Kind      string    `json:"kind"`
	ActorID   string    `json:"actor_id"`
	State     string    `json:"state"` // "on" or "off"
	Count     int64     `json:"count"`
	Version   int64     `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

// NotificationPayload is sent to the owner of the toggled target.
type NotificationPayload struct {
	EventID   string    `json:"event_id"`
	UserID    string    `json:"user_id"` // recipient
	ActorID   string    `json:"actor_id"`
	TargetID  string    `json:"target_id"`
	Kind      string    `json:"kind"`
	State     string    `json:"state"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}
