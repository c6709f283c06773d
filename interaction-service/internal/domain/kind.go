package domain

import (
	"fmt"
	"strings"
)

// InteractionKind identifies a toggleable relation between an actor and a target.
type InteractionKind string

const (
	KindLike    InteractionKind = "like"
	KindCollect InteractionKind = "collect"
	KindFollow  InteractionKind = "follow"
)

// Kinds returns every supported kind.
func Kinds() []InteractionKind {
	return []InteractionKind{KindLike, KindCollect, KindFollow}
}

// ParseKind parses a kind from its wire form.
func ParseKind(s string) (InteractionKind, error) {
	k := InteractionKind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
	}
	return k, nil
}

// Valid reports whether k is a supported kind.
func (k InteractionKind) Valid() bool {
	switch k {
	case KindLike, KindCollect, KindFollow:
		return true
	}
	return false
}

func (k InteractionKind) String() string { return string(k) }

// Verb is the past tense used in notification text.
func (k InteractionKind) Verb() string {
	switch k {
	case KindLike:
		return "liked"
	case KindCollect:
		return "collected"
	case KindFollow:
		return "followed"
	}
	return string(k)
}

// Object is what the notification recipient is told was acted upon.
func (k InteractionKind) Object() string {
	if k == KindFollow {
		return "you"
	}
	return "your post"
}

// AllowsSelf reports whether an actor may apply the kind to themselves.
func (k InteractionKind) AllowsSelf() bool {
	return k != KindFollow
}

// NotificationText renders the owner notification for an on-transition.
func NotificationText(kind InteractionKind, state State) string {
	if state == StateOff {
		return fmt.Sprintf("someone un%s %s", kind.Verb(), kind.Object())
	}
	return fmt.Sprintf("someone %s %s", kind.Verb(), kind.Object())
}

// State is the membership state of an (actor, target, kind) triple.
type State string

const (
	StateOn  State = "on"
	StateOff State = "off"
)

// ToggleAction selects how a request moves the membership state.
type ToggleAction string

const (
	ActionToggle ToggleAction = "toggle"
	ActionOn     ToggleAction = "on"
	ActionOff    ToggleAction = "off"
)

// ParseAction parses an action; the empty string means toggle.
func ParseAction(s string) (ToggleAction, error) {
	switch a := ToggleAction(strings.ToLower(strings.TrimSpace(s))); a {
	case "":
		return ActionToggle, nil
	case ActionToggle, ActionOn, ActionOff:
		return a, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidAction, s)
}

// ValidateInteraction checks caller-supplied identifiers for a single toggle.
func ValidateInteraction(actorID, targetID string, kind InteractionKind) error {
	if actorID == "" || targetID == "" {
		return fmt.Errorf("%w: actor and target are required", ErrInvalidArgument)
	}
	if !kind.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
	if !kind.AllowsSelf() && actorID == targetID {
		return ErrSelfInteraction
	}
	return nil
}
