package domain

import "time"

// InteractionModel is the GORM model for the interactions table.
// One row per (actor, target, kind) in the "on" state.
type InteractionModel struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	ActorID   string    `gorm:"column:actor_id;type:varchar(64);not null;uniqueIndex:uidx_interaction_member,priority:1"`
	TargetID  string    `gorm:"column:target_id;type:varchar(64);not null;uniqueIndex:uidx_interaction_member,priority:2;index:idx_interaction_target,priority:1"`
	Kind      string    `gorm:"column:kind;type:varchar(16);not null;uniqueIndex:uidx_interaction_member,priority:3;index:idx_interaction_target,priority:2"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (InteractionModel) TableName() string { return "interactions" }

// CounterModel is the GORM model for the interaction_counters table.
type CounterModel struct {
	TargetID  string    `gorm:"column:target_id;type:varchar(64);primaryKey"`
	Kind      string    `gorm:"column:kind;type:varchar(16);primaryKey"`
	Value     int64     `gorm:"column:value;not null;default:0"`
	Version   int64     `gorm:"column:version;not null;default:0"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (CounterModel) TableName() string { return "interaction_counters" }

// TargetModel is the GORM model for the interaction_targets table, a
// mirror of interactable entities and their owners.
type TargetModel struct {
	ID        string    `gorm:"column:id;type:varchar(64);primaryKey"`
	OwnerID   string    `gorm:"column:owner_id;type:varchar(64);index"`
	Type      string    `gorm:"column:type;type:varchar(32)"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (TargetModel) TableName() string { return "interaction_targets" }

// MembershipRecord is the domain representation of an "on" interaction.
type MembershipRecord struct {
	ActorID   string
	TargetID  string
	Kind      InteractionKind
	CreatedAt time.Time
}

// CounterAggregate is the denormalized count for a (target, kind).
type CounterAggregate struct {
	TargetID string          `json:"target_id"`
	Kind     InteractionKind `json:"kind"`
	Value    int64           `json:"value"`
	Version  int64           `json:"version"`
}

// Target is an interactable entity.
type Target struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
}

// ToggleOutcome is returned for every toggle request.
type ToggleOutcome struct {
	Success  bool            `json:"success"`
	TargetID string          `json:"target_id"`
	Kind     InteractionKind `json:"kind"`
	State    State           `json:"state"`
	Changed  bool            `json:"changed"`
	Count    int64           `json:"count"`
	Version  int64           `json:"version"`
	Error    string          `json:"error,omitempty"`
}

// BroadcastEvent describes one committed state change.
type BroadcastEvent struct {
	ID            string          `json:"id"`
	TargetID      string          `json:"target_id"`
	Kind          InteractionKind `json:"kind"`
	ActorID       string          `json:"actor_id"`
	State         State           `json:"state"`
	Count         int64           `json:"count"`
	Version       int64           `json:"version"`
	TargetOwnerID string          `json:"target_owner_id,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
}

// BatchItem is one entry of a batch toggle.
type BatchItem struct {
	ActorID  string          `json:"actor_id"`
	TargetID string          `json:"target_id"`
	Kind     InteractionKind `json:"kind"`
	Action   ToggleAction    `json:"action"`
}
