package audit

import (
	"context"

	"github.com/weiawesome/wes-io-social/pkg/log"
)

// Audit actions for interaction-service.
const (
	ActionToggle         = "interaction.toggle"
	ActionBatchToggle    = "interaction.batch_toggle"
	ActionRegisterTarget = "interaction.register_target"
	ActionLiveAuth       = "interaction.live_auth"
	ActionLiveAuthFailed = "interaction.live_auth_failed"
	ActionLiveDisconnect = "interaction.live_disconnect"
)

// Field constants for audit entries.
const (
	FieldAction   = "action"
	FieldTargetID = "target_id"
	FieldDetail   = "detail"
)

// Log emits a structured audit log entry via the context logger.
func Log(ctx context.Context, action string, userID string, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldUserID, userID).
		Msg(msg)
}

// LogTarget emits an audit entry about one target with extra detail.
func LogTarget(ctx context.Context, action, userID, targetID, detail, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldUserID, userID).
		Str(FieldTargetID, targetID).
		Str(FieldDetail, detail).
		Msg(msg)
}
