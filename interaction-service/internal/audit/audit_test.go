package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/wes-io-social/pkg/log"
)

func TestLogTarget(t *testing.T) {
	var buf bytes.Buffer
	ctx := log.WithLogger(context.Background(), log.NewWithWriter(log.Config{Level: "info"}, &buf))

	LogTarget(ctx, ActionToggle, "alice", "post-1", "like:on", "interaction toggled")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, log.LogTypeAudit, entry[log.FieldLogType])
	assert.Equal(t, ActionToggle, entry[FieldAction])
	assert.Equal(t, "alice", entry[log.FieldUserID])
	assert.Equal(t, "post-1", entry[FieldTargetID])
	assert.Equal(t, "like:on", entry[FieldDetail])
}
