package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiawesome/wes-io-live/community-chat/pkg/log"
)

func TestLogWithTarget(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(log.Config{Level: "info", Output: &buf})
	ctx := log.WithLogger(context.Background(), logger)

	LogWithTarget(ctx, ActionJoinRoom, "alice", "general", "joined room")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, log.LogTypeAudit, entry[log.FieldLogType])
	assert.Equal(t, ActionJoinRoom, entry[FieldAction])
	assert.Equal(t, "alice", entry[log.FieldUserID])
	assert.Equal(t, "general", entry[FieldTargetID])
	assert.Equal(t, "joined room", entry["message"])
}
