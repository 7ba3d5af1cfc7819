package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecentStatementLatestPage(t *testing.T) {
	query, args := recentStatement("general", nil, 50)

	assert.Contains(t, query, "ORDER BY created_at DESC, message_id DESC")
	assert.NotContains(t, query, "<")
	assert.Equal(t, []interface{}{"general", 50}, args)
}

func TestRecentStatementCursorBoundsOnCreatedAtThenID(t *testing.T) {
	at := time.Date(2024, 1, 1, 0, 0, 3, 0, time.UTC)
	query, args := recentStatement("general", &cursorBound{createdAt: at, messageID: "m03"}, 2)

	assert.Contains(t, query, "(created_at, message_id) < (?, ?)")
	assert.Contains(t, query, "ORDER BY created_at DESC, message_id DESC")
	assert.Equal(t, []interface{}{"general", at, "m03", 2}, args)
}
