package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEvent(t *testing.T) {
	tests := []struct {
		name    string
		frame   string
		want    interface{}
		wantErr error
	}{
		{
			name:  "join",
			frame: `{"type":"join","roomId":"community:stress:work-burnout"}`,
			want:  &RoomEvent{Type: EventJoin, RoomID: "community:stress:work-burnout"},
		},
		{
			name:  "leave without room decodes with empty id",
			frame: `{"type":"leave"}`,
			want:  &RoomEvent{Type: EventLeave},
		},
		{
			name:  "message with sender hint",
			frame: `{"type":"message","roomId":"r","text":"hi","user":{"name":"Ada"}}`,
			want:  &MessageEvent{Type: EventMessage, RoomID: "r", Text: "hi", User: &SenderHint{Name: "Ada"}},
		},
		{
			name:  "ping",
			frame: `{"type":"ping"}`,
			want:  &Envelope{Type: EventPing},
		},
		{name: "not json", frame: `hello`, wantErr: ErrMalformedEvent},
		{name: "numeric room", frame: `{"type":"join","roomId":42}`, wantErr: ErrMalformedEvent},
		{name: "object text", frame: `{"type":"message","roomId":"r","text":{}}`, wantErr: ErrMalformedEvent},
		{name: "unknown", frame: `{"type":"typing"}`, wantErr: ErrUnknownEvent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeEvent([]byte(tt.frame))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBroadcastEventShape(t *testing.T) {
	msg := &ChatMessage{
		ID:     "01HZX",
		RoomID: "community:stress:work-burnout",
		Text:   "Hope you're doing ok!",
		User:   MessageUser{UID: "u1", Name: "Ada"},
		Ts:     1700000000000,
	}

	data, err := json.Marshal(NewBroadcastEvent(msg))
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "message", got["type"])
	assert.Equal(t, "community:stress:work-burnout", got["roomId"])
	assert.Equal(t, "Hope you're doing ok!", got["text"])
	assert.Equal(t, float64(1700000000000), got["ts"])
	assert.NotContains(t, got, "createdAt")
	assert.Equal(t, map[string]interface{}{"uid": "u1", "name": "Ada"}, got["user"])
}

func TestSessionRooms(t *testing.T) {
	s := NewSession("c1", Identity{UID: "u1"})
	assert.Equal(t, "u1", s.PrivateRoom())

	assert.True(t, s.AddRoom("u1"))
	assert.True(t, s.AddRoom("a"))
	assert.False(t, s.AddRoom("a"))
	assert.Equal(t, []string{"a", "u1"}, s.Rooms())

	assert.True(t, s.RemoveRoom("a"))
	assert.False(t, s.RemoveRoom("a"))

	assert.ElementsMatch(t, []string{"u1"}, s.Close())
	assert.True(t, s.IsClosed())
	assert.False(t, s.AddRoom("b"))
	assert.Empty(t, s.Rooms())
}
