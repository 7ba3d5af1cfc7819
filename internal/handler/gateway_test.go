package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiawesome/wes-io-live/community-chat/internal/config"
	"github.com/weiawesome/wes-io-live/community-chat/internal/domain"
	"github.com/weiawesome/wes-io-live/community-chat/internal/hub"
	"github.com/weiawesome/wes-io-live/community-chat/internal/identity"
	"github.com/weiawesome/wes-io-live/community-chat/internal/mailer"
	"github.com/weiawesome/wes-io-live/community-chat/internal/notifier"
	"github.com/weiawesome/wes-io-live/community-chat/internal/repository"
	"github.com/weiawesome/wes-io-live/community-chat/internal/service"
	"github.com/weiawesome/wes-io-live/community-chat/internal/tasks"
	"github.com/weiawesome/wes-io-live/community-chat/pkg/database"
	"github.com/weiawesome/wes-io-live/community-chat/pkg/jwt"
)

const readTimeout = 2 * time.Second

type outbox struct {
	mu   sync.Mutex
	sent []*mailer.Email
}

func (o *outbox) Send(_ context.Context, email *mailer.Email) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, email)
	return nil
}

func (o *outbox) recipients() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, 0, len(o.sent))
	for _, e := range o.sent {
		out = append(out, e.To)
	}
	return out
}

type gateway struct {
	server    *httptest.Server
	tokens    *jwt.Manager
	directory *repository.GormUserDirectory
	outbox    *outbox
	runner    *tasks.Runner
}

func newGateway(t *testing.T) *gateway {
	t.Helper()

	db, err := database.New(&database.Config{
		Driver:       "sqlite",
		FilePath:     filepath.Join(t.TempDir(), "gateway.db"),
		MaxOpenConns: 1,
		LogLevel:     "silent",
	})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db, &repository.MessageModel{}, &repository.UserModel{}))
	t.Cleanup(func() { _ = database.Close(db) })

	repo := repository.NewGormMessageRepository(db)
	directory := repository.NewGormUserDirectory(db)
	h := hub.NewHub()
	runner := tasks.NewRunner()
	box := &outbox{}

	n := notifier.New(directory, box, h, notifier.Config{
		AppURL:       "http://app.test/#",
		Brand:        "Bloomence",
		ExcerptRunes: 500,
		MaxParallel:  4,
	})
	svc := service.NewChatService(h, repo, n, directory, runner, service.ChatServiceConfig{})
	history := service.NewHistoryService(repo, nil, 0)

	tokens := jwt.NewHMACManager([]byte("test-secret"), "")
	verifier := identity.NewJWTVerifier(tokens)

	wsCfg := config.WebSocketConfig{
		PingInterval:   time.Minute,
		PongWait:       time.Minute,
		WriteWait:      time.Second,
		MaxMessageSize: config.DefaultMaxMessageSize,
		SendBuffer:     64,
	}
	ws := NewWSHandler(h, svc, verifier, wsCfg, []string{"*"})
	httpHandler := NewHTTPHandler(history, repo, config.HistoryConfig{})
	router := NewRouter(zerolog.Nop(), ws, httpHandler, identity.VerifyFunc(verifier))

	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		h.CloseAll()
		srv.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = runner.Wait(ctx)
	})

	return &gateway{
		server:    srv,
		tokens:    tokens,
		directory: directory,
		outbox:    box,
		runner:    runner,
	}
}

func (g *gateway) token(t *testing.T, uid, name, email string) string {
	t.Helper()
	token, err := g.tokens.Issue(uid, name, email, time.Hour)
	require.NoError(t, err)
	return token
}

func (g *gateway) wsURL(token string) string {
	u := "ws" + strings.TrimPrefix(g.server.URL, "http") + "/ws"
	if token != "" {
		u += "?token=" + url.QueryEscape(token)
	}
	return u
}

func (g *gateway) dial(t *testing.T, uid, name, email string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(g.wsURL(g.token(t, uid, name, email)), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func (g *gateway) fetchHistory(token, roomID string) (int, domain.HistoryResponse, error) {
	var body domain.HistoryResponse
	req, err := http.NewRequest(http.MethodGet, g.server.URL+"/api/chat/"+url.PathEscape(roomID)+"/messages", nil)
	if err != nil {
		return 0, body, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, body, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		err = json.NewDecoder(resp.Body).Decode(&body)
	}
	return resp.StatusCode, body, err
}

func (g *gateway) history(t *testing.T, token, roomID string) (int, domain.HistoryResponse) {
	t.Helper()
	status, body, err := g.fetchHistory(token, roomID)
	require.NoError(t, err)
	return status, body
}

func send(t *testing.T, conn *websocket.Conn, v interface{}) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(v))
}

func readEvent(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(readTimeout)))
	var evt map[string]interface{}
	require.NoError(t, conn.ReadJSON(&evt))
	return evt
}

// sync round-trips a ping so every frame sent before it has been handled.
func syncConn(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	send(t, conn, map[string]string{"type": "ping"})
	evt := readEvent(t, conn)
	require.Equal(t, "pong", evt["type"])
}

func TestUnauthenticatedHandshakeRejected(t *testing.T) {
	g := newGateway(t)

	tests := []struct {
		name    string
		url     string
		message string
	}{
		{"no credential", g.wsURL(""), "unauthorized"},
		{"bad credential", g.wsURL("not-a-jwt"), jwt.ErrInvalidToken.Error()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, resp, err := websocket.DefaultDialer.Dial(tt.url, nil)
			require.Error(t, err)
			assert.Nil(t, conn)
			require.NotNil(t, resp)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			assert.JSONEq(t, `{"message":"`+tt.message+`"}`, string(body))
		})
	}
}

func TestHandshakeAcceptsAuthorizationHeader(t *testing.T) {
	g := newGateway(t)

	header := http.Header{}
	header.Set("Authorization", "Bearer "+g.token(t, "alice", "Alice", ""))
	conn, _, err := websocket.DefaultDialer.Dial(g.wsURL(""), header)
	require.NoError(t, err)
	defer conn.Close()

	syncConn(t, conn)
}

func TestHistoryRequiresAuth(t *testing.T) {
	g := newGateway(t)

	status, _ := g.history(t, "", "general")
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body := g.history(t, g.token(t, "alice", "Alice", ""), "general")
	assert.Equal(t, http.StatusOK, status)
	assert.Empty(t, body.Messages)
}

func TestRoomBroadcastAndHistory(t *testing.T) {
	g := newGateway(t)
	const room = "community:stress:work-burnout"

	a := g.dial(t, "alice", "Alice", "")
	b := g.dial(t, "bob", "Bob", "")
	c := g.dial(t, "carol", "Carol", "")

	send(t, a, map[string]string{"type": "join", "roomId": room})
	send(t, b, map[string]string{"type": "join", "roomId": room})
	send(t, c, map[string]string{"type": "join", "roomId": "elsewhere"})
	syncConn(t, a)
	syncConn(t, b)
	syncConn(t, c)

	sentAt := time.Now().UnixMilli()
	send(t, a, map[string]interface{}{"type": "message", "roomId": room, "text": "Hope you're doing ok!"})

	for _, conn := range []*websocket.Conn{a, b} {
		evt := readEvent(t, conn)
		assert.Equal(t, "message", evt["type"])
		assert.Equal(t, room, evt["roomId"])
		assert.Equal(t, "Hope you're doing ok!", evt["text"])
		assert.NotEmpty(t, evt["id"])
		assert.InDelta(t, float64(sentAt), evt["ts"], 5000)

		user, ok := evt["user"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "alice", user["uid"])
		assert.Equal(t, domain.DefaultUserName, user["name"])
	}

	// carol is elsewhere: the next thing she sees is her own pong.
	syncConn(t, c)

	token := g.token(t, "bob", "Bob", "")
	require.Eventually(t, func() bool {
		_, body, err := g.fetchHistory(token, room)
		return err == nil && len(body.Messages) == 1
	}, readTimeout, 20*time.Millisecond)

	_, body := g.history(t, token, room)
	assert.Equal(t, "Hope you're doing ok!", body.Messages[0].Text)
	assert.Equal(t, "alice", body.Messages[0].User.UID)
	assert.NotNil(t, body.Messages[0].CreatedAt)
}

func TestInvalidEventsAreIgnored(t *testing.T) {
	g := newGateway(t)
	a := g.dial(t, "alice", "Alice", "")

	send(t, a, map[string]string{"type": "join", "roomId": "general"})
	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte("{not json")))
	send(t, a, map[string]string{"type": "teleport"})
	send(t, a, map[string]interface{}{"type": "join", "roomId": 42})
	send(t, a, map[string]interface{}{"type": "message", "roomId": "general", "text": "   "})
	send(t, a, map[string]interface{}{"type": "message", "text": "no room"})

	syncConn(t, a)

	send(t, a, map[string]interface{}{"type": "message", "roomId": "general", "text": "still connected"})
	evt := readEvent(t, a)
	assert.Equal(t, "still connected", evt["text"])
}

func TestLargeMessageKeepsConnection(t *testing.T) {
	g := newGateway(t)
	a := g.dial(t, "alice", "Alice", "")

	send(t, a, map[string]string{"type": "join", "roomId": "general"})
	syncConn(t, a)

	text := strings.Repeat("long read ", 6554)
	send(t, a, map[string]interface{}{"type": "message", "roomId": "general", "text": text})
	evt := readEvent(t, a)
	assert.Equal(t, "message", evt["type"])
	assert.Equal(t, text, evt["text"])

	syncConn(t, a)
}

func TestMentionNotifiesConnectedRecipient(t *testing.T) {
	g := newGateway(t)

	a := g.dial(t, "alice", "Alice", "alice@example.com")
	friend := g.dial(t, "friend", "Friend", "friend@example.com")
	eve := g.dial(t, "eve", "Eve", "")
	syncConn(t, friend)

	// Joining a room named after another user does not reach their private room.
	send(t, eve, map[string]string{"type": "join", "roomId": "friend"})
	syncConn(t, eve)

	require.Eventually(t, func() bool {
		users, err := g.directory.FindByEmails(context.Background(), []string{"friend@example.com"})
		return err == nil && len(users) == 1
	}, readTimeout, 10*time.Millisecond)

	send(t, a, map[string]string{"type": "join", "roomId": "general"})
	send(t, a, map[string]interface{}{
		"type":   "message",
		"roomId": "general",
		"text":   "cc @friend@example.com please help",
		"user":   map[string]string{"name": "Alice"},
	})

	broadcast := readEvent(t, a)
	assert.Equal(t, "message", broadcast["type"])

	evt := readEvent(t, friend)
	assert.Equal(t, "notification-sent", evt["type"])
	assert.Equal(t, "mention", evt["kind"])
	assert.Equal(t, "friend@example.com", evt["to"])

	ctx, cancel := context.WithTimeout(context.Background(), readTimeout)
	defer cancel()
	require.NoError(t, g.runner.Wait(ctx))
	assert.Equal(t, []string{"friend@example.com"}, g.outbox.recipients())

	// eve's next frame is her own pong, not the confirmation.
	syncConn(t, eve)
}
