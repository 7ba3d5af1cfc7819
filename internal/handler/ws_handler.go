package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/weiawesome/wes-io-live/community-chat/internal/audit"
	"github.com/weiawesome/wes-io-live/community-chat/internal/config"
	"github.com/weiawesome/wes-io-live/community-chat/internal/domain"
	"github.com/weiawesome/wes-io-live/community-chat/internal/hub"
	"github.com/weiawesome/wes-io-live/community-chat/internal/identity"
	"github.com/weiawesome/wes-io-live/community-chat/internal/service"
	"github.com/weiawesome/wes-io-live/community-chat/pkg/log"
	"github.com/weiawesome/wes-io-live/community-chat/pkg/middleware"
	"github.com/weiawesome/wes-io-live/community-chat/pkg/response"
)

// tokenQueryParam is the handshake field carrying the bearer credential.
const tokenQueryParam = "token"

type WSHandler struct {
	hub      *hub.Hub
	service  service.ChatService
	verifier identity.Verifier
	wsCfg    config.WebSocketConfig
	upgrader websocket.Upgrader
}

func NewWSHandler(
	h *hub.Hub,
	svc service.ChatService,
	verifier identity.Verifier,
	wsCfg config.WebSocketConfig,
	allowedOrigins []string,
) *WSHandler {
	return &WSHandler{
		hub:      h,
		service:  svc,
		verifier: verifier,
		wsCfg:    wsCfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

// originChecker accepts requests without an Origin header (non-browser
// clients), any origin when the list contains "*", and otherwise only
// listed origins.
func originChecker(allowed []string) func(*http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	_, wildcard := set["*"]

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || wildcard {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// bearerCredential reads the token from the handshake query parameter,
// falling back to the Authorization header.
func bearerCredential(r *http.Request) string {
	if token := r.URL.Query().Get(tokenQueryParam); token != "" {
		return token
	}
	token, _ := middleware.BearerToken(r.Header.Get(middleware.AuthHeaderKey))
	return token
}

// HandleWebSocket authenticates the handshake and only then upgrades it.
func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	ctx := c.Request.Context()

	token := bearerCredential(c.Request)
	if token == "" {
		audit.LogWithDetail(ctx, audit.ActionAuthFailed, "", identity.ErrMissingToken.Error(), "websocket handshake rejected")
		response.Unauthorized(c, identity.ErrMissingToken.Error())
		return
	}

	id, err := h.verifier.Verify(ctx, token)
	if err != nil {
		audit.LogWithDetail(ctx, audit.ActionAuthFailed, "", err.Error(), "websocket handshake rejected")
		response.Unauthorized(c, err.Error())
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	connID := uuid.New().String()
	connLogger := log.Ctx(ctx).With().
		Str(log.FieldConnID, connID).
		Str(log.FieldUserID, id.UID).
		Logger()
	connCtx := log.WithLogger(context.Background(), connLogger)

	session := domain.NewSession(connID, *id)
	client := hub.NewClient(connID, h.hub, conn, session, h.wsCfg)

	h.service.HandleConnect(connCtx, client)

	go client.WritePump()
	go func() {
		client.ReadPump(func(cl *hub.Client, data []byte) {
			h.handleMessage(connCtx, cl, data)
		})
		h.service.HandleDisconnect(connCtx, client)
	}()
}

// handleMessage dispatches one inbound frame. Invalid frames are ignored
// without a reply.
func (h *WSHandler) handleMessage(ctx context.Context, client *hub.Client, data []byte) {
	l := log.Ctx(ctx)
	defer func() {
		if r := recover(); r != nil {
			l.Error().Interface("panic", r).Msg("event handler panicked")
		}
	}()

	evt, err := domain.DecodeEvent(data)
	if err != nil {
		l.Debug().Err(err).Msg("event ignored")
		return
	}

	switch e := evt.(type) {
	case *domain.RoomEvent:
		if e.Type == domain.EventJoin {
			h.service.HandleJoin(ctx, client, e.RoomID)
		} else {
			h.service.HandleLeave(ctx, client, e.RoomID)
		}

	case *domain.MessageEvent:
		if _, err := h.service.HandleMessage(ctx, client, e); err != nil {
			l.Debug().Err(err).Str(log.FieldRoomID, e.RoomID).Msg("message dropped")
		}

	case *domain.Envelope:
		if err := client.SendMessage(&domain.PongEvent{Type: domain.EventPong}); err != nil {
			l.Debug().Err(err).Msg("pong not sent")
		}
	}
}
