package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/weiawesome/wes-io-live/community-chat/internal/config"
	"github.com/weiawesome/wes-io-live/community-chat/internal/repository"
	"github.com/weiawesome/wes-io-live/community-chat/internal/service"
	"github.com/weiawesome/wes-io-live/community-chat/pkg/log"
	"github.com/weiawesome/wes-io-live/community-chat/pkg/middleware"
	"github.com/weiawesome/wes-io-live/community-chat/pkg/response"
)

const (
	defaultLimit = 100
	maxLimit     = 500
)

// Pinger reports whether the message store answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HTTPHandler struct {
	history      service.HistoryService
	store        Pinger
	defaultLimit int
	maxLimit     int
}

func NewHTTPHandler(history service.HistoryService, store Pinger, cfg config.HistoryConfig) *HTTPHandler {
	h := &HTTPHandler{
		history:      history,
		store:        store,
		defaultLimit: cfg.DefaultLimit,
		maxLimit:     cfg.MaxLimit,
	}
	// The configured ceiling may lower the hard cap, never raise it.
	if h.maxLimit <= 0 || h.maxLimit > maxLimit {
		h.maxLimit = maxLimit
	}
	if h.defaultLimit <= 0 {
		h.defaultLimit = defaultLimit
	}
	if h.defaultLimit > h.maxLimit {
		h.defaultLimit = h.maxLimit
	}
	return h
}

// parseLimit applies the default to a missing or non-numeric value and
// clamps the rest into [1, max].
func (h *HTTPHandler) parseLimit(raw string) int {
	limit, err := strconv.Atoi(raw)
	if err != nil {
		limit = h.defaultLimit
	}
	if limit < 1 {
		limit = 1
	}
	if limit > h.maxLimit {
		limit = h.maxLimit
	}
	return limit
}

func (h *HTTPHandler) GetMessages(c *gin.Context) {
	roomID := c.Param("roomId")
	limit := h.parseLimit(c.Query("limit"))
	before := c.Query("before")

	result, err := h.history.GetHistory(c.Request.Context(), roomID, before, limit)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			response.BadRequest(c, "unknown cursor")
			return
		}
		l := log.Ctx(c.Request.Context())
		l.Error().Err(err).
			Str(log.FieldRoomID, roomID).
			Str(log.FieldUserID, middleware.GetUserID(c)).
			Msg("history query failed")
		response.InternalError(c, "failed to load chat history")
		return
	}

	response.OK(c, result)
}

func (h *HTTPHandler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Msg("store ping failed")
		response.Unavailable(c, "store unavailable")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
