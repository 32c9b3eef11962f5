package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/olahol/melody"

	"github.com/LovationAdmin/financas-api/events"
	"github.com/LovationAdmin/financas-api/middleware"
	"github.com/LovationAdmin/financas-api/utils"
)

const wsUserKey = "user_id"

// WSHandler keeps one melody hub for every signed-in tab. Each session is tagged
// with its user id so change events reach the actor and their partner only.
type WSHandler struct {
	M *melody.Melody
}

func NewWSHandler() *WSHandler {
	m := melody.New()

	m.Config.MaxMessageSize = 1024
	m.Config.PingPeriod = 30 * time.Second
	m.Config.PongWait = 60 * time.Second

	m.HandleConnect(func(s *melody.Session) {
		utils.LogWebSocket("connect", sessionUser(s))
	})
	m.HandleDisconnect(func(s *melody.Session) {
		utils.LogWebSocket("disconnect", sessionUser(s))
	})
	m.HandleError(func(s *melody.Session, err error) {
		slog.Debug("websocket error", "component", "ws", "error", err)
	})

	return &WSHandler{M: m}
}

// HandleWS upgrades the request. It runs behind AuthMiddleware, which also
// accepts the token as ?token= since browsers cannot set headers on upgrade.
func (h *WSHandler) HandleWS(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	if err := h.M.HandleRequestWithKeys(c.Writer, c.Request, map[string]any{wsUserKey: userID}); err != nil {
		slog.Warn("websocket upgrade failed", "component", "ws", "error", err)
	}
}

// Publish sends e to every open session of the users it concerns. It makes the
// handler an events.Publisher.
func (h *WSHandler) Publish(_ context.Context, e events.Event) error {
	if len(e.UserIDs) == 0 {
		return nil
	}
	msg, err := e.ToJSON()
	if err != nil {
		return err
	}
	recipients := make(map[string]struct{}, len(e.UserIDs))
	for _, id := range e.UserIDs {
		recipients[id] = struct{}{}
	}
	return h.M.BroadcastFilter(msg, func(s *melody.Session) bool {
		_, ok := recipients[sessionUser(s)]
		return ok
	})
}

// Close disconnects every session.
func (h *WSHandler) Close() error {
	return h.M.Close()
}

func sessionUser(s *melody.Session) string {
	v, ok := s.Get(wsUserKey)
	if !ok {
		return ""
	}
	id, _ := v.(string)
	return id
}
