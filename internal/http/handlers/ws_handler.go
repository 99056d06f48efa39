package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/LeBoy2525/assist-backend/internal/http/handlers/common"
	"github.com/LeBoy2525/assist-backend/internal/logger"
	"github.com/LeBoy2525/assist-backend/internal/service"
	"github.com/LeBoy2525/assist-backend/internal/ws"
)

// WSHandler поднимает websocket-подключения для пуша уведомлений.
type WSHandler struct {
	hub      *ws.Hub
	auth     *service.AuthService
	upgrader websocket.Upgrader
}

func NewWSHandler(hub *ws.Hub, auth *service.AuthService, allowedOrigins []string) *WSHandler {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = struct{}{}
	}

	return &WSHandler{
		hub:  hub,
		auth: auth,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				_, ok := allowed[origin]
				return ok
			},
		},
	}
}

// Connect обрабатывает GET /ws?token=<access>. Браузерный WebSocket не
// умеет выставлять заголовок Authorization, поэтому токен передаётся
// query-параметром.
func (h *WSHandler) Connect(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		common.RespondError(c, http.StatusUnauthorized, "токен не передан")
		return
	}

	actor, err := h.auth.ResolveActor(c.Request.Context(), token)
	if err != nil {
		common.RespondError(c, http.StatusUnauthorized, "недействительный токен")
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Log.WithError(err).Warn("не удалось установить websocket-соединение")
		return
	}

	client := ws.NewClient(conn, h.hub, actor.UserID)
	h.hub.Register(client)
	client.Run(c.Request.Context())
}
