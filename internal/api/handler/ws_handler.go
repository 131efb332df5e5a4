package handler

import (
	"Atrium/internal/api/config"
	"Atrium/internal/pkg/response"
	"Atrium/internal/pkg/security"
	"Atrium/internal/realtime"
	"Atrium/internal/service"
	log "log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

const pongWait = 60 * time.Second

type WsHandler struct {
	chatService service.ChatService
	hub         *realtime.Hub
	presence    *realtime.Registry
	typing      *realtime.TypingBus
	calls       *realtime.CallManager
}

func NewWsHandler(
	chatService service.ChatService,
	hub *realtime.Hub,
	presence *realtime.Registry,
	typing *realtime.TypingBus,
	calls *realtime.CallManager,
) *WsHandler {
	return &WsHandler{
		chatService: chatService,
		hub:         hub,
		presence:    presence,
		typing:      typing,
		calls:       calls,
	}
}

func (s *WsHandler) Connect(c *gin.Context) {
	// 鉴权：浏览器 WS 握手无法携带自定义 Header，Token 走查询串
	token := c.Query("token")
	if token == "" {
		response.Error(c, service.UnauthorizedError)
		return
	}
	claims, err := security.ValidateToken(token)
	if err != nil {
		log.Warn("WS 鉴权失败", "err", err)
		response.Error(c, service.UnauthorizedError)
		return
	}
	userID := claims.UserID

	// 升级 Websocket
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WS 协议升级失败", "err", err)
		return
	}

	client := realtime.NewClient(userID, conn, config.Cfg.IM.SendBuffer)
	s.presence.Connect(client)
	go client.WritePump()

	log.Info("用户 WS 连接已建立", "userID", userID, "connID", client.ID)

	defer func() {
		s.hub.LeaveAll(client)
		wentOffline := s.presence.Disconnect(client)
		if wentOffline {
			// 用户彻底离线才终止其通话腿，多端在线时掉一条连接不影响通话
			s.calls.DisconnectUser(userID)
		}
		client.Close()
		log.Info("用户 WS 连接已断开", "userID", userID, "connID", client.ID)
	}()

	conn.SetReadLimit(config.Cfg.IM.MaxMessageBytes)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// 读循环：逐帧分发，单个坏帧只回错误推送不断连
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		s.dispatch(c.Request.Context(), client, raw)
	}
}
