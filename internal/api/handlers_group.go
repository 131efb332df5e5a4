package api

import "Atrium/internal/api/handler"

// HandlersGroup 封装了所有已初始化的 Handler 实例
type HandlersGroup struct {
	WsHandler       *handler.WsHandler
	ChatHandler     *handler.ChatHandler
	GroupHandler    *handler.GroupHandler
	MediaHandler    *handler.MediaHandler
	PresenceHandler *handler.PresenceHandler
}
