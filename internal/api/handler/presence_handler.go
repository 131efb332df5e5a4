package handler

import (
	"Atrium/internal/api/dto"
	"Atrium/internal/pkg/response"
	"Atrium/internal/realtime"
	"Atrium/internal/service"
	"strconv"

	"github.com/gin-gonic/gin"
)

type PresenceHandler struct {
	presence *realtime.Registry
	calls    *realtime.CallManager
}

func NewPresenceHandler(presence *realtime.Registry, calls *realtime.CallManager) *PresenceHandler {
	return &PresenceHandler{presence: presence, calls: calls}
}

// GetOnlineUsers 当前在线用户集合（WS 快照之外的 REST 查询口）
func (s *PresenceHandler) GetOnlineUsers(c *gin.Context) {
	response.Success(c, gin.H{"online": s.presence.OnlineUsers()})
}

// IsOnline 单用户在线查询
func (s *PresenceHandler) IsOnline(c *gin.Context) {
	userID, err := strconv.ParseUint(c.Param("user_id"), 10, 64)
	if err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}
	response.Success(c, gin.H{"online": s.presence.IsOnline(userID)})
}

// GetCall 房间当前通话会话概要
func (s *PresenceHandler) GetCall(c *gin.Context) {
	roomKey := c.Query("roomKey")
	sess, ok := s.calls.Session(roomKey)
	if !ok {
		response.Error(c, realtime.ErrCallNotFound)
		return
	}
	response.Success(c, dto.CallDTO{
		CallID:       sess.ID,
		RoomKey:      sess.RoomKey,
		Initiator:    sess.Initiator,
		MediaKind:    sess.MediaKind,
		Status:       sess.Status().String(),
		Participants: sess.Participants(),
	})
}
