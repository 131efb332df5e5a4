package handler

import (
	"Atrium/internal/api/dto"
	"Atrium/internal/pkg/response"
	"Atrium/internal/service"
	"strconv"

	"github.com/gin-gonic/gin"
)

type ChatHandler struct {
	chatService service.ChatService
}

func NewChatHandler(chatService service.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// SendMessage 发送消息接口（WS 之外的 REST 入口，语义一致）
func (s *ChatHandler) SendMessage(c *gin.Context) {
	var req dto.SendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, err)
		return
	}

	// 从 Context 中获取中间件解析出的当前用户 ID
	senderID := c.GetUint64("user_id")

	res, err := s.chatService.SendMessage(c, senderID, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

// MarkRead 标记已读接口
func (s *ChatHandler) MarkRead(c *gin.Context) {
	var req dto.MarkReadReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, err)
		return
	}

	userID := c.GetUint64("user_id")

	if err := s.chatService.MarkRead(c, userID, req.RoomKey); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// DeleteMessage 删除/撤回消息
func (s *ChatHandler) DeleteMessage(c *gin.Context) {
	var req dto.DeleteMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, err)
		return
	}

	userID := c.GetUint64("user_id")

	if err := s.chatService.DeleteMessage(c, userID, &req); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// GetChatHistory 获取历史消息
func (s *ChatHandler) GetChatHistory(c *gin.Context) {
	roomKey := c.Query("roomKey")
	lastSeq, _ := strconv.ParseUint(c.Query("lastSeq"), 10, 64)
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "20"))

	userID := c.GetUint64("user_id")

	res, err := s.chatService.GetHistory(c, userID, roomKey, lastSeq, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

// GetConversationList 获取会话列表
func (s *ChatHandler) GetConversationList(c *gin.Context) {
	userID := c.GetUint64("user_id")
	res, err := s.chatService.GetConversations(c, userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}
