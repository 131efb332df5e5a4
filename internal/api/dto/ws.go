package dto

import "github.com/goccy/go-json"

// Frame 客户端上行帧：有限的动作集合由分发表逐一处理
type Frame struct {
	Op   string          `json:"op"`
	Data json.RawMessage `json:"data"`
}

// 上行动作名
const (
	OpJoinRoom      = "join_room"
	OpLeaveRoom     = "leave_room"
	OpSendMessage   = "send_message"
	OpMarkRead      = "mark_read"
	OpDeleteMessage = "delete_message"
	OpTypingStart   = "typing_start"
	OpTypingStop    = "typing_stop"
	OpCallInvite    = "call_invite"
	OpCallAccept    = "call_accept"
	OpCallSignal    = "call_signal"
	OpCallEnd       = "call_end"
)

// ErrorPush 动作失败时回给当事连接的错误载荷
type ErrorPush struct {
	Op      string `json:"op"`
	Message string `json:"message"`
}
