package dto

import "time"

// SendMessageReq 发送消息请求体（WS 帧与 REST 共用）
type SendMessageReq struct {
	RoomKey     string          `json:"room_key" binding:"required"`
	MsgType     int             `json:"msg_type"` // 1-文本, 2-图片, 3-文件
	Content     string          `json:"content"`
	Attachments []AttachmentDTO `json:"attachments"`
}

// AttachmentDTO 附件描述，URL 由 Blob 存储上传后回传
type AttachmentDTO struct {
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
	Name     string `json:"name,omitempty"`
	Size     int64  `json:"size,omitempty"`
}

// MessageDTO 消息明细响应与推送载荷
type MessageDTO struct {
	ID          string          `json:"id"`
	RoomKey     string          `json:"room_key"`
	SenderID    uint64          `json:"sender_id"`
	MsgType     int             `json:"msg_type"`
	Content     string          `json:"content"`
	Attachments []AttachmentDTO `json:"attachments,omitempty"`
	Seq         uint64          `json:"seq"`
	ReadBy      []uint64        `json:"read_by"`
	Deleted     bool            `json:"deleted"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// MarkReadReq 标记已读请求
type MarkReadReq struct {
	RoomKey string `json:"room_key" binding:"required"`
}

// ReadReceiptDTO 已读回执推送
type ReadReceiptDTO struct {
	RoomKey string `json:"room_key"`
	UserID  uint64 `json:"user_id"`
}

// DeleteMessageReq 删除消息请求，Mode 为 me 或 everyone
type DeleteMessageReq struct {
	MessageID string `json:"message_id" binding:"required"`
	Mode      string `json:"mode" binding:"required"`
}

// MessageDeletedDTO 删除/撤回推送
type MessageDeletedDTO struct {
	MessageID string `json:"message_id"`
	RoomKey   string `json:"room_key"`
	Mode      string `json:"mode"`
	Content   string `json:"content"` // everyone 模式下为墓碑占位内容
}

// ConversationDTO 会话列表项响应
type ConversationDTO struct {
	RoomKey     string `json:"room_key"`
	IsGroup     bool   `json:"is_group"`
	PeerID      uint64 `json:"peer_id,omitempty"` // 对手方ID (单聊有效)
	GroupID     uint64 `json:"group_id,omitempty"`
	GroupName   string `json:"group_name,omitempty"`
	UnreadCount uint64 `json:"unreadCount"`
}

// TypingReq 输入指示请求
type TypingReq struct {
	RoomKey string `json:"room_key" binding:"required"`
}

// JoinRoomReq 加入/退出房间请求
type JoinRoomReq struct {
	RoomKey string `json:"room_key" binding:"required"`
}
