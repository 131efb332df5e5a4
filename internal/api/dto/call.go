package dto

import "github.com/goccy/go-json"

// CallInviteReq 发起呼叫
type CallInviteReq struct {
	RoomKey   string `json:"room_key" binding:"required"`
	MediaKind string `json:"media_kind" binding:"required"` // audio / video
}

// CallAcceptReq 接听
type CallAcceptReq struct {
	RoomKey string `json:"room_key" binding:"required"`
}

// CallSignalReq 成对信令转发：载荷（SDP/候选地址）原样透传不解析
type CallSignalReq struct {
	RoomKey string          `json:"room_key" binding:"required"`
	ToUser  uint64          `json:"to_user" binding:"required"`
	Payload json.RawMessage `json:"payload" binding:"required"`
}

// CallEndReq 挂断
type CallEndReq struct {
	RoomKey string `json:"room_key" binding:"required"`
}

// CallDTO 会话概要响应
type CallDTO struct {
	CallID       string   `json:"call_id"`
	RoomKey      string   `json:"room_key"`
	Initiator    uint64   `json:"initiator"`
	MediaKind    string   `json:"media_kind"`
	Status       string   `json:"status"`
	Participants []uint64 `json:"participants"`
}
