package dto

import "time"

// CreateGroupReq 创建群组请求
type CreateGroupReq struct {
	Name      string   `json:"name" binding:"required,max=64"`
	MemberIDs []uint64 `json:"member_ids"`
}

// GroupMemberReq 成员增删请求
type GroupMemberReq struct {
	UserID uint64 `json:"user_id" binding:"required"`
}

// GroupDTO 群组响应
type GroupDTO struct {
	ID        uint64    `json:"id"`
	Name      string    `json:"name"`
	AdminID   uint64    `json:"adminId"`
	RoomKey   string    `json:"room_key"`
	CreatedAt time.Time `json:"createdAt"`
}
