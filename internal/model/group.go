package model

import "time"

// Group 群组主表。单聊没有对应的行，房间键纯派生。
type Group struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"type:varchar(64);not null" json:"name"`
	AdminID   uint64    `gorm:"not null;index" json:"adminId"` // 群主，成员增删由其独占
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Group) TableName() string { return "im_groups" }

// GroupMember 群组成员表
type GroupMember struct {
	ID       uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	GroupID  uint64    `gorm:"uniqueIndex:idx_group_user" json:"groupId"`
	UserID   uint64    `gorm:"uniqueIndex:idx_group_user;index" json:"userId"`
	JoinedAt time.Time `json:"joinedAt"`

	Group Group `gorm:"foreignKey:GroupID;references:ID" json:"group"`
}

func (GroupMember) TableName() string { return "im_group_members" }
