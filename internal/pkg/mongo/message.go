package mongo

import (
	"time"
)

// Message MongoDB 消息明细模型
type Message struct {
	ID          string       `bson:"_id,omitempty" json:"id"`          // MongoDB 自动生成的 ObjectID
	RoomKey     string       `bson:"room_key" json:"roomKey"`          // 房间标识：单聊为派生键，群聊为群组键
	SenderID    uint64       `bson:"sender_id" json:"senderId"`        // 发送者 UID
	MsgType     int          `bson:"msg_type" json:"msgType"`          // 1-文本, 2-图片, 3-文件
	Content     string       `bson:"content" json:"content"`           // 文本内容，撤回后替换为占位符
	Attachments []Attachment `bson:"attachments,omitempty" json:"attachments"`
	Seq         uint64       `bson:"seq" json:"seq"`                   // 房间内唯一绝对序号 (来自 Redis)
	ReadBy      []uint64     `bson:"read_by" json:"readBy"`            // 已读用户集合，只增不减
	DeletedFor  []uint64     `bson:"deleted_for,omitempty" json:"-"`   // 仅对这些用户隐藏
	Deleted     bool         `bson:"deleted" json:"deleted"`           // 对所有人撤回（墓碑），不可逆
	CreatedAt   time.Time    `bson:"created_at" json:"createdAt"`
}

// Attachment 附件，只保存 Blob 存储返回的 URL 与声明的类型
type Attachment struct {
	URL      string `bson:"url" json:"url"`
	MimeType string `bson:"mime_type" json:"mimeType"`
	Name     string `bson:"name,omitempty" json:"name,omitempty"`
	Size     int64  `bson:"size,omitempty" json:"size,omitempty"`
}
