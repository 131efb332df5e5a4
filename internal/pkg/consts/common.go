package consts

// 消息类型
const (
	MsgTypeText  = 1
	MsgTypeImage = 2
	MsgTypeFile  = 3
)

// TombstoneContent 撤回消息后的占位内容，所有端统一显示
const TombstoneContent = "[消息已删除]"

// 删除模式
const (
	DeleteModeMe       = "me"
	DeleteModeEveryone = "everyone"
)

// 通话媒体类型
const (
	MediaKindAudio = "audio"
	MediaKindVideo = "video"
)
