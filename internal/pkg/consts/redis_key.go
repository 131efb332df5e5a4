package consts

const (
	// IMRoomSeqKey 房间内消息定序器，后接 roomKey
	IMRoomSeqKey = "im:seq:"
	// IMUnreadKey 用户未读数哈希（field = roomKey），后接 userID
	IMUnreadKey = "im:unread:"
	// IMOnlineKey 在线用户集合（供 REST 查询与其他子系统消费）
	IMOnlineKey = "im:online"
)
