package realtime

import (
	"fmt"
	"strconv"
	"strings"
)

// 房间键规则：单聊键只做派生从不落库，群聊键等于群组持久化 ID。
const (
	directRoomPrefix = "dm_"
	groupRoomPrefix  = "grp_"
)

// DirectRoomKey 生成单聊房间键，双方 ID 排序后拼接保证无序对唯一
func DirectRoomKey(a, b uint64) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%s%d_%d", directRoomPrefix, a, b)
}

// GroupRoomKey 生成群聊房间键
func GroupRoomKey(groupID uint64) string {
	return fmt.Sprintf("%s%d", groupRoomPrefix, groupID)
}

// ParseDirectRoom 解析单聊房间键，返回两个成员 ID
func ParseDirectRoom(key string) (uint64, uint64, bool) {
	rest, ok := strings.CutPrefix(key, directRoomPrefix)
	if !ok {
		return 0, 0, false
	}
	parts := strings.Split(rest, "_")
	if len(parts) != 2 {
		return 0, 0, false
	}
	a, err1 := strconv.ParseUint(parts[0], 10, 64)
	b, err2 := strconv.ParseUint(parts[1], 10, 64)
	if err1 != nil || err2 != nil || a == 0 || b == 0 || a >= b {
		return 0, 0, false
	}
	return a, b, true
}

// ParseGroupRoom 解析群聊房间键，返回群组 ID
func ParseGroupRoom(key string) (uint64, bool) {
	rest, ok := strings.CutPrefix(key, groupRoomPrefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseUint(rest, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

// ValidRoomKey 校验房间键格式
func ValidRoomKey(key string) bool {
	if _, _, ok := ParseDirectRoom(key); ok {
		return true
	}
	_, ok := ParseGroupRoom(key)
	return ok
}
