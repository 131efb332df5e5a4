package repository

import (
	"Atrium/internal/pkg/consts"
	"Atrium/internal/pkg/redis"
	"context"
	"strconv"
)

// CounterRepo 房间定序器与未读计数，全部走 Redis 原子操作。
// 未读数与已读集合是唯一被多个独立参与者并发修改的状态，
// 必须用原子且幂等的写法而不是读-改-写。
type CounterRepo interface {
	// NextSeq 取房间内下一个绝对序号
	NextSeq(ctx context.Context, roomKey string) (uint64, error)
	// IncrUnread 收件人在该房间的未读数 +1
	IncrUnread(ctx context.Context, userID uint64, roomKey string) error
	// ClearUnread 清零，HDEL 对不存在的字段无操作，天然幂等
	ClearUnread(ctx context.Context, userID uint64, roomKey string) error
	// UnreadByRoom 用户各房间的未读数
	UnreadByRoom(ctx context.Context, userID uint64) (map[string]uint64, error)
}

type counterRepoImpl struct{}

func NewCounterRepo() CounterRepo {
	return &counterRepoImpl{}
}

func unreadKey(userID uint64) string {
	return consts.IMUnreadKey + strconv.FormatUint(userID, 10)
}

func (s *counterRepoImpl) NextSeq(ctx context.Context, roomKey string) (uint64, error) {
	return redis.Incr(ctx, consts.IMRoomSeqKey+roomKey)
}

func (s *counterRepoImpl) IncrUnread(ctx context.Context, userID uint64, roomKey string) error {
	return redis.HIncrBy(ctx, unreadKey(userID), roomKey, 1)
}

func (s *counterRepoImpl) ClearUnread(ctx context.Context, userID uint64, roomKey string) error {
	return redis.HDel(ctx, unreadKey(userID), roomKey)
}

func (s *counterRepoImpl) UnreadByRoom(ctx context.Context, userID uint64) (map[string]uint64, error) {
	raw, err := redis.HGetAll(ctx, unreadKey(userID))
	if err != nil {
		return nil, err
	}
	out := make(map[string]uint64, len(raw))
	for roomKey, v := range raw {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			continue
		}
		out[roomKey] = n
	}
	return out, nil
}
