package job

import (
	"Atrium/internal/pkg/consts"
	"Atrium/internal/pkg/redis"
	"Atrium/internal/realtime"
	"context"
	log "log/slog"
	"strconv"
	"time"
)

// SessionSweepJob 回收已结束的通话会话，并校准 Redis 在线镜像。
// 内存注册表是唯一事实来源，镜像漂移时以注册表为准整写覆盖。
type SessionSweepJob struct {
	calls    *realtime.CallManager
	presence *realtime.Registry
}

func NewSessionSweepJob(calls *realtime.CallManager, presence *realtime.Registry) *SessionSweepJob {
	return &SessionSweepJob{calls: calls, presence: presence}
}

func (s *SessionSweepJob) Run() {
	ctx := context.Background()

	if n := s.calls.SweepEnded(5 * time.Minute); n > 0 {
		log.Info("已回收结束的通话会话", "count", n)
	}

	online := s.presence.OnlineUsers()
	mirrored, err := redis.GetSet(ctx, consts.IMOnlineKey)
	if err != nil {
		log.Error("读取在线镜像失败", "err", err)
		return
	}

	want := make(map[string]struct{}, len(online))
	for _, uid := range online {
		want[strconv.FormatUint(uid, 10)] = struct{}{}
	}
	for _, member := range mirrored {
		if _, ok := want[member]; !ok {
			if err := redis.SRem(ctx, consts.IMOnlineKey, member); err != nil {
				log.Warn("移除陈旧在线镜像成员失败", "member", member, "err", err)
			}
		}
	}
	for member := range want {
		if err := redis.SAdd(ctx, consts.IMOnlineKey, member); err != nil {
			log.Warn("补写在线镜像成员失败", "member", member, "err", err)
		}
	}
}
