package repository

import (
	"Atrium/internal/pkg/consts"
	"Atrium/internal/pkg/redis"
	"context"
	log "log/slog"
)

// PresenceRepo 在线注册表的 Redis 镜像，实现 realtime.PresenceMirror。
// 镜像写失败只记日志，内存注册表才是事实来源。
type PresenceRepo struct{}

func NewPresenceRepo() *PresenceRepo {
	return &PresenceRepo{}
}

func (s *PresenceRepo) SetOnline(ctx context.Context, userID uint64) {
	if err := redis.SAdd(ctx, consts.IMOnlineKey, userID); err != nil {
		log.Warn("在线镜像写入失败", "userID", userID, "err", err)
	}
}

func (s *PresenceRepo) SetOffline(ctx context.Context, userID uint64) {
	if err := redis.SRem(ctx, consts.IMOnlineKey, userID); err != nil {
		log.Warn("在线镜像移除失败", "userID", userID, "err", err)
	}
}
