package realtime

import (
	"context"
	log "log/slog"
	"sort"
	"sync"
)

// PresenceMirror 在线状态的外部镜像（Redis），供 REST 查询与其他子系统消费。
// 镜像写失败不影响内存状态，属于尽力而为。
type PresenceMirror interface {
	SetOnline(ctx context.Context, userID uint64)
	SetOffline(ctx context.Context, userID uint64)
}

// presenceSnapshot 全量在线快照。刻意不做增量 diff：
// 快照广播换来的是对乱序更新天然免疫，代价只是带宽。
type presenceSnapshot struct {
	Online []uint64 `json:"online"`
}

// Registry 在线注册表：用户 -> 活跃连接集合。集合非空即在线。
type Registry struct {
	mu     sync.Mutex
	conns  map[uint64]map[*Client]struct{}
	mirror PresenceMirror
}

func NewRegistry(mirror PresenceMirror) *Registry {
	return &Registry{
		conns:  make(map[uint64]map[*Client]struct{}),
		mirror: mirror,
	}
}

// Connect 登记一条连接。0→1 的用户广播一次上线快照。
func (s *Registry) Connect(c *Client) {
	s.mu.Lock()
	set, ok := s.conns[c.UserID]
	if !ok {
		set = make(map[*Client]struct{})
		s.conns[c.UserID] = set
	}
	set[c] = struct{}{}
	wentOnline := len(set) == 1
	if wentOnline {
		// 锁内投递：相邻两次状态变更的快照必须按发生顺序入各连接的
		// 发送队列，否则末帧可能是过期快照。Send 非阻塞，不会持锁等待。
		s.broadcastSnapshotLocked()
	}
	s.mu.Unlock()

	if wentOnline {
		log.Info("用户上线", "userID", c.UserID)
		if s.mirror != nil {
			s.mirror.SetOnline(context.Background(), c.UserID)
		}
	}
}

// Disconnect 注销一条连接，未知连接为静默无操作。
// 返回该用户是否因此下线（最后一条连接移除时恰好广播一次）。
func (s *Registry) Disconnect(c *Client) bool {
	s.mu.Lock()
	set, ok := s.conns[c.UserID]
	if !ok {
		s.mu.Unlock()
		return false
	}
	if _, ok = set[c]; !ok {
		s.mu.Unlock()
		return false
	}
	delete(set, c)
	wentOffline := len(set) == 0
	if wentOffline {
		delete(s.conns, c.UserID)
		s.broadcastSnapshotLocked()
	}
	s.mu.Unlock()

	if wentOffline {
		log.Info("用户下线", "userID", c.UserID)
		if s.mirror != nil {
			s.mirror.SetOffline(context.Background(), c.UserID)
		}
	}
	return wentOffline
}

// IsOnline 用户是否至少持有一条活跃连接
func (s *Registry) IsOnline(userID uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns[userID]) > 0
}

// OnlineUsers 当前在线用户集合
func (s *Registry) OnlineUsers() []uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.onlineLocked()
}

// Connections 用户的全部活跃连接（信令转发按此寻址）
func (s *Registry) Connections(userID uint64) []*Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Client, 0, len(s.conns[userID]))
	for c := range s.conns[userID] {
		out = append(out, c)
	}
	return out
}

func (s *Registry) onlineLocked() []uint64 {
	out := make([]uint64, 0, len(s.conns))
	for uid := range s.conns {
		out = append(out, uid)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// broadcastSnapshotLocked 编码一次快照并推给全部在线连接。调用方持有 s.mu。
func (s *Registry) broadcastSnapshotLocked() {
	payload := EncodePush(EvtPresenceChanged, presenceSnapshot{Online: s.onlineLocked()})
	for _, set := range s.conns {
		for c := range set {
			c.Send(payload)
		}
	}
}
