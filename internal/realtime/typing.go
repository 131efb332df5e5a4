package realtime

import (
	"fmt"
	"sync"
	"time"
)

// typingPush 输入指示推送载荷
type typingPush struct {
	RoomKey string `json:"room_key"`
	UserID  uint64 `json:"user_id"`
	Typing  bool   `json:"typing"`
}

// TypingBus 短时信号总线。typing_start 是一份租约而非持久状态：
// 客户端崩溃或断线永远不会发 stop，到期自动清除兜底。
// 不落库、不保证送达，至多一次。
type TypingBus struct {
	hub   *Hub
	lease time.Duration

	mu     sync.Mutex
	timers map[string]*time.Timer
}

func NewTypingBus(hub *Hub, lease time.Duration) *TypingBus {
	return &TypingBus{
		hub:    hub,
		lease:  lease,
		timers: make(map[string]*time.Timer),
	}
}

func leaseKey(roomKey string, userID uint64) string {
	return fmt.Sprintf("%s|%d", roomKey, userID)
}

// Start 开始输入。租约已存在时仅续期不重播，
// 因此逐键触发的客户端也只会产生一次广播（服务端节流）。
func (s *TypingBus) Start(roomKey string, userID uint64) {
	key := leaseKey(roomKey, userID)

	s.mu.Lock()
	if t, ok := s.timers[key]; ok {
		t.Reset(s.lease)
		s.mu.Unlock()
		return
	}
	s.timers[key] = time.AfterFunc(s.lease, func() {
		s.expire(roomKey, userID)
	})
	s.mu.Unlock()

	s.hub.BroadcastRoom(roomKey, EncodePush(EvtTyping, typingPush{
		RoomKey: roomKey, UserID: userID, Typing: true,
	}), userID)
}

// Stop 提前取消租约并广播停止
func (s *TypingBus) Stop(roomKey string, userID uint64) {
	key := leaseKey(roomKey, userID)

	s.mu.Lock()
	t, ok := s.timers[key]
	if ok {
		t.Stop()
		delete(s.timers, key)
	}
	s.mu.Unlock()

	if !ok {
		return
	}
	s.broadcastStopped(roomKey, userID)
}

// expire 租约到期，无 stop 信号时的自动清除
func (s *TypingBus) expire(roomKey string, userID uint64) {
	key := leaseKey(roomKey, userID)

	s.mu.Lock()
	_, ok := s.timers[key]
	delete(s.timers, key)
	s.mu.Unlock()

	if !ok {
		return
	}
	s.broadcastStopped(roomKey, userID)
}

func (s *TypingBus) broadcastStopped(roomKey string, userID uint64) {
	s.hub.BroadcastRoom(roomKey, EncodePush(EvtTyping, typingPush{
		RoomKey: roomKey, UserID: userID, Typing: false,
	}), userID)
}

// Close 停掉所有未到期的租约
func (s *TypingBus) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, t := range s.timers {
		t.Stop()
		delete(s.timers, key)
	}
}
