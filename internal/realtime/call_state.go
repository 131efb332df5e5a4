package realtime

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// CallStatus 通话会话状态，只允许前向迁移
type CallStatus int8

const (
	CallRinging CallStatus = iota + 1
	CallConnected
	CallEnded
)

func (s CallStatus) String() string {
	switch s {
	case CallRinging:
		return "ringing"
	case CallConnected:
		return "connected"
	case CallEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// 合法迁移：ringing→connected、ringing→ended、connected→ended。
// ended 为吸收态，会话不可复活，再次通话需要新会话。
func canTransition(from, to CallStatus) bool {
	switch from {
	case CallRinging:
		return to == CallConnected || to == CallEnded
	case CallConnected:
		return to == CallEnded
	default:
		return false
	}
}

// CallSession 一次通话会话。参与各方在客户端对彼此各持一条
// 对等连接（N>2 时全网状），服务端只维护参与者集合与生命周期。
type CallSession struct {
	ID        string
	RoomKey   string
	Initiator uint64
	MediaKind string
	CreatedAt time.Time

	mu           sync.Mutex
	status       CallStatus
	participants map[uint64]struct{}
	endedAt      time.Time
	ringTimer    *time.Timer
}

func newCallSession(roomKey string, initiator uint64, mediaKind string) *CallSession {
	return &CallSession{
		ID:           uuid.New().String(),
		RoomKey:      roomKey,
		Initiator:    initiator,
		MediaKind:    mediaKind,
		CreatedAt:    time.Now(),
		status:       CallRinging,
		participants: map[uint64]struct{}{initiator: {}},
	}
}

func (s *CallSession) Status() CallStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// transition 执行状态迁移，非法迁移返回错误
func (s *CallSession) transition(to CallStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == to {
		return nil
	}
	if !canTransition(s.status, to) {
		return fmt.Errorf("illegal call transition %s -> %s", s.status, to)
	}
	s.status = to
	if to == CallEnded {
		s.endedAt = time.Now()
		if s.ringTimer != nil {
			s.ringTimer.Stop()
			s.ringTimer = nil
		}
	}
	return nil
}

func (s *CallSession) addParticipant(userID uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.participants[userID] = struct{}{}
}

// removeParticipant 返回剩余参与者数
func (s *CallSession) removeParticipant(userID uint64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.participants, userID)
	return len(s.participants)
}

func (s *CallSession) hasParticipant(userID uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.participants[userID]
	return ok
}

// Participants 参与者快照
func (s *CallSession) Participants() []uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]uint64, 0, len(s.participants))
	for uid := range s.participants {
		out = append(out, uid)
	}
	return out
}

func (s *CallSession) endedSince() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != CallEnded {
		return time.Time{}, false
	}
	return s.endedAt, true
}
