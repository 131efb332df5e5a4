package realtime

import (
	"errors"
	log "log/slog"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

var (
	ErrPeerUnreachable = errors.New("对方不在线，呼叫无法建立")
	ErrCallInProgress  = errors.New("该房间已有进行中的通话")
	ErrCallNotFound    = errors.New("通话不存在或已结束")
)

// 通话推送载荷
type (
	incomingCallPush struct {
		RoomKey   string `json:"room_key"`
		CallID    string `json:"call_id"`
		Initiator uint64 `json:"initiator"`
		MediaKind string `json:"media_kind"`
	}
	callAcceptedPush struct {
		RoomKey string `json:"room_key"`
		CallID  string `json:"call_id"`
		UserID  uint64 `json:"user_id"`
	}
	callSignalPush struct {
		RoomKey string          `json:"room_key"`
		From    uint64          `json:"from"`
		Payload json.RawMessage `json:"payload"`
	}
	callEndedPush struct {
		RoomKey string `json:"room_key"`
		CallID  string `json:"call_id"`
		UserID  uint64 `json:"user_id,omitempty"`
		Reason  string `json:"reason"`
		// Final 为 true 表示整个会话终结，客户端拆除全部对等连接；
		// 否则只拆除与 UserID 之间的那一条腿。
		Final bool `json:"final"`
	}
)

// 挂断原因
const (
	endReasonHangup       = "hangup"
	endReasonRejected     = "rejected"
	endReasonTimeout      = "timeout"
	endReasonDisconnected = "disconnected"
)

// CallManager 通话信令中继与会话编排。
// 媒体走客户端之间的网状对等连接，服务端只做建联握手的透明转发，
// O(N²) 的信令关系数决定了这只适用于小规模群组通话。
type CallManager struct {
	hub      *Hub
	presence *Registry
	events   EventSink

	ringTimeout time.Duration

	mu       sync.Mutex
	sessions map[string]*CallSession
}

func NewCallManager(hub *Hub, presence *Registry, events EventSink, ringTimeout time.Duration) *CallManager {
	return &CallManager{
		hub:         hub,
		presence:    presence,
		events:      events,
		ringTimeout: ringTimeout,
		sessions:    make(map[string]*CallSession),
	}
}

// Invite 发起呼叫。房间内已有未终结会话时拒绝；
// 没有任何其他在线订阅者时以 ErrPeerUnreachable 失败（呼叫未建立，不重试）。
func (s *CallManager) Invite(callerID uint64, roomKey, mediaKind string) (*CallSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.sessions[roomKey]; ok && existing.Status() != CallEnded {
		return nil, ErrCallInProgress
	}

	reachable := false
	for uid := range s.hub.SubscriberUsers(roomKey) {
		if uid != callerID {
			reachable = true
			break
		}
	}
	if !reachable {
		return nil, ErrPeerUnreachable
	}

	sess := newCallSession(roomKey, callerID, mediaKind)
	s.sessions[roomKey] = sess

	sessID := sess.ID
	sess.mu.Lock()
	sess.ringTimer = time.AfterFunc(s.ringTimeout, func() {
		s.timeout(roomKey, sessID)
	})
	sess.mu.Unlock()

	s.hub.BroadcastRoom(roomKey, EncodePush(EvtIncomingCall, incomingCallPush{
		RoomKey: roomKey, CallID: sess.ID, Initiator: callerID, MediaKind: mediaKind,
	}), callerID)

	if s.events != nil {
		s.events.Publish("call.started", roomKey, callerID, map[string]any{
			"call_id": sess.ID, "media_kind": mediaKind,
		})
	}
	log.Info("呼叫发起", "roomKey", roomKey, "callID", sess.ID, "initiator", callerID, "media", mediaKind)
	return sess, nil
}

// Accept 接听。首个接听把会话从 ringing 推进到 connected 并解除振铃超时。
// call_accepted 广播给全房间，已有参与者据此各自与新加入者建立一条对等连接腿。
func (s *CallManager) Accept(userID uint64, roomKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[roomKey]
	if !ok || sess.Status() == CallEnded {
		return ErrCallNotFound
	}

	if sess.Status() == CallRinging {
		if err := sess.transition(CallConnected); err != nil {
			return err
		}
		sess.mu.Lock()
		if sess.ringTimer != nil {
			sess.ringTimer.Stop()
			sess.ringTimer = nil
		}
		sess.mu.Unlock()
	}
	sess.addParticipant(userID)

	s.hub.BroadcastRoom(roomKey, EncodePush(EvtCallAccepted, callAcceptedPush{
		RoomKey: roomKey, CallID: sess.ID, UserID: userID,
	}), 0)
	log.Info("呼叫接听", "roomKey", roomKey, "callID", sess.ID, "userID", userID)
	return nil
}

// Signal 成对转发信令（SDP、候选地址）。载荷不解析不修改，原样送达
// 目标用户的全部活跃连接；目标离线返回 ErrPeerUnreachable。
// 同一 (from,to) 对的信令顺序由连接的 FIFO 队列保持。
func (s *CallManager) Signal(fromID, toID uint64, roomKey string, payload json.RawMessage) error {
	s.mu.Lock()
	sess, ok := s.sessions[roomKey]
	s.mu.Unlock()
	if !ok || sess.Status() == CallEnded {
		return ErrCallNotFound
	}

	conns := s.presence.Connections(toID)
	if len(conns) == 0 {
		return ErrPeerUnreachable
	}

	frame := EncodePush(EvtCallSignal, callSignalPush{
		RoomKey: roomKey, From: fromID, Payload: payload,
	})
	for _, c := range conns {
		c.Send(frame)
	}
	return nil
}

// End 显式挂断。任何参与者的显式挂断都终结整个会话：
// call_ended 以 final 广播给全房间，各端拆除该会话的全部对等连接。
// 振铃期由被叫挂断记为拒接。对已终结会话的挂断是无操作。
func (s *CallManager) End(userID uint64, roomKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[roomKey]
	if !ok {
		return ErrCallNotFound
	}
	if sess.Status() == CallEnded {
		return nil
	}

	reason := endReasonHangup
	if sess.Status() == CallRinging && userID != sess.Initiator {
		reason = endReasonRejected
	}
	s.endSession(sess, userID, reason)
	return nil
}

// DisconnectUser 用户离线的隐式挂断：只结束该用户的腿，
// 其余参与者之间的对等连接不受影响（部分失败语义）。
// 显式 call_end 不走这里，见 End。
func (s *CallManager) DisconnectUser(userID uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sess := range s.sessions {
		if sess.Status() == CallEnded {
			continue
		}
		if sess.hasParticipant(userID) {
			s.endLeg(sess, userID, endReasonDisconnected)
		}
	}
}

// endSession 终结整个会话并以 final 广播。调用方持有 s.mu。
func (s *CallManager) endSession(sess *CallSession, userID uint64, reason string) {
	if err := sess.transition(CallEnded); err != nil {
		log.Error("通话状态迁移失败", "roomKey", sess.RoomKey, "err", err)
	}

	s.hub.BroadcastRoom(sess.RoomKey, EncodePush(EvtCallEnded, callEndedPush{
		RoomKey: sess.RoomKey, CallID: sess.ID, UserID: userID, Reason: reason, Final: true,
	}), 0)

	if s.events != nil {
		s.events.Publish("call.ended", sess.RoomKey, userID, map[string]any{
			"call_id": sess.ID, "reason": reason,
		})
	}
	log.Info("通话挂断", "roomKey", sess.RoomKey, "callID", sess.ID, "userID", userID, "reason", reason, "final", true)
}

// endLeg 结束一条离线参与腿，必要时终结整个会话。调用方持有 s.mu。
func (s *CallManager) endLeg(sess *CallSession, userID uint64, reason string) {
	// 振铃期没有任何已接通的腿，任何挂断直接终结会话
	final := sess.Status() == CallRinging

	remaining := sess.removeParticipant(userID)
	if remaining < 2 {
		final = true
	}

	if final {
		if err := sess.transition(CallEnded); err != nil {
			log.Error("通话状态迁移失败", "roomKey", sess.RoomKey, "err", err)
		}
	}

	s.hub.BroadcastRoom(sess.RoomKey, EncodePush(EvtCallEnded, callEndedPush{
		RoomKey: sess.RoomKey, CallID: sess.ID, UserID: userID, Reason: reason, Final: final,
	}), 0)

	if final && s.events != nil {
		s.events.Publish("call.ended", sess.RoomKey, userID, map[string]any{
			"call_id": sess.ID, "reason": reason,
		})
	}
	log.Info("通话挂断", "roomKey", sess.RoomKey, "callID", sess.ID, "userID", userID, "reason", reason, "final", final)
}

// timeout 振铃超时：无人接听，会话终结并通知所有端清除铃声状态
func (s *CallManager) timeout(roomKey, sessID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[roomKey]
	if !ok || sess.ID != sessID || sess.Status() != CallRinging {
		return
	}

	if err := sess.transition(CallEnded); err != nil {
		return
	}
	s.hub.BroadcastRoom(roomKey, EncodePush(EvtCallEnded, callEndedPush{
		RoomKey: roomKey, CallID: sess.ID, Reason: endReasonTimeout, Final: true,
	}), 0)
	if s.events != nil {
		s.events.Publish("call.ended", roomKey, sess.Initiator, map[string]any{
			"call_id": sess.ID, "reason": endReasonTimeout,
		})
	}
	log.Info("呼叫超时未接听", "roomKey", roomKey, "callID", sess.ID)
}

// Session 返回房间当前会话
func (s *CallManager) Session(roomKey string) (*CallSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[roomKey]
	return sess, ok
}

// SweepEnded 清理终结超过 maxAge 的会话，返回清理数（由定时任务调用）
func (s *CallManager) SweepEnded(maxAge time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	cutoff := time.Now().Add(-maxAge)
	for roomKey, sess := range s.sessions {
		if endedAt, ended := sess.endedSince(); ended && endedAt.Before(cutoff) {
			delete(s.sessions, roomKey)
			n++
		}
	}
	return n
}
