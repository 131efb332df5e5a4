package realtime

import (
	log "log/slog"

	"github.com/goccy/go-json"
)

// 服务端推送事件名
const (
	EvtMessageReceived    = "message_received"
	EvtMessageDeleted     = "message_deleted"
	EvtMessagesMarkedRead = "messages_marked_read"
	EvtPresenceChanged    = "presence_changed"
	EvtTyping             = "typing"
	EvtIncomingCall       = "incoming_call"
	EvtCallAccepted       = "call_accepted"
	EvtCallSignal         = "call_signal"
	EvtCallEnded          = "call_ended"
	EvtError              = "error"
)

// Push 服务端到客户端的推送帧
type Push struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// EncodePush 序列化推送帧，每次广播只序列化一次
func EncodePush(event string, data interface{}) []byte {
	b, err := json.Marshal(Push{Event: event, Data: data})
	if err != nil {
		log.Error("推送帧序列化失败", "event", event, "err", err)
		return nil
	}
	return b
}

// EventSink 领域事件出口（Kafka），为 nil 时静默跳过
type EventSink interface {
	Publish(eventType, roomKey string, actorID uint64, payload interface{})
}
