package kafka

import (
	"Atrium/internal/api/config"
	log "log/slog"
	"time"

	"github.com/IBM/sarama"
	"github.com/goccy/go-json"
)

// Event 发往下游（通知、动态、审计）的领域事件
type Event struct {
	Type      string      `json:"type"`
	RoomKey   string      `json:"room_key"`
	ActorID   uint64      `json:"actor_id"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// 事件类型
const (
	EventMessageSent    = "message.sent"
	EventMessageDeleted = "message.deleted"
	EventCallStarted    = "call.started"
	EventCallEnded      = "call.ended"
)

// EventProducer 异步生产者封装，发送失败只记录不阻塞业务
type EventProducer struct {
	producer sarama.AsyncProducer
	topic    string
}

func NewEventProducer(cfg config.KafkaConfig) (*EventProducer, error) {
	p, err := sarama.NewAsyncProducer(cfg.Brokers, newSaramaConfig(cfg))
	if err != nil {
		return nil, err
	}

	ep := &EventProducer{producer: p, topic: cfg.EventsTopic}

	go func() {
		for err := range p.Errors() {
			log.Error("Kafka 事件发送失败", "topic", err.Msg.Topic, "err", err.Err)
		}
	}()

	return ep, nil
}

// Publish 以 roomKey 作为分区键，同房间事件保持有序
func (s *EventProducer) Publish(eventType, roomKey string, actorID uint64, payload interface{}) {
	ev := Event{
		Type:      eventType,
		RoomKey:   roomKey,
		ActorID:   actorID,
		Payload:   payload,
		Timestamp: time.Now(),
	}
	data, err := json.Marshal(ev)
	if err != nil {
		log.Error("Kafka 事件序列化失败", "type", eventType, "err", err)
		return
	}

	s.producer.Input() <- &sarama.ProducerMessage{
		Topic: s.topic,
		Key:   sarama.StringEncoder(roomKey),
		Value: sarama.ByteEncoder(data),
	}
}

func (s *EventProducer) Close() error {
	return s.producer.Close()
}
