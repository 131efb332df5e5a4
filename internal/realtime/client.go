package realtime

import (
	log "log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

// Client 一条已鉴权的长连接。一个用户可同时持有多条（多端登录）。
type Client struct {
	ID     string
	UserID uint64

	conn *websocket.Conn
	send chan []byte

	closeOnce sync.Once
	closed    chan struct{}
}

func NewClient(userID uint64, conn *websocket.Conn, sendBuffer int) *Client {
	return &Client{
		ID:     uuid.New().String(),
		UserID: userID,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		closed: make(chan struct{}),
	}
}

// Send 入队一条出站推送。缓冲写满说明消费过慢，直接断开该连接，
// 避免一个慢消费者拖住整个房间的扇出。
func (c *Client) Send(payload []byte) {
	if payload == nil {
		return
	}
	select {
	case <-c.closed:
		return
	default:
	}
	select {
	case c.send <- payload:
	default:
		log.Warn("连接出站缓冲已满，断开慢消费者", "userID", c.UserID, "connID", c.ID)
		c.Close()
	}
}

// Close 幂等关闭，读写循环随之退出
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}

// Closed 供读循环监听关闭信号
func (c *Client) Closed() <-chan struct{} {
	return c.closed
}

// WritePump 独占写循环：推送出站帧并维持心跳
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.closed:
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Warn("WS 推送失败", "userID", c.UserID, "err", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
