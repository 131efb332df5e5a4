package realtime

import (
	"sync"
)

// room 单个扇出点。持有自己的互斥量，
// 同一房间的广播彼此串行以保持投递顺序，不同房间互不影响。
type room struct {
	mu      sync.Mutex
	members map[*Client]struct{}
}

// Hub 房间路由：维护连接与房间的订阅关系。
// 房间没有独立的创建步骤，首次 Join 时隐式出现，订阅数归零即视为消失。
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]*room
	joined map[*Client]map[string]struct{}
}

func NewHub() *Hub {
	return &Hub{
		rooms:  make(map[string]*room),
		joined: make(map[*Client]map[string]struct{}),
	}
}

// Join 订阅房间，重复加入为无操作
func (h *Hub) Join(c *Client, roomKey string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	r, ok := h.rooms[roomKey]
	if !ok {
		r = &room{members: make(map[*Client]struct{})}
		h.rooms[roomKey] = r
	}
	r.mu.Lock()
	r.members[c] = struct{}{}
	r.mu.Unlock()

	if h.joined[c] == nil {
		h.joined[c] = make(map[string]struct{})
	}
	h.joined[c][roomKey] = struct{}{}
}

// Leave 退订房间，未订阅时为无操作
func (h *Hub) Leave(c *Client, roomKey string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(c, roomKey)
}

// LeaveAll 断连时退订所有房间，返回退出的房间键
func (h *Hub) LeaveAll(c *Client) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	keys := make([]string, 0, len(h.joined[c]))
	for roomKey := range h.joined[c] {
		keys = append(keys, roomKey)
	}
	for _, roomKey := range keys {
		h.leaveLocked(c, roomKey)
	}
	delete(h.joined, c)
	return keys
}

func (h *Hub) leaveLocked(c *Client, roomKey string) {
	if r, ok := h.rooms[roomKey]; ok {
		r.mu.Lock()
		delete(r.members, c)
		empty := len(r.members) == 0
		r.mu.Unlock()
		if empty {
			delete(h.rooms, roomKey)
		}
	}
	if set, ok := h.joined[c]; ok {
		delete(set, roomKey)
	}
}

// Subscribers 当前房间的所有订阅连接
func (h *Hub) Subscribers(roomKey string) []*Client {
	h.mu.RLock()
	r, ok := h.rooms[roomKey]
	h.mu.RUnlock()
	if !ok {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Client, 0, len(r.members))
	for c := range r.members {
		out = append(out, c)
	}
	return out
}

// SubscriberUsers 订阅该房间的去重用户集合
func (h *Hub) SubscriberUsers(roomKey string) map[uint64]struct{} {
	users := make(map[uint64]struct{})
	for _, c := range h.Subscribers(roomKey) {
		users[c.UserID] = struct{}{}
	}
	return users
}

// BroadcastRoom 向房间全体订阅者扇出一帧。
// exceptUser 非零时跳过该用户的所有连接（如输入指示不回显给发送者）。
// 入队在房间锁内逐连接完成，每个连接的队列是 FIFO，因此
// 同一房间的多次广播在所有订阅者处保持同一相对顺序。
func (h *Hub) BroadcastRoom(roomKey string, payload []byte, exceptUser uint64) {
	if payload == nil {
		return
	}
	h.mu.RLock()
	r, ok := h.rooms[roomKey]
	h.mu.RUnlock()
	if !ok {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for c := range r.members {
		if exceptUser != 0 && c.UserID == exceptUser {
			continue
		}
		c.Send(payload)
	}
}
