package realtime

import (
	"context"
	"sync"
	"testing"

	"github.com/goccy/go-json"
)

type recordingMirror struct {
	mu      sync.Mutex
	online  []uint64
	offline []uint64
}

func (m *recordingMirror) SetOnline(_ context.Context, userID uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.online = append(m.online, userID)
}

func (m *recordingMirror) SetOffline(_ context.Context, userID uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offline = append(m.offline, userID)
}

func decodeSnapshot(t *testing.T, data json.RawMessage) []uint64 {
	t.Helper()
	var snap struct {
		Online []uint64 `json:"online"`
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		t.Fatalf("快照解码失败: %v", err)
	}
	return snap.Online
}

func TestRegistryFirstConnectionBroadcastsOnce(t *testing.T) {
	reg := NewRegistry(nil)
	c1 := testClient(1)
	reg.Connect(c1)

	// 首条连接：上线者自己也收到全量快照
	ev, data := recvPush(t, c1)
	if ev != EvtPresenceChanged {
		t.Fatalf("event = %s, want %s", ev, EvtPresenceChanged)
	}
	if online := decodeSnapshot(t, data); len(online) != 1 || online[0] != 1 {
		t.Fatalf("快照 = %v, want [1]", online)
	}

	// 同一用户的第二条连接不触发广播
	c2 := testClient(1)
	reg.Connect(c2)
	assertNoPush(t, c1)
	assertNoPush(t, c2)
}

func TestRegistryLastDisconnectBroadcastsOnce(t *testing.T) {
	reg := NewRegistry(nil)
	a1, a2, b := testClient(1), testClient(1), testClient(2)
	reg.Connect(a1)
	reg.Connect(a2)
	reg.Connect(b)
	drain(a1)
	drain(a2)
	drain(b)

	// 双端用户掉一条连接仍在线，不广播
	if wentOffline := reg.Disconnect(a1); wentOffline {
		t.Fatal("还有存活连接，不应判定下线")
	}
	assertNoPush(t, b)

	// 最后一条连接移除才广播下线
	if wentOffline := reg.Disconnect(a2); !wentOffline {
		t.Fatal("最后一条连接移除应判定下线")
	}
	ev, data := recvPush(t, b)
	if ev != EvtPresenceChanged {
		t.Fatalf("event = %s, want %s", ev, EvtPresenceChanged)
	}
	if online := decodeSnapshot(t, data); len(online) != 1 || online[0] != 2 {
		t.Fatalf("快照 = %v, want [2]", online)
	}
}

func TestRegistryUnknownDisconnectIsSilent(t *testing.T) {
	reg := NewRegistry(nil)
	b := testClient(2)
	reg.Connect(b)
	drain(b)

	if reg.Disconnect(testClient(1)) {
		t.Fatal("未登记的连接注销不应判定下线")
	}
	assertNoPush(t, b)
}

func TestRegistryMirrorTracksTransitions(t *testing.T) {
	mirror := &recordingMirror{}
	reg := NewRegistry(mirror)
	c1, c2 := testClient(1), testClient(1)

	reg.Connect(c1)
	reg.Connect(c2) // 不是 0→1，不写镜像
	reg.Disconnect(c1)
	reg.Disconnect(c2)

	if len(mirror.online) != 1 || mirror.online[0] != 1 {
		t.Errorf("镜像上线记录 = %v, want [1]", mirror.online)
	}
	if len(mirror.offline) != 1 || mirror.offline[0] != 1 {
		t.Errorf("镜像下线记录 = %v, want [1]", mirror.offline)
	}
}

func TestRegistryOnlineUsersSorted(t *testing.T) {
	reg := NewRegistry(nil)
	for _, uid := range []uint64{5, 1, 3} {
		reg.Connect(testClient(uid))
	}
	got := reg.OnlineUsers()
	want := []uint64{1, 3, 5}
	if len(got) != len(want) {
		t.Fatalf("在线用户 = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("在线用户 = %v, want %v", got, want)
		}
	}
}

func TestRegistrySnapshotsArriveInStateOrder(t *testing.T) {
	reg := NewRegistry(nil)
	observer := testClient(100)
	reg.Connect(observer)
	drain(observer)

	// 并发上线制造密集的相邻状态变更，
	// 观察者队列里的末帧快照必须等于最终在线集合
	var wg sync.WaitGroup
	for uid := uint64(1); uid <= 8; uid++ {
		wg.Add(1)
		go func(uid uint64) {
			defer wg.Done()
			reg.Connect(testClient(uid))
		}(uid)
	}
	wg.Wait()

	var last []uint64
	for {
		var raw []byte
		select {
		case raw = <-observer.send:
		default:
			raw = nil
		}
		if raw == nil {
			break
		}
		var p struct {
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(raw, &p); err != nil {
			t.Fatalf("推送帧解码失败: %v", err)
		}
		if p.Event == EvtPresenceChanged {
			last = decodeSnapshot(t, p.Data)
		}
	}

	want := reg.OnlineUsers()
	if len(last) != len(want) {
		t.Fatalf("末帧快照 = %v, want %v", last, want)
	}
	for i := range want {
		if last[i] != want[i] {
			t.Fatalf("末帧快照 = %v, want %v", last, want)
		}
	}
}

func drain(c *Client) {
	for {
		select {
		case <-c.send:
		default:
			return
		}
	}
}
