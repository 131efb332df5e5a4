package realtime

import (
	"testing"

	"github.com/goccy/go-json"
)

// testClient 构造一条不绑定真实连接的客户端，直接从发送队列读推送
func testClient(userID uint64) *Client {
	return NewClient(userID, nil, 16)
}

// recvPush 非阻塞取出下一帧推送并解码
func recvPush(t *testing.T, c *Client) (string, json.RawMessage) {
	t.Helper()
	select {
	case raw := <-c.send:
		var p struct {
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(raw, &p); err != nil {
			t.Fatalf("推送帧解码失败: %v", err)
		}
		return p.Event, p.Data
	default:
		t.Fatal("发送队列为空，期望有一帧推送")
		return "", nil
	}
}

func assertNoPush(t *testing.T, c *Client) {
	t.Helper()
	select {
	case raw := <-c.send:
		t.Fatalf("不应收到推送: %s", raw)
	default:
	}
}

func TestHubBroadcastReachesSubscribers(t *testing.T) {
	h := NewHub()
	a, b, outsider := testClient(1), testClient(2), testClient(3)
	h.Join(a, "grp_1")
	h.Join(b, "grp_1")
	h.Join(outsider, "grp_2")

	h.BroadcastRoom("grp_1", EncodePush(EvtTyping, "x"), 0)

	if ev, _ := recvPush(t, a); ev != EvtTyping {
		t.Errorf("event = %s, want %s", ev, EvtTyping)
	}
	recvPush(t, b)
	assertNoPush(t, outsider)
}

func TestHubBroadcastExceptUser(t *testing.T) {
	h := NewHub()
	sender, other := testClient(1), testClient(2)
	h.Join(sender, "grp_1")
	h.Join(other, "grp_1")

	h.BroadcastRoom("grp_1", EncodePush(EvtTyping, "x"), 1)

	assertNoPush(t, sender)
	recvPush(t, other)
}

func TestHubLeaveStopsDelivery(t *testing.T) {
	h := NewHub()
	c := testClient(1)
	h.Join(c, "grp_1")
	h.Leave(c, "grp_1")

	h.BroadcastRoom("grp_1", EncodePush(EvtTyping, "x"), 0)
	assertNoPush(t, c)
}

func TestHubLeaveAll(t *testing.T) {
	h := NewHub()
	c := testClient(1)
	h.Join(c, "grp_1")
	h.Join(c, "dm_1_2")

	keys := h.LeaveAll(c)
	if len(keys) != 2 {
		t.Fatalf("LeaveAll 返回 %d 个房间, want 2", len(keys))
	}
	if len(h.Subscribers("grp_1")) != 0 || len(h.Subscribers("dm_1_2")) != 0 {
		t.Error("退订后房间不应再有订阅者")
	}
}

func TestHubDuplicateJoinIsNoop(t *testing.T) {
	h := NewHub()
	c := testClient(1)
	h.Join(c, "grp_1")
	h.Join(c, "grp_1")

	if n := len(h.Subscribers("grp_1")); n != 1 {
		t.Fatalf("订阅数 = %d, want 1", n)
	}
	h.BroadcastRoom("grp_1", EncodePush(EvtTyping, "x"), 0)
	recvPush(t, c)
	assertNoPush(t, c)
}

func TestHubSubscriberUsersDeduplicates(t *testing.T) {
	h := NewHub()
	// 同一用户两条连接（双端登录）
	h.Join(testClient(1), "grp_1")
	h.Join(testClient(1), "grp_1")
	h.Join(testClient(2), "grp_1")

	users := h.SubscriberUsers("grp_1")
	if len(users) != 2 {
		t.Fatalf("去重用户数 = %d, want 2", len(users))
	}
}

func TestClientSlowConsumerIsClosed(t *testing.T) {
	c := NewClient(1, nil, 1)
	c.Send([]byte("a"))
	// 缓冲已满，再入队触发慢消费者断开
	c.Send([]byte("b"))

	select {
	case <-c.Closed():
	default:
		t.Fatal("缓冲溢出后连接应被关闭")
	}
}

func TestClientSendAfterCloseIsNoop(t *testing.T) {
	c := testClient(1)
	c.Close()
	c.Close() // 幂等
	c.Send([]byte("x"))

	select {
	case raw := <-c.send:
		t.Fatalf("关闭后不应入队: %s", raw)
	default:
	}
}
