package service

import (
	"Atrium/internal/api/dto"
	"Atrium/internal/model"
	"Atrium/internal/pkg/consts"
	"Atrium/internal/pkg/logger"
	"Atrium/internal/pkg/mongo"
	"Atrium/internal/realtime"
	"Atrium/internal/repository"
	"context"
	"errors"
	"strconv"
	"testing"
)

// 内存假仓库，行为对齐真实现的幂等语义

type fakeMsgRepo struct {
	messages   map[string]*mongo.Message
	nextID     int
	savedTrace string
}

func newFakeMsgRepo() *fakeMsgRepo {
	return &fakeMsgRepo{messages: make(map[string]*mongo.Message)}
}

func (f *fakeMsgRepo) SaveMessage(ctx context.Context, msg *mongo.Message) error {
	if traceID, ok := ctx.Value(logger.TraceIDKey).(string); ok {
		f.savedTrace = traceID
	}
	f.nextID++
	msg.ID = "m" + strconv.Itoa(f.nextID)
	f.messages[msg.ID] = msg
	return nil
}

func (f *fakeMsgRepo) GetMessage(_ context.Context, id string) (*mongo.Message, error) {
	msg, ok := f.messages[id]
	if !ok {
		return nil, mongo.ErrNotFound
	}
	return msg, nil
}

func (f *fakeMsgRepo) GetHistory(_ context.Context, roomKey string, lastSeq uint64, pageSize int) ([]*mongo.Message, error) {
	var out []*mongo.Message
	for _, msg := range f.messages {
		if msg.RoomKey != roomKey {
			continue
		}
		if lastSeq > 0 && msg.Seq >= lastSeq {
			continue
		}
		out = append(out, msg)
		if len(out) == pageSize {
			break
		}
	}
	return out, nil
}

func (f *fakeMsgRepo) MarkRead(_ context.Context, roomKey string, userID uint64) (int64, error) {
	var n int64
	for _, msg := range f.messages {
		if msg.RoomKey != roomKey {
			continue
		}
		already := false
		for _, uid := range msg.ReadBy {
			if uid == userID {
				already = true
				break
			}
		}
		if !already {
			msg.ReadBy = append(msg.ReadBy, userID)
			n++
		}
	}
	return n, nil
}

func (f *fakeMsgRepo) HideForUser(_ context.Context, id string, userID uint64) error {
	msg, ok := f.messages[id]
	if !ok {
		return mongo.ErrNotFound
	}
	for _, uid := range msg.DeletedFor {
		if uid == userID {
			return nil
		}
	}
	msg.DeletedFor = append(msg.DeletedFor, userID)
	return nil
}

func (f *fakeMsgRepo) Tombstone(_ context.Context, id string, placeholder string) error {
	msg, ok := f.messages[id]
	if !ok {
		return mongo.ErrNotFound
	}
	msg.Deleted = true
	msg.Content = placeholder
	msg.Attachments = nil
	return nil
}

type fakeGroupRepo struct {
	groups  map[uint64]*model.Group
	members map[uint64][]uint64
}

func newFakeGroupRepo() *fakeGroupRepo {
	return &fakeGroupRepo{
		groups:  make(map[uint64]*model.Group),
		members: make(map[uint64][]uint64),
	}
}

func (f *fakeGroupRepo) addGroup(id uint64, adminID uint64, memberIDs ...uint64) {
	f.groups[id] = &model.Group{ID: id, Name: "g" + strconv.FormatUint(id, 10), AdminID: adminID}
	f.members[id] = memberIDs
}

func (f *fakeGroupRepo) CreateGroup(_ context.Context, group *model.Group, memberIDs []uint64) error {
	group.ID = uint64(len(f.groups) + 1)
	f.groups[group.ID] = group
	f.members[group.ID] = append([]uint64{group.AdminID}, memberIDs...)
	return nil
}

func (f *fakeGroupRepo) GetGroup(_ context.Context, groupID uint64) (*model.Group, error) {
	group, ok := f.groups[groupID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return group, nil
}

func (f *fakeGroupRepo) IsMember(_ context.Context, groupID, userID uint64) (bool, error) {
	for _, uid := range f.members[groupID] {
		if uid == userID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeGroupRepo) AddMember(_ context.Context, groupID, userID uint64) error {
	f.members[groupID] = append(f.members[groupID], userID)
	return nil
}

func (f *fakeGroupRepo) RemoveMember(_ context.Context, groupID, userID uint64) error {
	out := f.members[groupID][:0]
	for _, uid := range f.members[groupID] {
		if uid != userID {
			out = append(out, uid)
		}
	}
	f.members[groupID] = out
	return nil
}

func (f *fakeGroupRepo) MemberIDs(_ context.Context, groupID uint64) ([]uint64, error) {
	return f.members[groupID], nil
}

func (f *fakeGroupRepo) GetUserGroups(_ context.Context, userID uint64) ([]*model.Group, error) {
	var out []*model.Group
	for id, group := range f.groups {
		for _, uid := range f.members[id] {
			if uid == userID {
				out = append(out, group)
				break
			}
		}
	}
	return out, nil
}

type fakeCounter struct {
	seqs   map[string]uint64
	unread map[uint64]map[string]uint64
}

func newFakeCounter() *fakeCounter {
	return &fakeCounter{
		seqs:   make(map[string]uint64),
		unread: make(map[uint64]map[string]uint64),
	}
}

func (f *fakeCounter) NextSeq(_ context.Context, roomKey string) (uint64, error) {
	f.seqs[roomKey]++
	return f.seqs[roomKey], nil
}

func (f *fakeCounter) IncrUnread(_ context.Context, userID uint64, roomKey string) error {
	if f.unread[userID] == nil {
		f.unread[userID] = make(map[string]uint64)
	}
	f.unread[userID][roomKey]++
	return nil
}

func (f *fakeCounter) ClearUnread(_ context.Context, userID uint64, roomKey string) error {
	delete(f.unread[userID], roomKey)
	return nil
}

func (f *fakeCounter) UnreadByRoom(_ context.Context, userID uint64) (map[string]uint64, error) {
	out := make(map[string]uint64, len(f.unread[userID]))
	for roomKey, n := range f.unread[userID] {
		out[roomKey] = n
	}
	return out, nil
}

type chatEnv struct {
	svc      ChatService
	msgs     *fakeMsgRepo
	groups   *fakeGroupRepo
	counters *fakeCounter
}

func newChatEnv() *chatEnv {
	msgs := newFakeMsgRepo()
	groups := newFakeGroupRepo()
	counters := newFakeCounter()
	hub := realtime.NewHub()
	presence := realtime.NewRegistry(nil)
	return &chatEnv{
		svc:      NewChatService(msgs, groups, counters, hub, presence, nil),
		msgs:     msgs,
		groups:   groups,
		counters: counters,
	}
}

func TestSendMessageDirect(t *testing.T) {
	env := newChatEnv()
	ctx := context.Background()

	res, err := env.svc.SendMessage(ctx, 3, &dto.SendMessageReq{
		RoomKey: "dm_3_7", Content: "hello",
	})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if res.Seq != 1 || res.SenderID != 3 || res.MsgType != consts.MsgTypeText {
		t.Fatalf("res = %+v", res)
	}
	if len(res.ReadBy) != 0 {
		t.Fatalf("发送者不预置已读, ReadBy = %v", res.ReadBy)
	}

	// 未读只记给对方
	if env.counters.unread[7]["dm_3_7"] != 1 {
		t.Errorf("对方未读 = %d, want 1", env.counters.unread[7]["dm_3_7"])
	}
	if env.counters.unread[3]["dm_3_7"] != 0 {
		t.Errorf("发送者未读 = %d, want 0", env.counters.unread[3]["dm_3_7"])
	}

	// 同房间序号单调递增
	res2, _ := env.svc.SendMessage(ctx, 7, &dto.SendMessageReq{RoomKey: "dm_3_7", Content: "hi"})
	if res2.Seq != 2 {
		t.Errorf("seq = %d, want 2", res2.Seq)
	}
}

func TestSendMessageKeepsContextValuesInWrites(t *testing.T) {
	env := newChatEnv()
	ctx := context.WithValue(context.Background(), logger.TraceIDKey, "t-42")

	if _, err := env.svc.SendMessage(ctx, 3, &dto.SendMessageReq{
		RoomKey: "dm_3_7", Content: "hello",
	}); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	// 落库带独立超时，但 trace_id 必须随请求上下文透传到存储层
	if env.msgs.savedTrace != "t-42" {
		t.Fatalf("trace = %q, want t-42", env.msgs.savedTrace)
	}
}

func TestSendMessageValidation(t *testing.T) {
	env := newChatEnv()
	env.groups.addGroup(1, 3, 3, 7)
	ctx := context.Background()

	tests := []struct {
		name    string
		sender  uint64
		req     *dto.SendMessageReq
		wantErr error
	}{
		{"空消息", 3, &dto.SendMessageReq{RoomKey: "dm_3_7"}, ErrEmptyMessage},
		{"坏房间键", 3, &dto.SendMessageReq{RoomKey: "oops", Content: "x"}, ErrBadRoomKey},
		{"未排序的单聊键", 3, &dto.SendMessageReq{RoomKey: "dm_7_3", Content: "x"}, ErrBadRoomKey},
		{"非当事人的单聊", 9, &dto.SendMessageReq{RoomKey: "dm_3_7", Content: "x"}, UnauthorizedError},
		{"非群成员", 9, &dto.SendMessageReq{RoomKey: "grp_1", Content: "x"}, ErrNotGroupMember},
		{"未知消息类型", 3, &dto.SendMessageReq{RoomKey: "dm_3_7", MsgType: 9, Content: "x"}, ErrParamInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := env.svc.SendMessage(ctx, tt.sender, tt.req); !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSendMessageAttachmentOnly(t *testing.T) {
	env := newChatEnv()
	res, err := env.svc.SendMessage(context.Background(), 3, &dto.SendMessageReq{
		RoomKey: "dm_3_7",
		MsgType: consts.MsgTypeImage,
		Attachments: []dto.AttachmentDTO{
			{URL: "https://cdn/x.png", MimeType: "image/png", Size: 1024},
		},
	})
	if err != nil {
		t.Fatalf("仅附件的消息应合法: %v", err)
	}
	if len(res.Attachments) != 1 || res.Attachments[0].URL != "https://cdn/x.png" {
		t.Fatalf("附件 = %+v", res.Attachments)
	}
}

func TestSendMessageGroupFanoutAccounting(t *testing.T) {
	env := newChatEnv()
	env.groups.addGroup(1, 3, 3, 7, 9)
	ctx := context.Background()

	if _, err := env.svc.SendMessage(ctx, 3, &dto.SendMessageReq{RoomKey: "grp_1", Content: "x"}); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	for _, uid := range []uint64{7, 9} {
		if env.counters.unread[uid]["grp_1"] != 1 {
			t.Errorf("成员 %d 未读 = %d, want 1", uid, env.counters.unread[uid]["grp_1"])
		}
	}
	if env.counters.unread[3]["grp_1"] != 0 {
		t.Errorf("发送者未读 = %d, want 0", env.counters.unread[3]["grp_1"])
	}
}

func TestMarkReadIdempotent(t *testing.T) {
	env := newChatEnv()
	ctx := context.Background()
	res, _ := env.svc.SendMessage(ctx, 3, &dto.SendMessageReq{RoomKey: "dm_3_7", Content: "x"})

	if err := env.svc.MarkRead(ctx, 7, "dm_3_7"); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	msg := env.msgs.messages[res.ID]
	if len(msg.ReadBy) != 1 || msg.ReadBy[0] != 7 {
		t.Fatalf("ReadBy = %v, want [7]", msg.ReadBy)
	}
	if len(env.counters.unread[7]) != 0 {
		t.Fatalf("未读应清零: %v", env.counters.unread[7])
	}

	// 重放不报错不重复登记
	if err := env.svc.MarkRead(ctx, 7, "dm_3_7"); err != nil {
		t.Fatalf("重复 MarkRead: %v", err)
	}
	if len(msg.ReadBy) != 1 {
		t.Fatalf("重放后 ReadBy = %v", msg.ReadBy)
	}
}

func TestDeleteMessageForEveryone(t *testing.T) {
	env := newChatEnv()
	ctx := context.Background()
	res, _ := env.svc.SendMessage(ctx, 3, &dto.SendMessageReq{RoomKey: "dm_3_7", Content: "secret"})

	// 非发送者不能对所有人撤回
	err := env.svc.DeleteMessage(ctx, 7, &dto.DeleteMessageReq{MessageID: res.ID, Mode: consts.DeleteModeEveryone})
	if !errors.Is(err, ErrNotSender) {
		t.Fatalf("err = %v, want ErrNotSender", err)
	}

	if err = env.svc.DeleteMessage(ctx, 3, &dto.DeleteMessageReq{MessageID: res.ID, Mode: consts.DeleteModeEveryone}); err != nil {
		t.Fatalf("DeleteMessage: %v", err)
	}
	msg := env.msgs.messages[res.ID]
	if !msg.Deleted || msg.Content != consts.TombstoneContent || msg.Attachments != nil {
		t.Fatalf("墓碑状态 = %+v", msg)
	}

	// 对已撤回消息重放是无操作
	if err = env.svc.DeleteMessage(ctx, 3, &dto.DeleteMessageReq{MessageID: res.ID, Mode: consts.DeleteModeEveryone}); err != nil {
		t.Fatalf("重复撤回应为无操作: %v", err)
	}
}

func TestDeleteMessageForMe(t *testing.T) {
	env := newChatEnv()
	ctx := context.Background()
	res, _ := env.svc.SendMessage(ctx, 3, &dto.SendMessageReq{RoomKey: "dm_3_7", Content: "x"})

	// 任一成员都可以只对自己删除
	if err := env.svc.DeleteMessage(ctx, 7, &dto.DeleteMessageReq{MessageID: res.ID, Mode: consts.DeleteModeMe}); err != nil {
		t.Fatalf("DeleteMessage: %v", err)
	}

	// 请求者的历史不再出现该消息，对方不受影响
	mine, _ := env.svc.GetHistory(ctx, 7, "dm_3_7", 0, 20)
	if len(mine) != 0 {
		t.Fatalf("本人视图应为空: %v", mine)
	}
	theirs, _ := env.svc.GetHistory(ctx, 3, "dm_3_7", 0, 20)
	if len(theirs) != 1 {
		t.Fatalf("对方视图 = %v, want 1 条", theirs)
	}
}

func TestDeleteMessageErrors(t *testing.T) {
	env := newChatEnv()
	ctx := context.Background()

	err := env.svc.DeleteMessage(ctx, 3, &dto.DeleteMessageReq{MessageID: "missing", Mode: consts.DeleteModeMe})
	if !errors.Is(err, ErrMessageNotFound) {
		t.Fatalf("err = %v, want ErrMessageNotFound", err)
	}

	res, _ := env.svc.SendMessage(ctx, 3, &dto.SendMessageReq{RoomKey: "dm_3_7", Content: "x"})
	err = env.svc.DeleteMessage(ctx, 3, &dto.DeleteMessageReq{MessageID: res.ID, Mode: "both"})
	if !errors.Is(err, ErrParamInvalid) {
		t.Fatalf("err = %v, want ErrParamInvalid", err)
	}
}

func TestGetHistoryShowsTombstone(t *testing.T) {
	env := newChatEnv()
	ctx := context.Background()
	res, _ := env.svc.SendMessage(ctx, 3, &dto.SendMessageReq{RoomKey: "dm_3_7", Content: "secret"})
	_ = env.svc.DeleteMessage(ctx, 3, &dto.DeleteMessageReq{MessageID: res.ID, Mode: consts.DeleteModeEveryone})

	// 撤回后所有成员（含晚拉取历史的端）看到的是墓碑而不是原文
	history, err := env.svc.GetHistory(ctx, 7, "dm_3_7", 0, 20)
	if err != nil {
		t.Fatalf("GetHistory: %v", err)
	}
	if len(history) != 1 || !history[0].Deleted || history[0].Content != consts.TombstoneContent {
		t.Fatalf("history = %+v", history)
	}
}

func TestGetConversations(t *testing.T) {
	env := newChatEnv()
	env.groups.addGroup(1, 3, 3, 7)
	ctx := context.Background()

	// 群聊一条、单聊一条，都未读
	if _, err := env.svc.SendMessage(ctx, 3, &dto.SendMessageReq{RoomKey: "grp_1", Content: "x"}); err != nil {
		t.Fatal(err)
	}
	if _, err := env.svc.SendMessage(ctx, 9, &dto.SendMessageReq{RoomKey: "dm_7_9", Content: "y"}); err != nil {
		t.Fatal(err)
	}

	list, err := env.svc.GetConversations(ctx, 7)
	if err != nil {
		t.Fatalf("GetConversations: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("会话数 = %d, want 2", len(list))
	}
	byKey := make(map[string]*dto.ConversationDTO, len(list))
	for _, conv := range list {
		byKey[conv.RoomKey] = conv
	}
	if conv := byKey["grp_1"]; conv == nil || !conv.IsGroup || conv.UnreadCount != 1 {
		t.Fatalf("群会话 = %+v", conv)
	}
	if conv := byKey["dm_7_9"]; conv == nil || conv.IsGroup || conv.PeerID != 9 || conv.UnreadCount != 1 {
		t.Fatalf("单聊会话 = %+v", conv)
	}
}

func TestCheckAccess(t *testing.T) {
	env := newChatEnv()
	env.groups.addGroup(1, 3, 3, 7)
	ctx := context.Background()

	if err := env.svc.CheckAccess(ctx, 3, "dm_3_7"); err != nil {
		t.Errorf("当事人访问单聊: %v", err)
	}
	if err := env.svc.CheckAccess(ctx, 9, "dm_3_7"); !errors.Is(err, UnauthorizedError) {
		t.Errorf("err = %v, want UnauthorizedError", err)
	}
	if err := env.svc.CheckAccess(ctx, 7, "grp_1"); err != nil {
		t.Errorf("群成员访问: %v", err)
	}
	if err := env.svc.CheckAccess(ctx, 9, "grp_1"); !errors.Is(err, ErrNotGroupMember) {
		t.Errorf("err = %v, want ErrNotGroupMember", err)
	}
	if err := env.svc.CheckAccess(ctx, 3, "nope"); !errors.Is(err, ErrBadRoomKey) {
		t.Errorf("err = %v, want ErrBadRoomKey", err)
	}
}
