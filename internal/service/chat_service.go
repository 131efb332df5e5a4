package service

import (
	"Atrium/internal/api/dto"
	"Atrium/internal/pkg/consts"
	"Atrium/internal/pkg/kafka"
	"Atrium/internal/pkg/mongo"
	"Atrium/internal/realtime"
	"Atrium/internal/repository"
	"context"
	"errors"
	log "log/slog"
	"sync"
	"time"
)

// ChatService 消息投递管道：落库、扇出、未读记账
type ChatService interface {
	SendMessage(ctx context.Context, senderID uint64, req *dto.SendMessageReq) (*dto.MessageDTO, error)
	MarkRead(ctx context.Context, userID uint64, roomKey string) error
	DeleteMessage(ctx context.Context, requesterID uint64, req *dto.DeleteMessageReq) error
	GetHistory(ctx context.Context, userID uint64, roomKey string, lastSeq uint64, pageSize int) ([]*dto.MessageDTO, error)
	GetConversations(ctx context.Context, userID uint64) ([]*dto.ConversationDTO, error)
	// CheckAccess 校验用户对房间的进入资格（join_room 与呼叫入口复用）
	CheckAccess(ctx context.Context, userID uint64, roomKey string) error
}

type chatServiceImpl struct {
	msgRepo   mongo.MessageRepo
	groupRepo repository.GroupRepo
	counters  repository.CounterRepo
	hub       *realtime.Hub
	presence  *realtime.Registry
	events    realtime.EventSink

	// 每个房间一把发送锁：定序、落库、扇出在锁内串行，
	// 保证同房间消息在所有订阅者处按持久化顺序送达。
	// 绝不是一把全局锁，不相关房间互不拖累。
	roomLocks sync.Map
}

func NewChatService(
	msgRepo mongo.MessageRepo,
	groupRepo repository.GroupRepo,
	counters repository.CounterRepo,
	hub *realtime.Hub,
	presence *realtime.Registry,
	events realtime.EventSink,
) ChatService {
	return &chatServiceImpl{
		msgRepo:   msgRepo,
		groupRepo: groupRepo,
		counters:  counters,
		hub:       hub,
		presence:  presence,
		events:    events,
	}
}

func (s *chatServiceImpl) roomLock(roomKey string) *sync.Mutex {
	v, _ := s.roomLocks.LoadOrStore(roomKey, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// checkMembership 单聊房间成员由键本身派生，群聊房间查成员表
func (s *chatServiceImpl) checkMembership(ctx context.Context, userID uint64, roomKey string) ([]uint64, error) {
	if a, b, ok := realtime.ParseDirectRoom(roomKey); ok {
		if userID != a && userID != b {
			return nil, UnauthorizedError
		}
		return []uint64{a, b}, nil
	}
	if groupID, ok := realtime.ParseGroupRoom(roomKey); ok {
		isMember, err := s.groupRepo.IsMember(ctx, groupID, userID)
		if err != nil {
			return nil, err
		}
		if !isMember {
			return nil, ErrNotGroupMember
		}
		return s.groupRepo.MemberIDs(ctx, groupID)
	}
	return nil, ErrBadRoomKey
}

func (s *chatServiceImpl) CheckAccess(ctx context.Context, userID uint64, roomKey string) error {
	_, err := s.checkMembership(ctx, userID, roomKey)
	return err
}

// SendMessage 发送消息
func (s *chatServiceImpl) SendMessage(ctx context.Context, senderID uint64, req *dto.SendMessageReq) (*dto.MessageDTO, error) {
	memberIDs, err := s.checkMembership(ctx, senderID, req.RoomKey)
	if err != nil {
		return nil, err
	}

	if req.Content == "" && len(req.Attachments) == 0 {
		return nil, ErrEmptyMessage
	}
	msgType := req.MsgType
	if msgType == 0 {
		msgType = consts.MsgTypeText
	}
	if msgType != consts.MsgTypeText && msgType != consts.MsgTypeImage && msgType != consts.MsgTypeFile {
		return nil, ErrParamInvalid
	}

	attachments := make([]mongo.Attachment, 0, len(req.Attachments))
	for _, a := range req.Attachments {
		attachments = append(attachments, mongo.Attachment{
			URL: a.URL, MimeType: a.MimeType, Name: a.Name, Size: a.Size,
		})
	}

	lock := s.roomLock(req.RoomKey)
	lock.Lock()

	seq, err := s.counters.NextSeq(ctx, req.RoomKey)
	if err != nil {
		lock.Unlock()
		return nil, err
	}

	// 发送者不预置进 read_by：未读计数对发送者天然豁免（构造上排除）
	msgModel := &mongo.Message{
		RoomKey:     req.RoomKey,
		SenderID:    senderID,
		MsgType:     msgType,
		Content:     req.Content,
		Attachments: attachments,
		Seq:         seq,
		ReadBy:      []uint64{},
		CreatedAt:   time.Now(),
	}

	// 落库不随请求取消，但保留请求上下文里的值（trace_id 随日志链路透传）
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	err = s.msgRepo.SaveMessage(writeCtx, msgModel)
	cancel()
	if err != nil {
		lock.Unlock()
		return nil, err
	}

	// 未读记账独立于推送投递：推送可能对离线端失败，
	// 计数只由显式 mark_read 清零，不因投递成功与否变化
	for _, uid := range memberIDs {
		if uid == senderID {
			continue
		}
		if err := s.counters.IncrUnread(ctx, uid, req.RoomKey); err != nil {
			log.Warn("未读计数累加失败", "userID", uid, "roomKey", req.RoomKey, "err", err)
		}
	}

	// 扇出给房间全部订阅连接，包含发送者的其他在线端（多设备一致）
	res := toMessageDTO(msgModel)
	s.hub.BroadcastRoom(req.RoomKey, realtime.EncodePush(realtime.EvtMessageReceived, res), 0)
	lock.Unlock()

	if s.events != nil {
		s.events.Publish(kafka.EventMessageSent, req.RoomKey, senderID, map[string]any{
			"message_id": msgModel.ID, "msg_type": msgType, "seq": seq,
		})
	}
	return res, nil
}

// MarkRead 标记已读。$addToSet 与 HDEL 都幂等，重放不报错不重复计数。
func (s *chatServiceImpl) MarkRead(ctx context.Context, userID uint64, roomKey string) error {
	if _, err := s.checkMembership(ctx, userID, roomKey); err != nil {
		return err
	}

	if _, err := s.msgRepo.MarkRead(ctx, roomKey, userID); err != nil {
		return err
	}
	if err := s.counters.ClearUnread(ctx, userID, roomKey); err != nil {
		return err
	}

	// 广播已读回执，其他成员据此更新回执指示，本人其他端据此清零角标
	s.hub.BroadcastRoom(roomKey, realtime.EncodePush(realtime.EvtMessagesMarkedRead, dto.ReadReceiptDTO{
		RoomKey: roomKey, UserID: userID,
	}), 0)
	return nil
}

// DeleteMessage 删除消息。
// me：只从请求者自己的视图移除，通知范围限于其本人的其他端；
// everyone：仅发送者可用，内容替换为墓碑广播全房间，不可逆且幂等。
func (s *chatServiceImpl) DeleteMessage(ctx context.Context, requesterID uint64, req *dto.DeleteMessageReq) error {
	msg, err := s.msgRepo.GetMessage(ctx, req.MessageID)
	if errors.Is(err, mongo.ErrNotFound) {
		return ErrMessageNotFound
	}
	if err != nil {
		return err
	}
	if _, err := s.checkMembership(ctx, requesterID, msg.RoomKey); err != nil {
		return err
	}

	switch req.Mode {
	case consts.DeleteModeMe:
		if err := s.msgRepo.HideForUser(ctx, req.MessageID, requesterID); err != nil {
			return err
		}
		frame := realtime.EncodePush(realtime.EvtMessageDeleted, dto.MessageDeletedDTO{
			MessageID: req.MessageID, RoomKey: msg.RoomKey, Mode: consts.DeleteModeMe,
		})
		for _, c := range s.presence.Connections(requesterID) {
			c.Send(frame)
		}
		return nil

	case consts.DeleteModeEveryone:
		if msg.SenderID != requesterID {
			return ErrNotSender
		}
		// 对已撤回消息重放是无操作而不是错误
		if msg.Deleted {
			return nil
		}
		if err := s.msgRepo.Tombstone(ctx, req.MessageID, consts.TombstoneContent); err != nil {
			return err
		}
		s.hub.BroadcastRoom(msg.RoomKey, realtime.EncodePush(realtime.EvtMessageDeleted, dto.MessageDeletedDTO{
			MessageID: req.MessageID, RoomKey: msg.RoomKey,
			Mode: consts.DeleteModeEveryone, Content: consts.TombstoneContent,
		}), 0)
		if s.events != nil {
			s.events.Publish(kafka.EventMessageDeleted, msg.RoomKey, requesterID, map[string]any{
				"message_id": req.MessageID,
			})
		}
		return nil

	default:
		return ErrParamInvalid
	}
}

// GetHistory 拉取历史，过滤请求者本地删除的消息；
// 墓碑内容在落库时已替换，晚加入的端看到的同样是墓碑。
func (s *chatServiceImpl) GetHistory(ctx context.Context, userID uint64, roomKey string, lastSeq uint64, pageSize int) ([]*dto.MessageDTO, error) {
	if _, err := s.checkMembership(ctx, userID, roomKey); err != nil {
		return nil, err
	}

	models, err := s.msgRepo.GetHistory(ctx, roomKey, lastSeq, pageSize)
	if err != nil {
		return nil, err
	}

	res := make([]*dto.MessageDTO, 0, len(models))
	for _, m := range models {
		if hiddenFor(m, userID) {
			continue
		}
		res = append(res, toMessageDTO(m))
	}
	return res, nil
}

// GetConversations 会话列表：群组清单加上有未读记录的单聊房间
func (s *chatServiceImpl) GetConversations(ctx context.Context, userID uint64) ([]*dto.ConversationDTO, error) {
	unread, err := s.counters.UnreadByRoom(ctx, userID)
	if err != nil {
		return nil, err
	}
	groups, err := s.groupRepo.GetUserGroups(ctx, userID)
	if err != nil {
		return nil, err
	}

	res := make([]*dto.ConversationDTO, 0, len(groups)+len(unread))
	seen := make(map[string]struct{}, len(groups))
	for _, g := range groups {
		roomKey := realtime.GroupRoomKey(g.ID)
		seen[roomKey] = struct{}{}
		res = append(res, &dto.ConversationDTO{
			RoomKey: roomKey, IsGroup: true, GroupID: g.ID, GroupName: g.Name,
			UnreadCount: unread[roomKey],
		})
	}
	for roomKey, count := range unread {
		if _, ok := seen[roomKey]; ok {
			continue
		}
		a, b, ok := realtime.ParseDirectRoom(roomKey)
		if !ok {
			continue
		}
		peerID := a
		if peerID == userID {
			peerID = b
		}
		res = append(res, &dto.ConversationDTO{
			RoomKey: roomKey, PeerID: peerID, UnreadCount: count,
		})
	}
	return res, nil
}

func hiddenFor(m *mongo.Message, userID uint64) bool {
	for _, uid := range m.DeletedFor {
		if uid == userID {
			return true
		}
	}
	return false
}

func toMessageDTO(m *mongo.Message) *dto.MessageDTO {
	attachments := make([]dto.AttachmentDTO, 0, len(m.Attachments))
	for _, a := range m.Attachments {
		attachments = append(attachments, dto.AttachmentDTO{
			URL: a.URL, MimeType: a.MimeType, Name: a.Name, Size: a.Size,
		})
	}
	readBy := m.ReadBy
	if readBy == nil {
		readBy = []uint64{}
	}
	return &dto.MessageDTO{
		ID: m.ID, RoomKey: m.RoomKey, SenderID: m.SenderID,
		MsgType: m.MsgType, Content: m.Content, Attachments: attachments,
		Seq: m.Seq, ReadBy: readBy, Deleted: m.Deleted, CreatedAt: m.CreatedAt,
	}
}
