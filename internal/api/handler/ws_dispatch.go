package handler

import (
	"Atrium/internal/api/dto"
	"Atrium/internal/pkg/consts"
	"Atrium/internal/realtime"
	"Atrium/internal/service"
	"context"
	"errors"
	log "log/slog"

	"github.com/goccy/go-json"
)

// dispatch 解析上行帧并路由到对应动作。
// 处理失败只回一条错误推送，连接保持存活。
func (s *WsHandler) dispatch(ctx context.Context, client *realtime.Client, raw []byte) {
	var frame dto.Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		s.pushError(client, "", service.ErrParamInvalid)
		return
	}

	var err error
	switch frame.Op {
	case dto.OpJoinRoom:
		err = s.onJoinRoom(ctx, client, frame.Data)
	case dto.OpLeaveRoom:
		err = s.onLeaveRoom(client, frame.Data)
	case dto.OpSendMessage:
		err = s.onSendMessage(ctx, client, frame.Data)
	case dto.OpMarkRead:
		err = s.onMarkRead(ctx, client, frame.Data)
	case dto.OpDeleteMessage:
		err = s.onDeleteMessage(ctx, client, frame.Data)
	case dto.OpTypingStart:
		err = s.onTyping(ctx, client, frame.Data, true)
	case dto.OpTypingStop:
		err = s.onTyping(ctx, client, frame.Data, false)
	case dto.OpCallInvite:
		err = s.onCallInvite(ctx, client, frame.Data)
	case dto.OpCallAccept:
		err = s.onCallAccept(ctx, client, frame.Data)
	case dto.OpCallSignal:
		err = s.onCallSignal(ctx, client, frame.Data)
	case dto.OpCallEnd:
		err = s.onCallEnd(ctx, client, frame.Data)
	default:
		err = service.ErrParamInvalid
	}

	if err != nil {
		s.pushError(client, frame.Op, err)
	}
}

func (s *WsHandler) pushError(client *realtime.Client, op string, err error) {
	msg := err.Error()
	if errors.Is(err, service.UnExpectedError) {
		msg = "internal error"
	}
	client.Send(realtime.EncodePush(realtime.EvtError, dto.ErrorPush{Op: op, Message: msg}))
}

func (s *WsHandler) onJoinRoom(ctx context.Context, client *realtime.Client, data json.RawMessage) error {
	var req dto.JoinRoomReq
	if err := json.Unmarshal(data, &req); err != nil || req.RoomKey == "" {
		return service.ErrParamInvalid
	}
	if err := s.chatService.CheckAccess(ctx, client.UserID, req.RoomKey); err != nil {
		return err
	}
	s.hub.Join(client, req.RoomKey)
	return nil
}

func (s *WsHandler) onLeaveRoom(client *realtime.Client, data json.RawMessage) error {
	var req dto.JoinRoomReq
	if err := json.Unmarshal(data, &req); err != nil || req.RoomKey == "" {
		return service.ErrParamInvalid
	}
	s.hub.Leave(client, req.RoomKey)
	return nil
}

func (s *WsHandler) onSendMessage(ctx context.Context, client *realtime.Client, data json.RawMessage) error {
	var req dto.SendMessageReq
	if err := json.Unmarshal(data, &req); err != nil || req.RoomKey == "" {
		return service.ErrParamInvalid
	}
	_, err := s.chatService.SendMessage(ctx, client.UserID, &req)
	return err
}

func (s *WsHandler) onMarkRead(ctx context.Context, client *realtime.Client, data json.RawMessage) error {
	var req dto.MarkReadReq
	if err := json.Unmarshal(data, &req); err != nil || req.RoomKey == "" {
		return service.ErrParamInvalid
	}
	return s.chatService.MarkRead(ctx, client.UserID, req.RoomKey)
}

func (s *WsHandler) onDeleteMessage(ctx context.Context, client *realtime.Client, data json.RawMessage) error {
	var req dto.DeleteMessageReq
	if err := json.Unmarshal(data, &req); err != nil || req.MessageID == "" {
		return service.ErrParamInvalid
	}
	return s.chatService.DeleteMessage(ctx, client.UserID, &req)
}

func (s *WsHandler) onTyping(ctx context.Context, client *realtime.Client, data json.RawMessage, start bool) error {
	var req dto.TypingReq
	if err := json.Unmarshal(data, &req); err != nil || req.RoomKey == "" {
		return service.ErrParamInvalid
	}
	if err := s.chatService.CheckAccess(ctx, client.UserID, req.RoomKey); err != nil {
		return err
	}
	if start {
		s.typing.Start(req.RoomKey, client.UserID)
	} else {
		s.typing.Stop(req.RoomKey, client.UserID)
	}
	return nil
}

func (s *WsHandler) onCallInvite(ctx context.Context, client *realtime.Client, data json.RawMessage) error {
	var req dto.CallInviteReq
	if err := json.Unmarshal(data, &req); err != nil || req.RoomKey == "" {
		return service.ErrParamInvalid
	}
	if req.MediaKind != consts.MediaKindAudio && req.MediaKind != consts.MediaKindVideo {
		return service.ErrParamInvalid
	}
	if err := s.chatService.CheckAccess(ctx, client.UserID, req.RoomKey); err != nil {
		return err
	}
	sess, err := s.calls.Invite(client.UserID, req.RoomKey, req.MediaKind)
	if err != nil {
		return err
	}
	log.Info("呼叫已发起", "callID", sess.ID, "roomKey", req.RoomKey, "caller", client.UserID)
	return nil
}

func (s *WsHandler) onCallAccept(ctx context.Context, client *realtime.Client, data json.RawMessage) error {
	var req dto.CallAcceptReq
	if err := json.Unmarshal(data, &req); err != nil || req.RoomKey == "" {
		return service.ErrParamInvalid
	}
	if err := s.chatService.CheckAccess(ctx, client.UserID, req.RoomKey); err != nil {
		return err
	}
	return s.calls.Accept(client.UserID, req.RoomKey)
}

func (s *WsHandler) onCallSignal(ctx context.Context, client *realtime.Client, data json.RawMessage) error {
	var req dto.CallSignalReq
	if err := json.Unmarshal(data, &req); err != nil || req.RoomKey == "" || req.ToUser == 0 {
		return service.ErrParamInvalid
	}
	if err := s.chatService.CheckAccess(ctx, client.UserID, req.RoomKey); err != nil {
		return err
	}
	return s.calls.Signal(client.UserID, req.ToUser, req.RoomKey, req.Payload)
}

func (s *WsHandler) onCallEnd(ctx context.Context, client *realtime.Client, data json.RawMessage) error {
	var req dto.CallEndReq
	if err := json.Unmarshal(data, &req); err != nil || req.RoomKey == "" {
		return service.ErrParamInvalid
	}
	if err := s.chatService.CheckAccess(ctx, client.UserID, req.RoomKey); err != nil {
		return err
	}
	return s.calls.End(client.UserID, req.RoomKey)
}
