package service

import (
	"Atrium/internal/realtime"
	"errors"
)

const (
	BadRequest          = 400
	Unauthorized        = 401
	Forbidden           = 403
	NotFound            = 404
	InternalServerError = 500
)

var (
	ErrParamInvalid    = errors.New("参数错误")
	ErrEmptyMessage    = errors.New("消息内容与附件不能同时为空")
	ErrBadRoomKey      = errors.New("房间标识不合法")
	ErrMessageNotFound = errors.New("消息不存在")
	ErrGroupNotFound   = errors.New("群组不存在")
	ErrNotGroupMember  = errors.New("不是群组成员")
	ErrNotGroupAdmin   = errors.New("仅群主可执行此操作")
	ErrNotSender       = errors.New("仅发送者可撤回消息")
	UnauthorizedError  = errors.New("权限不足")
	UnExpectedError    = errors.New("系统异常，请稍后重试")
)

var ErrorMap = map[error]int{
	ErrParamInvalid:    BadRequest,
	ErrEmptyMessage:    BadRequest,
	ErrBadRoomKey:      BadRequest,
	ErrMessageNotFound: NotFound,
	ErrGroupNotFound:   NotFound,
	ErrNotGroupMember:  Forbidden,
	ErrNotGroupAdmin:   Forbidden,
	ErrNotSender:       Forbidden,
	UnauthorizedError:  Unauthorized,
	UnExpectedError:    InternalServerError,

	realtime.ErrPeerUnreachable: NotFound,
	realtime.ErrCallInProgress:  BadRequest,
	realtime.ErrCallNotFound:    NotFound,
}
