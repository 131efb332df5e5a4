package service

import (
	"Atrium/internal/api/dto"
	"Atrium/internal/model"
	"Atrium/internal/realtime"
	"Atrium/internal/repository"
	"context"
	"errors"
	log "log/slog"

	"github.com/jinzhu/copier"
)

// GroupService 群组管理：成员增删由群主独占
type GroupService interface {
	CreateGroup(ctx context.Context, adminID uint64, req *dto.CreateGroupReq) (*dto.GroupDTO, error)
	GetGroup(ctx context.Context, userID, groupID uint64) (*dto.GroupDTO, error)
	AddMember(ctx context.Context, operatorID, groupID, userID uint64) error
	RemoveMember(ctx context.Context, operatorID, groupID, userID uint64) error
	ListMembers(ctx context.Context, userID, groupID uint64) ([]uint64, error)
	ListGroups(ctx context.Context, userID uint64) ([]*dto.GroupDTO, error)
}

type groupServiceImpl struct {
	groupRepo repository.GroupRepo
	hub       *realtime.Hub
}

func NewGroupService(groupRepo repository.GroupRepo, hub *realtime.Hub) GroupService {
	return &groupServiceImpl{groupRepo: groupRepo, hub: hub}
}

func (s *groupServiceImpl) CreateGroup(ctx context.Context, adminID uint64, req *dto.CreateGroupReq) (*dto.GroupDTO, error) {
	group := &model.Group{Name: req.Name, AdminID: adminID}
	if err := s.groupRepo.CreateGroup(ctx, group, req.MemberIDs); err != nil {
		return nil, err
	}
	return toGroupDTO(group), nil
}

func (s *groupServiceImpl) GetGroup(ctx context.Context, userID, groupID uint64) (*dto.GroupDTO, error) {
	group, err := s.groupRepo.GetGroup(ctx, groupID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrGroupNotFound
	}
	if err != nil {
		return nil, err
	}
	isMember, err := s.groupRepo.IsMember(ctx, groupID, userID)
	if err != nil {
		return nil, err
	}
	if !isMember {
		return nil, ErrNotGroupMember
	}
	return toGroupDTO(group), nil
}

// AddMember 仅群主可操作，重复加入无副作用
func (s *groupServiceImpl) AddMember(ctx context.Context, operatorID, groupID, userID uint64) error {
	if err := s.requireAdmin(ctx, operatorID, groupID); err != nil {
		return err
	}
	return s.groupRepo.AddMember(ctx, groupID, userID)
}

// RemoveMember 被移出的成员掉出房间寻址范围，后续扇出不再包含它
func (s *groupServiceImpl) RemoveMember(ctx context.Context, operatorID, groupID, userID uint64) error {
	if err := s.requireAdmin(ctx, operatorID, groupID); err != nil {
		return err
	}
	if userID == operatorID {
		return ErrParamInvalid
	}
	if err := s.groupRepo.RemoveMember(ctx, groupID, userID); err != nil {
		return err
	}
	// 踢掉被移除成员在该房间的订阅，否则它还能收到后续推送
	roomKey := realtime.GroupRoomKey(groupID)
	for _, c := range s.hub.Subscribers(roomKey) {
		if c.UserID == userID {
			s.hub.Leave(c, roomKey)
		}
	}
	return nil
}

func (s *groupServiceImpl) ListMembers(ctx context.Context, userID, groupID uint64) ([]uint64, error) {
	isMember, err := s.groupRepo.IsMember(ctx, groupID, userID)
	if err != nil {
		return nil, err
	}
	if !isMember {
		return nil, ErrNotGroupMember
	}
	return s.groupRepo.MemberIDs(ctx, groupID)
}

func (s *groupServiceImpl) ListGroups(ctx context.Context, userID uint64) ([]*dto.GroupDTO, error) {
	groups, err := s.groupRepo.GetUserGroups(ctx, userID)
	if err != nil {
		return nil, err
	}
	res := make([]*dto.GroupDTO, 0, len(groups))
	for _, g := range groups {
		res = append(res, toGroupDTO(g))
	}
	return res, nil
}

func (s *groupServiceImpl) requireAdmin(ctx context.Context, operatorID, groupID uint64) error {
	group, err := s.groupRepo.GetGroup(ctx, groupID)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrGroupNotFound
	}
	if err != nil {
		return err
	}
	if group.AdminID != operatorID {
		return ErrNotGroupAdmin
	}
	return nil
}

func toGroupDTO(group *model.Group) *dto.GroupDTO {
	var res dto.GroupDTO
	if err := copier.Copy(&res, group); err != nil {
		log.Warn("群组响应拷贝失败", "err", err)
	}
	res.RoomKey = realtime.GroupRoomKey(group.ID)
	return &res
}
