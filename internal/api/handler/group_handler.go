package handler

import (
	"Atrium/internal/api/dto"
	"Atrium/internal/pkg/response"
	"Atrium/internal/service"
	"strconv"

	"github.com/gin-gonic/gin"
)

type GroupHandler struct {
	groupService service.GroupService
}

func NewGroupHandler(groupService service.GroupService) *GroupHandler {
	return &GroupHandler{groupService: groupService}
}

// CreateGroup 创建群组，创建者即群主
func (s *GroupHandler) CreateGroup(c *gin.Context) {
	var req dto.CreateGroupReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, err)
		return
	}

	adminID := c.GetUint64("user_id")

	res, err := s.groupService.CreateGroup(c, adminID, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

// GetGroup 群组详情（仅成员可见）
func (s *GroupHandler) GetGroup(c *gin.Context) {
	groupID, err := strconv.ParseUint(c.Param("group_id"), 10, 64)
	if err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}

	userID := c.GetUint64("user_id")

	res, err := s.groupService.GetGroup(c, userID, groupID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

// AddMember 拉人入群
func (s *GroupHandler) AddMember(c *gin.Context) {
	groupID, err := strconv.ParseUint(c.Param("group_id"), 10, 64)
	if err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}
	var req dto.GroupMemberReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, err)
		return
	}

	operatorID := c.GetUint64("user_id")

	if err := s.groupService.AddMember(c, operatorID, groupID, req.UserID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// RemoveMember 移出成员
func (s *GroupHandler) RemoveMember(c *gin.Context) {
	groupID, err := strconv.ParseUint(c.Param("group_id"), 10, 64)
	if err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}
	userID, err := strconv.ParseUint(c.Param("user_id"), 10, 64)
	if err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}

	operatorID := c.GetUint64("user_id")

	if err := s.groupService.RemoveMember(c, operatorID, groupID, userID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// ListMembers 群成员清单
func (s *GroupHandler) ListMembers(c *gin.Context) {
	groupID, err := strconv.ParseUint(c.Param("group_id"), 10, 64)
	if err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}

	userID := c.GetUint64("user_id")

	res, err := s.groupService.ListMembers(c, userID, groupID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

// ListGroups 当前用户加入的全部群组
func (s *GroupHandler) ListGroups(c *gin.Context) {
	userID := c.GetUint64("user_id")
	res, err := s.groupService.ListGroups(c, userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}
