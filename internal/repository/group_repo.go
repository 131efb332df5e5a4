package repository

import (
	"Atrium/internal/model"
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

var ErrNotFound = errors.New("record not found")

type GroupRepo interface {
	CreateGroup(ctx context.Context, group *model.Group, memberIDs []uint64) error
	GetGroup(ctx context.Context, groupID uint64) (*model.Group, error)
	IsMember(ctx context.Context, groupID, userID uint64) (bool, error)
	AddMember(ctx context.Context, groupID, userID uint64) error
	RemoveMember(ctx context.Context, groupID, userID uint64) error
	MemberIDs(ctx context.Context, groupID uint64) ([]uint64, error)
	GetUserGroups(ctx context.Context, userID uint64) ([]*model.Group, error)
}

type groupRepoImpl struct {
	db *gorm.DB
}

func NewGroupRepo(db *gorm.DB) GroupRepo {
	return &groupRepoImpl{db: db}
}

// CreateGroup 开启事务创建群组及初始成员，群主总是成员
func (s *groupRepoImpl) CreateGroup(ctx context.Context, group *model.Group, memberIDs []uint64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(group).Error; err != nil {
			return err
		}
		seen := map[uint64]struct{}{group.AdminID: {}}
		members := []*model.GroupMember{{GroupID: group.ID, UserID: group.AdminID, JoinedAt: time.Now()}}
		for _, uid := range memberIDs {
			if _, ok := seen[uid]; ok {
				continue
			}
			seen[uid] = struct{}{}
			members = append(members, &model.GroupMember{GroupID: group.ID, UserID: uid, JoinedAt: time.Now()})
		}
		return tx.Create(members).Error
	})
}

func (s *groupRepoImpl) GetGroup(ctx context.Context, groupID uint64) (*model.Group, error) {
	var group model.Group
	err := s.db.WithContext(ctx).First(&group, groupID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &group, nil
}

// IsMember 检查用户是否是群组成员
func (s *groupRepoImpl) IsMember(ctx context.Context, groupID, userID uint64) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.GroupMember{}).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		Count(&count).Error
	return count > 0, err
}

// AddMember 重复加入为无操作
func (s *groupRepoImpl) AddMember(ctx context.Context, groupID, userID uint64) error {
	member := model.GroupMember{GroupID: groupID, UserID: userID, JoinedAt: time.Now()}
	return s.db.WithContext(ctx).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		FirstOrCreate(&member).Error
}

func (s *groupRepoImpl) RemoveMember(ctx context.Context, groupID, userID uint64) error {
	return s.db.WithContext(ctx).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		Delete(&model.GroupMember{}).Error
}

// MemberIDs 群组全部成员 ID，消息扇出与未读计数按此寻址
func (s *groupRepoImpl) MemberIDs(ctx context.Context, groupID uint64) ([]uint64, error) {
	var ids []uint64
	err := s.db.WithContext(ctx).Model(&model.GroupMember{}).
		Where("group_id = ?", groupID).
		Pluck("user_id", &ids).Error
	return ids, err
}

// GetUserGroups 联表查询用户加入的全部群组
func (s *groupRepoImpl) GetUserGroups(ctx context.Context, userID uint64) ([]*model.Group, error) {
	var groups []*model.Group
	err := s.db.WithContext(ctx).Table("im_groups g").
		Select("g.*").
		Joins("JOIN im_group_members m ON m.group_id = g.id").
		Where("m.user_id = ?", userID).
		Order("g.updated_at DESC").
		Find(&groups).Error
	return groups, err
}
