package service

import (
	"Atrium/internal/api/dto"
	"Atrium/internal/realtime"
	"context"
	"errors"
	"testing"
)

func newGroupEnv() (GroupService, *fakeGroupRepo) {
	groups := newFakeGroupRepo()
	return NewGroupService(groups, realtime.NewHub()), groups
}

func TestCreateGroup(t *testing.T) {
	svc, repo := newGroupEnv()
	res, err := svc.CreateGroup(context.Background(), 3, &dto.CreateGroupReq{
		Name: "team", MemberIDs: []uint64{7, 9},
	})
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	if res.AdminID != 3 || res.Name != "team" {
		t.Fatalf("res = %+v", res)
	}
	if res.RoomKey != realtime.GroupRoomKey(res.ID) {
		t.Fatalf("RoomKey = %s", res.RoomKey)
	}

	// 群主总是成员
	isMember, _ := repo.IsMember(context.Background(), res.ID, 3)
	if !isMember {
		t.Fatal("群主应自动成为成员")
	}
}

func TestGroupMembershipGuards(t *testing.T) {
	svc, repo := newGroupEnv()
	repo.addGroup(1, 3, 3, 7)
	ctx := context.Background()

	if _, err := svc.GetGroup(ctx, 9, 1); !errors.Is(err, ErrNotGroupMember) {
		t.Errorf("err = %v, want ErrNotGroupMember", err)
	}
	if _, err := svc.GetGroup(ctx, 3, 99); !errors.Is(err, ErrGroupNotFound) {
		t.Errorf("err = %v, want ErrGroupNotFound", err)
	}
	if _, err := svc.ListMembers(ctx, 9, 1); !errors.Is(err, ErrNotGroupMember) {
		t.Errorf("err = %v, want ErrNotGroupMember", err)
	}
}

func TestGroupAdminOnlyOperations(t *testing.T) {
	svc, repo := newGroupEnv()
	repo.addGroup(1, 3, 3, 7)
	ctx := context.Background()

	// 普通成员不能增删成员
	if err := svc.AddMember(ctx, 7, 1, 9); !errors.Is(err, ErrNotGroupAdmin) {
		t.Errorf("err = %v, want ErrNotGroupAdmin", err)
	}
	if err := svc.RemoveMember(ctx, 7, 1, 3); !errors.Is(err, ErrNotGroupAdmin) {
		t.Errorf("err = %v, want ErrNotGroupAdmin", err)
	}

	if err := svc.AddMember(ctx, 3, 1, 9); err != nil {
		t.Fatalf("AddMember: %v", err)
	}
	members, _ := svc.ListMembers(ctx, 3, 1)
	if len(members) != 3 {
		t.Fatalf("成员数 = %d, want 3", len(members))
	}

	if err := svc.RemoveMember(ctx, 3, 1, 9); err != nil {
		t.Fatalf("RemoveMember: %v", err)
	}
	// 群主不能把自己移出
	if err := svc.RemoveMember(ctx, 3, 1, 3); !errors.Is(err, ErrParamInvalid) {
		t.Errorf("err = %v, want ErrParamInvalid", err)
	}
}

func TestListGroups(t *testing.T) {
	svc, repo := newGroupEnv()
	repo.addGroup(1, 3, 3, 7)
	repo.addGroup(2, 7, 7)

	list, err := svc.ListGroups(context.Background(), 7)
	if err != nil {
		t.Fatalf("ListGroups: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("群组数 = %d, want 2", len(list))
	}
}
