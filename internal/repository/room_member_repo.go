package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ThemOfWind/CTUDY-SERVER/internal/model"
)

// RoomMemberRepository 房间成员关联（room_members）数据访问接口
// 房主不在该表中
type RoomMemberRepository interface {
	// Add 批量加入成员，已存在的关联忽略
	Add(ctx context.Context, roomID string, memberIDs []string) error
	// Remove 批量移除成员，返回实际删除的行数
	Remove(ctx context.Context, roomID string, memberIDs []string) (int64, error)
	Exists(ctx context.Context, roomID, memberID string) (bool, error)
	ListMembers(ctx context.Context, roomID string) ([]model.Member, error)
	// CountByRooms 批量统计房间的普通成员数（不含房主）
	CountByRooms(ctx context.Context, roomIDs []string) (map[string]int64, error)
	ListRoomIDsByMember(ctx context.Context, memberID string) ([]string, error)
}

// roomMemberRepo RoomMemberRepository 的 GORM 实现
type roomMemberRepo struct {
	db *gorm.DB
}

// NewRoomMemberRepo 创建 RoomMemberRepository 实例
func NewRoomMemberRepo(db *gorm.DB) RoomMemberRepository {
	return &roomMemberRepo{db: db}
}

func (r *roomMemberRepo) Add(ctx context.Context, roomID string, memberIDs []string) error {
	if len(memberIDs) == 0 {
		return nil
	}
	rows := make([]model.RoomMember, 0, len(memberIDs))
	for _, id := range memberIDs {
		rows = append(rows, model.RoomMember{RoomID: roomID, MemberID: id})
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Omit(clause.Associations).
		Create(&rows).Error
}

func (r *roomMemberRepo) Remove(ctx context.Context, roomID string, memberIDs []string) (int64, error) {
	if len(memberIDs) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).
		Where("room_id = ? AND member_id IN ?", roomID, memberIDs).
		Delete(&model.RoomMember{})
	return result.RowsAffected, result.Error
}

func (r *roomMemberRepo) Exists(ctx context.Context, roomID, memberID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.RoomMember{}).
		Where("room_id = ? AND member_id = ?", roomID, memberID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *roomMemberRepo) ListMembers(ctx context.Context, roomID string) ([]model.Member, error) {
	var members []model.Member
	err := r.db.WithContext(ctx).
		Model(&model.Member{}).
		Joins("JOIN room_members ON room_members.member_id = members.member_id").
		Where("room_members.room_id = ?", roomID).
		Order("members.username ASC").
		Find(&members).Error
	return members, err
}

func (r *roomMemberRepo) CountByRooms(ctx context.Context, roomIDs []string) (map[string]int64, error) {
	counts := make(map[string]int64, len(roomIDs))
	if len(roomIDs) == 0 {
		return counts, nil
	}

	var rows []struct {
		RoomID string
		Count  int64
	}
	err := r.db.WithContext(ctx).
		Model(&model.RoomMember{}).
		Select("room_id, COUNT(*) AS count").
		Where("room_id IN ?", roomIDs).
		Group("room_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		counts[row.RoomID] = row.Count
	}
	return counts, nil
}

func (r *roomMemberRepo) ListRoomIDsByMember(ctx context.Context, memberID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&model.RoomMember{}).
		Where("member_id = ?", memberID).
		Pluck("room_id", &ids).Error
	return ids, err
}
