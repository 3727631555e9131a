package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ThemOfWind/CTUDY-SERVER/internal/model"
)

// RoomRepository 房间及房间归属（room_configs）数据访问接口
type RoomRepository interface {
	Create(ctx context.Context, room *model.Room) error
	// GetByID 仅返回未删除的房间，并预加载 Config.Master
	GetByID(ctx context.Context, id string) (*model.Room, error)
	Update(ctx context.Context, room *model.Room) error
	SoftDelete(ctx context.Context, id string, deletedBy string) error
	// ExistsActiveName 判断未删除房间中是否已存在同名房间，excludeID 非空时排除该房间
	ExistsActiveName(ctx context.Context, name, excludeID string) (bool, error)
	// ListByParticipant 分页返回成员作为房主或普通成员参与的未删除房间
	ListByParticipant(ctx context.Context, memberID string, offset, limit int) ([]model.Room, int64, error)
	// CountMasteredActive 统计成员担任房主的未删除房间数
	CountMasteredActive(ctx context.Context, memberID string) (int64, error)

	CreateConfig(ctx context.Context, cfg *model.RoomConfig) error
	GetConfig(ctx context.Context, roomID string) (*model.RoomConfig, error)
	// GetConfigForUpdate 在事务内以 SELECT ... FOR UPDATE 读取房间归属
	GetConfigForUpdate(ctx context.Context, roomID string) (*model.RoomConfig, error)
	UpdateMaster(ctx context.Context, roomID, masterID string) error
}

// roomRepo RoomRepository 的 GORM 实现
type roomRepo struct {
	db *gorm.DB
}

// NewRoomRepo 创建 RoomRepository 实例
func NewRoomRepo(db *gorm.DB) RoomRepository {
	return &roomRepo{db: db}
}

func (r *roomRepo) Create(ctx context.Context, room *model.Room) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(room).Error
}

func (r *roomRepo) GetByID(ctx context.Context, id string) (*model.Room, error) {
	var room model.Room
	err := r.db.WithContext(ctx).
		Preload("Config.Master").
		Where("room_id = ? AND is_deleted = ?", id, false).
		First(&room).Error
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (r *roomRepo) Update(ctx context.Context, room *model.Room) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(room).Error
}

func (r *roomRepo) SoftDelete(ctx context.Context, id string, deletedBy string) error {
	now := time.Now()
	return r.db.WithContext(ctx).
		Model(&model.Room{}).
		Where("room_id = ? AND is_deleted = ?", id, false).
		Updates(map[string]interface{}{
			"is_deleted": true,
			"deleted_at": now,
			"updated_by": deletedBy,
			"updated_at": now,
		}).Error
}

func (r *roomRepo) ExistsActiveName(ctx context.Context, name, excludeID string) (bool, error) {
	var count int64
	db := r.db.WithContext(ctx).
		Model(&model.Room{}).
		Where("name = ? AND is_deleted = ?", name, false)
	if excludeID != "" {
		db = db.Where("room_id <> ?", excludeID)
	}
	if err := db.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *roomRepo) ListByParticipant(ctx context.Context, memberID string, offset, limit int) ([]model.Room, int64, error) {
	var rooms []model.Room
	var total int64

	mastered := r.db.Model(&model.RoomConfig{}).Select("room_id").Where("master_id = ?", memberID)
	joined := r.db.Model(&model.RoomMember{}).Select("room_id").Where("member_id = ?", memberID)

	db := r.db.WithContext(ctx).
		Model(&model.Room{}).
		Where("is_deleted = ?", false).
		Where("room_id IN (?) OR room_id IN (?)", mastered, joined)

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := db.Preload("Config.Master").
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&rooms).Error
	return rooms, total, err
}

func (r *roomRepo) CountMasteredActive(ctx context.Context, memberID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.RoomConfig{}).
		Joins("JOIN rooms ON rooms.room_id = room_configs.room_id").
		Where("room_configs.master_id = ? AND rooms.is_deleted = ?", memberID, false).
		Count(&count).Error
	return count, err
}

func (r *roomRepo) CreateConfig(ctx context.Context, cfg *model.RoomConfig) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(cfg).Error
}

func (r *roomRepo) GetConfig(ctx context.Context, roomID string) (*model.RoomConfig, error) {
	var cfg model.RoomConfig
	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		First(&cfg).Error
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (r *roomRepo) GetConfigForUpdate(ctx context.Context, roomID string) (*model.RoomConfig, error) {
	var cfg model.RoomConfig
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("room_id = ?", roomID).
		First(&cfg).Error
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (r *roomRepo) UpdateMaster(ctx context.Context, roomID, masterID string) error {
	return r.db.WithContext(ctx).
		Model(&model.RoomConfig{}).
		Where("room_id = ?", roomID).
		Updates(map[string]interface{}{
			"master_id":  masterID,
			"updated_at": time.Now(),
		}).Error
}
