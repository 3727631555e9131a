package model

import (
	"time"

	"gorm.io/gorm"
)

// Room 学习房间表 — 对应 rooms
// 使用显式 is_deleted 标记软删除，删除后仅从列表中隐藏
type Room struct {
	RoomID    string     `gorm:"type:uuid;primaryKey"         json:"room_id"`
	Name      string     `gorm:"type:varchar(50);not null"    json:"name"`
	Banner    *string    `gorm:"type:varchar(255)"            json:"banner,omitempty"`
	IsDeleted bool       `gorm:"not null;default:false"       json:"is_deleted"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
	AuditModel

	// 关联
	Config *RoomConfig `gorm:"foreignKey:RoomID;references:RoomID" json:"config,omitempty"`
}

// TableName 指定表名
func (Room) TableName() string { return "rooms" }

// BeforeCreate 生成主键
func (r *Room) BeforeCreate(_ *gorm.DB) error {
	ensureID(&r.RoomID)
	return nil
}

// RoomConfig 房间归属表 — 对应 room_configs
// 每个房间恰好一条记录，MasterID 指向房主
type RoomConfig struct {
	RoomID   string `gorm:"type:uuid;primaryKey" json:"room_id"`
	MasterID string `gorm:"type:uuid;not null"   json:"master_id"`
	BaseModel

	// 关联
	Master *Member `gorm:"foreignKey:MasterID;references:MemberID" json:"master,omitempty"`
}

// TableName 指定表名
func (RoomConfig) TableName() string { return "room_configs" }

// RoomMember 房间成员关联表 — 对应 room_members
// 房主不写入该表，参与者 = 房主 ∪ 本表成员
type RoomMember struct {
	RoomID    string    `gorm:"type:uuid;primaryKey"               json:"room_id"`
	MemberID  string    `gorm:"type:uuid;primaryKey"               json:"member_id"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`

	// 关联
	Member *Member `gorm:"foreignKey:MemberID;references:MemberID" json:"member,omitempty"`
}

// TableName 指定表名
func (RoomMember) TableName() string { return "room_members" }
