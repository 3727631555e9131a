package model

import "gorm.io/gorm"

// Member 成员表 — 对应 members
type Member struct {
	MemberID     string  `gorm:"type:uuid;primaryKey"             json:"member_id"`
	Username     string  `gorm:"type:varchar(150);not null"       json:"username"`
	Email        string  `gorm:"type:varchar(255);not null"       json:"email"`
	PasswordHash string  `gorm:"type:varchar(255);not null"       json:"-"`
	Name         string  `gorm:"type:varchar(30);not null"        json:"name"`
	Image        *string `gorm:"type:varchar(255)"                json:"image,omitempty"`
	IsActive     bool    `gorm:"not null;default:true"            json:"is_active"`
	SoftDeleteModel
}

// TableName 指定表名
func (Member) TableName() string { return "members" }

// BeforeCreate 生成主键
func (m *Member) BeforeCreate(_ *gorm.DB) error {
	ensureID(&m.MemberID)
	return nil
}
