package model

import (
	"time"

	"gorm.io/gorm"
)

// CertificateCode 找回密码验证码表 — 对应 certificate_codes
// 生命周期：创建 → 校验通过(IsChecked) → 凭 Key 重置密码一次(UsedAt)
type CertificateCode struct {
	CertificateID string     `gorm:"type:uuid;primaryKey"        json:"certificate_id"`
	MemberID      string     `gorm:"type:uuid;not null;index"    json:"member_id"`
	Code          string     `gorm:"type:varchar(6);not null"    json:"-"`
	Key           string     `gorm:"type:varchar(6);not null"    json:"-"`
	ExpiresAt     time.Time  `gorm:"not null"                    json:"expires_at"`
	IsChecked     bool       `gorm:"not null;default:false"      json:"is_checked"`
	UsedAt        *time.Time `json:"used_at,omitempty"`
	BaseModel

	// 关联
	Member *Member `gorm:"foreignKey:MemberID;references:MemberID" json:"member,omitempty"`
}

// TableName 指定表名
func (CertificateCode) TableName() string { return "certificate_codes" }

// BeforeCreate 生成主键
func (c *CertificateCode) BeforeCreate(_ *gorm.DB) error {
	ensureID(&c.CertificateID)
	return nil
}
