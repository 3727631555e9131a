package model

import (
	"time"

	"gorm.io/gorm"
)

// Coupon 房间内成员之间互赠的券 — 对应 coupons
// IsUsed 为 true 后即为终态，不再出现在有效列表中
type Coupon struct {
	CouponID   string     `gorm:"type:uuid;primaryKey"          json:"coupon_id"`
	Name       string     `gorm:"type:varchar(100);not null"    json:"name"`
	RoomID     string     `gorm:"type:uuid;not null;index"      json:"room_id"`
	SenderID   string     `gorm:"type:uuid;not null"            json:"sender_id"`
	ReceiverID string     `gorm:"type:uuid;not null"            json:"receiver_id"`
	StartDate  time.Time  `gorm:"type:date;not null"            json:"start_date"`
	EndDate    time.Time  `gorm:"type:date;not null"            json:"end_date"`
	IsUsed     bool       `gorm:"not null;default:false"        json:"is_used"`
	UsedAt     *time.Time `json:"used_at,omitempty"`
	BaseModel

	// 关联
	Sender   *Member `gorm:"foreignKey:SenderID;references:MemberID"   json:"sender,omitempty"`
	Receiver *Member `gorm:"foreignKey:ReceiverID;references:MemberID" json:"receiver,omitempty"`
}

// TableName 指定表名
func (Coupon) TableName() string { return "coupons" }

// BeforeCreate 生成主键
func (c *Coupon) BeforeCreate(_ *gorm.DB) error {
	ensureID(&c.CouponID)
	return nil
}

// ValidOn 判断券在指定日期是否处于有效期内（含首尾）
func (c *Coupon) ValidOn(day time.Time) bool {
	d := DateOf(day)
	return !d.Before(DateOf(c.StartDate)) && !d.After(DateOf(c.EndDate))
}

// ExpiredOn 判断券在指定日期是否已过期
func (c *Coupon) ExpiredOn(day time.Time) bool {
	return DateOf(c.EndDate).Before(DateOf(day))
}
