package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ThemOfWind/CTUDY-SERVER/internal/model"
)

// CouponFilter 未使用券的查询条件，零值字段不参与过滤
type CouponFilter struct {
	RoomID     string
	SenderID   string
	ReceiverID string
	// ValidOn 非空时仅返回 start_date <= ValidOn <= end_date 的券
	ValidOn *time.Time
	// ExpiredBefore 非空时仅返回 end_date < ExpiredBefore 的券
	ExpiredBefore *time.Time
}

// CouponRepository 券数据访问接口
type CouponRepository interface {
	Create(ctx context.Context, coupon *model.Coupon) error
	GetByID(ctx context.Context, id string) (*model.Coupon, error)
	ListUnused(ctx context.Context, filter CouponFilter) ([]model.Coupon, error)
	// ListByRoom 返回房间内全部券（含已使用），用于导出
	ListByRoom(ctx context.Context, roomID string) ([]model.Coupon, error)
	// MarkUsed 将未使用的券标记为已使用，返回受影响行数（0 表示已被使用）
	MarkUsed(ctx context.Context, id string, usedAt time.Time) (int64, error)
	// DeleteUnusedReceived 删除指定成员在该房间收到的未使用券
	DeleteUnusedReceived(ctx context.Context, roomID string, receiverIDs []string) (int64, error)
}

// couponRepo CouponRepository 的 GORM 实现
type couponRepo struct {
	db *gorm.DB
}

// NewCouponRepo 创建 CouponRepository 实例
func NewCouponRepo(db *gorm.DB) CouponRepository {
	return &couponRepo{db: db}
}

func (r *couponRepo) Create(ctx context.Context, coupon *model.Coupon) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(coupon).Error
}

func (r *couponRepo) GetByID(ctx context.Context, id string) (*model.Coupon, error) {
	var coupon model.Coupon
	err := r.db.WithContext(ctx).
		Preload("Sender").
		Preload("Receiver").
		Where("coupon_id = ?", id).
		First(&coupon).Error
	if err != nil {
		return nil, err
	}
	return &coupon, nil
}

func (r *couponRepo) ListUnused(ctx context.Context, filter CouponFilter) ([]model.Coupon, error) {
	var coupons []model.Coupon

	db := r.db.WithContext(ctx).
		Preload("Sender").
		Preload("Receiver").
		Where("is_used = ?", false)

	if filter.RoomID != "" {
		db = db.Where("room_id = ?", filter.RoomID)
	}
	if filter.SenderID != "" {
		db = db.Where("sender_id = ?", filter.SenderID)
	}
	if filter.ReceiverID != "" {
		db = db.Where("receiver_id = ?", filter.ReceiverID)
	}
	if filter.ValidOn != nil {
		day := model.DateOf(*filter.ValidOn)
		db = db.Where("start_date <= ? AND end_date >= ?", day, day)
	}
	if filter.ExpiredBefore != nil {
		db = db.Where("end_date < ?", model.DateOf(*filter.ExpiredBefore))
	}

	err := db.Order("end_date ASC").Order("created_at ASC").Find(&coupons).Error
	return coupons, err
}

func (r *couponRepo) ListByRoom(ctx context.Context, roomID string) ([]model.Coupon, error) {
	var coupons []model.Coupon
	err := r.db.WithContext(ctx).
		Preload("Sender").
		Preload("Receiver").
		Where("room_id = ?", roomID).
		Order("created_at ASC").
		Find(&coupons).Error
	return coupons, err
}

func (r *couponRepo) MarkUsed(ctx context.Context, id string, usedAt time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Coupon{}).
		Where("coupon_id = ? AND is_used = ?", id, false).
		Updates(map[string]interface{}{
			"is_used":    true,
			"used_at":    usedAt,
			"updated_at": usedAt,
		})
	return result.RowsAffected, result.Error
}

func (r *couponRepo) DeleteUnusedReceived(ctx context.Context, roomID string, receiverIDs []string) (int64, error) {
	if len(receiverIDs) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).
		Where("room_id = ? AND receiver_id IN ? AND is_used = ?", roomID, receiverIDs, false).
		Delete(&model.Coupon{})
	return result.RowsAffected, result.Error
}
