package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repository 所有 Repository 的聚合入口
type Repository struct {
	db *gorm.DB

	Member          MemberRepository
	Room            RoomRepository
	RoomMember      RoomMemberRepository
	Coupon          CouponRepository
	CertificateCode CertificateCodeRepository
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db:              db,
		Member:          NewMemberRepo(db),
		Room:            NewRoomRepo(db),
		RoomMember:      NewRoomMemberRepo(db),
		Coupon:          NewCouponRepo(db),
		CertificateCode: NewCertificateCodeRepo(db),
	}
}

// BeginTx 开启事务
// 单元测试中以 mock 构造的 Repository 没有 db，此时返回 nil，调用方据此跳过提交/回滚
func (r *Repository) BeginTx(ctx context.Context) (*gorm.DB, error) {
	if r.db == nil {
		return nil, nil
	}
	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	return tx, nil
}

// WithTx 返回绑定到事务的 Repository 聚合；tx 为 nil 时返回自身
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return NewRepository(tx)
}
