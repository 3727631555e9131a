package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ThemOfWind/CTUDY-SERVER/internal/model"
)

// CertificateCodeRepository 找回密码验证码数据访问接口
type CertificateCodeRepository interface {
	Create(ctx context.Context, code *model.CertificateCode) error
	// FindValid 查找成员最新一条未过期、未校验的匹配验证码
	FindValid(ctx context.Context, memberID, code string, now time.Time) (*model.CertificateCode, error)
	// FindChecked 在事务内锁定成员已校验、未过期且未使用的重置凭证
	FindChecked(ctx context.Context, memberID, key string, now time.Time) (*model.CertificateCode, error)
	// Consume 将凭证标记为已使用，返回受影响行数（0 表示已被使用）
	Consume(ctx context.Context, id string, usedAt time.Time) (int64, error)
	Update(ctx context.Context, code *model.CertificateCode) error
}

// certificateCodeRepo CertificateCodeRepository 的 GORM 实现
type certificateCodeRepo struct {
	db *gorm.DB
}

// NewCertificateCodeRepo 创建 CertificateCodeRepository 实例
func NewCertificateCodeRepo(db *gorm.DB) CertificateCodeRepository {
	return &certificateCodeRepo{db: db}
}

func (r *certificateCodeRepo) Create(ctx context.Context, code *model.CertificateCode) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(code).Error
}

func (r *certificateCodeRepo) FindValid(ctx context.Context, memberID, code string, now time.Time) (*model.CertificateCode, error) {
	var cc model.CertificateCode
	err := r.db.WithContext(ctx).
		Where("member_id = ? AND code = ? AND expires_at > ? AND is_checked = ? AND used_at IS NULL",
			memberID, code, now, false).
		Order("created_at DESC").
		First(&cc).Error
	if err != nil {
		return nil, err
	}
	return &cc, nil
}

func (r *certificateCodeRepo) FindChecked(ctx context.Context, memberID, key string, now time.Time) (*model.CertificateCode, error) {
	var cc model.CertificateCode
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("member_id = ? AND key = ? AND is_checked = ? AND used_at IS NULL AND expires_at > ?",
			memberID, key, true, now).
		Order("created_at DESC").
		First(&cc).Error
	if err != nil {
		return nil, err
	}
	return &cc, nil
}

func (r *certificateCodeRepo) Consume(ctx context.Context, id string, usedAt time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.CertificateCode{}).
		Where("certificate_id = ? AND used_at IS NULL", id).
		Update("used_at", usedAt)
	return result.RowsAffected, result.Error
}

func (r *certificateCodeRepo) Update(ctx context.Context, code *model.CertificateCode) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(code).Error
}
