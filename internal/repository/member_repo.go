package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/ThemOfWind/CTUDY-SERVER/internal/model"
)

// MemberRepository 成员数据访问接口
type MemberRepository interface {
	Create(ctx context.Context, member *model.Member) error
	GetByID(ctx context.Context, id string) (*model.Member, error)
	GetByUsername(ctx context.Context, username string) (*model.Member, error)
	GetByEmail(ctx context.Context, email string) (*model.Member, error)
	// ListActiveByIDs 返回 ids 中存在且启用的成员，忽略不存在的 id
	ListActiveByIDs(ctx context.Context, ids []string) ([]model.Member, error)
	SearchByUsername(ctx context.Context, keyword string, limit int) ([]model.Member, error)
	Update(ctx context.Context, member *model.Member) error
	Delete(ctx context.Context, id string) error
}

// memberRepo MemberRepository 的 GORM 实现
type memberRepo struct {
	db *gorm.DB
}

// NewMemberRepo 创建 MemberRepository 实例
func NewMemberRepo(db *gorm.DB) MemberRepository {
	return &memberRepo{db: db}
}

func (r *memberRepo) Create(ctx context.Context, member *model.Member) error {
	return r.db.WithContext(ctx).Create(member).Error
}

func (r *memberRepo) GetByID(ctx context.Context, id string) (*model.Member, error) {
	var member model.Member
	err := r.db.WithContext(ctx).
		Where("member_id = ?", id).
		First(&member).Error
	if err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *memberRepo) GetByUsername(ctx context.Context, username string) (*model.Member, error) {
	var member model.Member
	err := r.db.WithContext(ctx).
		Where("username = ?", username).
		First(&member).Error
	if err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *memberRepo) GetByEmail(ctx context.Context, email string) (*model.Member, error) {
	var member model.Member
	err := r.db.WithContext(ctx).
		Where("email = ?", email).
		First(&member).Error
	if err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *memberRepo) ListActiveByIDs(ctx context.Context, ids []string) ([]model.Member, error) {
	var members []model.Member
	if len(ids) == 0 {
		return members, nil
	}
	err := r.db.WithContext(ctx).
		Where("member_id IN ? AND is_active = ?", ids, true).
		Order("username ASC").
		Find(&members).Error
	return members, err
}

func (r *memberRepo) SearchByUsername(ctx context.Context, keyword string, limit int) ([]model.Member, error) {
	var members []model.Member
	err := r.db.WithContext(ctx).
		Where("username LIKE ? AND is_active = ?", "%"+keyword+"%", true).
		Order("username ASC").
		Limit(limit).
		Find(&members).Error
	return members, err
}

func (r *memberRepo) Update(ctx context.Context, member *model.Member) error {
	return r.db.WithContext(ctx).Save(member).Error
}

// Delete 软删除成员（写入 deleted_at）
func (r *memberRepo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Where("member_id = ?", id).
		Delete(&model.Member{}).Error
}
