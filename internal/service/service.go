package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ThemOfWind/CTUDY-SERVER/config"
	"github.com/ThemOfWind/CTUDY-SERVER/internal/dto"
	"github.com/ThemOfWind/CTUDY-SERVER/internal/model"
	"github.com/ThemOfWind/CTUDY-SERVER/internal/repository"
	apperrors "github.com/ThemOfWind/CTUDY-SERVER/pkg/errors"
	"github.com/ThemOfWind/CTUDY-SERVER/pkg/jwt"
	"github.com/ThemOfWind/CTUDY-SERVER/pkg/mail"
	"github.com/ThemOfWind/CTUDY-SERVER/pkg/redis"
)

// Service 所有 Service 的聚合入口
type Service struct {
	Auth   AuthService
	Member MemberService
	Room   RoomService
	Coupon CouponService
	Export ExportService
}

// NewService 创建 Service 聚合
// rdb 可为 nil，此时登出与 Token 轮换不写黑名单
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	jwtMgr *jwt.Manager,
	rdb *redis.Client,
	mailer mail.Sender,
	logger *zap.Logger,
) *Service {
	return &Service{
		Auth:   NewAuthService(cfg, repo, jwtMgr, rdb, mailer, logger),
		Member: NewMemberService(repo, logger),
		Room:   NewRoomService(cfg, repo, logger),
		Coupon: NewCouponService(repo, logger),
		Export: NewExportService(repo, logger),
	}
}

// ── 公共辅助 ──

// dateLayout 券日期格式
const dateLayout = "2006-01-02"

// runInTx 在事务中执行 fn，fn 返回错误或 panic 时回滚
// mock 仓储下 BeginTx 返回 nil，fn 直接作用于原仓储
func runInTx(ctx context.Context, repo *repository.Repository, logger *zap.Logger, fn func(txRepo *repository.Repository) error) error {
	tx, err := repo.BeginTx(ctx)
	if err != nil {
		logger.Error("开启事务失败", zap.Error(err))
		return apperrors.Internal(err)
	}
	defer func() {
		if r := recover(); r != nil {
			if tx != nil {
				tx.Rollback()
			}
			panic(r)
		}
	}()

	if err := fn(repo.WithTx(tx)); err != nil {
		if tx != nil {
			tx.Rollback()
		}
		return err
	}

	if tx != nil {
		if err := tx.Commit().Error; err != nil {
			logger.Error("提交事务失败", zap.Error(err))
			return apperrors.Internal(err)
		}
	}
	return nil
}

// storeError 记录存储层错误并包装为内部错误
func storeError(logger *zap.Logger, msg string, err error) error {
	logger.Error(msg, zap.Error(err))
	return apperrors.Internal(err)
}

// notFoundOr 将 gorm.ErrRecordNotFound 映射为给定的业务错误，其余视为存储错误
func notFoundOr(logger *zap.Logger, msg string, err error, notFound error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound
	}
	return storeError(logger, msg, err)
}

// uniqueIDs 去重并剔除空串与 exclude，保持原有顺序
func uniqueIDs(ids []string, exclude string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || id == exclude {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func toMemberBrief(m *model.Member) dto.MemberBrief {
	return dto.MemberBrief{
		ID:       m.MemberID,
		Username: m.Username,
		Name:     m.Name,
		Image:    m.Image,
	}
}

func toMemberResponse(m *model.Member) *dto.MemberResponse {
	return &dto.MemberResponse{
		ID:        m.MemberID,
		Username:  m.Username,
		Name:      m.Name,
		Email:     m.Email,
		Image:     m.Image,
		CreatedAt: m.CreatedAt.Format(time.RFC3339),
	}
}
