package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
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

var (
	ErrInvalidCredentials  = apperrors.New(apperrors.KindUnauthenticated, "用户名或密码错误")
	ErrMemberInactive      = apperrors.New(apperrors.KindUnauthenticated, "账号已停用")
	ErrInvalidRefreshToken = apperrors.New(apperrors.KindUnauthenticated, "Refresh Token 无效或已过期")
	ErrUsernameTaken       = apperrors.New(apperrors.KindConflict, "用户名已被使用")
	ErrEmailTaken          = apperrors.New(apperrors.KindConflict, "邮箱已被使用")
	ErrAccountTaken        = apperrors.New(apperrors.KindConflict, "用户名或邮箱已被使用")
	ErrAvailabilityParam   = apperrors.New(apperrors.KindValidation, "请提供 username 或 email")
	ErrMemberNotFound      = apperrors.New(apperrors.KindNotFound, "成员不存在")
	ErrCertificateNotFound = apperrors.New(apperrors.KindNotFound, "验证码无效或已过期")
	ErrResetKeyInvalid     = apperrors.New(apperrors.KindNotFound, "重置凭证无效")
)

// AuthService 账号认证业务接口
type AuthService interface {
	Signup(ctx context.Context, req *dto.SignupRequest) (*dto.MemberResponse, error)
	// CheckAvailability 检查用户名 / 邮箱是否可用，已被占用返回 Conflict
	CheckAvailability(ctx context.Context, req *dto.CheckAvailabilityRequest) (*dto.AvailabilityResponse, error)
	Signin(ctx context.Context, req *dto.SigninRequest) (*dto.TokenResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*dto.TokenResponse, error)
	// Logout 将 Access Token 的 jti 加入黑名单直至其过期
	Logout(ctx context.Context, jti string, expiresAt time.Time) error

	FindUsername(ctx context.Context, req *dto.FindUsernameRequest) (*dto.FindUsernameResponse, error)
	// RequestPasswordReset 生成验证码并通过邮件发送
	RequestPasswordReset(ctx context.Context, req *dto.PasswordResetRequest) error
	// VerifyCertificate 校验验证码，通过后返回一次性重置 key
	VerifyCertificate(ctx context.Context, req *dto.VerifyCertificateRequest) (*dto.CertificateResponse, error)
	ResetPassword(ctx context.Context, req *dto.ResetPasswordRequest) error
}

type authService struct {
	cfg    *config.Config
	repo   *repository.Repository
	jwtMgr *jwt.Manager
	rdb    *redis.Client
	mailer mail.Sender
	logger *zap.Logger
	now    func() time.Time
}

// NewAuthService 创建 AuthService 实例
func NewAuthService(
	cfg *config.Config,
	repo *repository.Repository,
	jwtMgr *jwt.Manager,
	rdb *redis.Client,
	mailer mail.Sender,
	logger *zap.Logger,
) AuthService {
	return &authService{
		cfg:    cfg,
		repo:   repo,
		jwtMgr: jwtMgr,
		rdb:    rdb,
		mailer: mailer,
		logger: logger,
		now:    time.Now,
	}
}

// ────────────────────── Signup ──────────────────────

func (s *authService) Signup(ctx context.Context, req *dto.SignupRequest) (*dto.MemberResponse, error) {
	username := strings.TrimSpace(req.Username)
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if err := s.ensureUnused(ctx, username, email); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("密码哈希失败", zap.Error(err))
		return nil, apperrors.Internal(err)
	}

	member := &model.Member{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		Name:         strings.TrimSpace(req.Name),
		IsActive:     true,
	}
	if err := s.repo.Member.Create(ctx, member); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// 并发注册撞上唯一索引，重新查询以确定冲突字段
			if cerr := s.ensureUnused(ctx, username, email); cerr != nil {
				return nil, cerr
			}
			return nil, ErrAccountTaken
		}
		return nil, storeError(s.logger, "创建成员失败", err)
	}

	s.logger.Info("新成员注册", zap.String("member_id", member.MemberID), zap.String("username", username))
	return toMemberResponse(member), nil
}

// ────────────────────── CheckAvailability ──────────────────────

func (s *authService) CheckAvailability(ctx context.Context, req *dto.CheckAvailabilityRequest) (*dto.AvailabilityResponse, error) {
	username := strings.TrimSpace(req.Username)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if username == "" && email == "" {
		return nil, ErrAvailabilityParam
	}
	if err := s.ensureUnused(ctx, username, email); err != nil {
		return nil, err
	}
	return &dto.AvailabilityResponse{Available: true}, nil
}

// ensureUnused 空参数跳过检查
func (s *authService) ensureUnused(ctx context.Context, username, email string) error {
	if username != "" {
		_, err := s.repo.Member.GetByUsername(ctx, username)
		if err == nil {
			return ErrUsernameTaken
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return storeError(s.logger, "查询用户名失败", err)
		}
	}
	if email != "" {
		_, err := s.repo.Member.GetByEmail(ctx, email)
		if err == nil {
			return ErrEmailTaken
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return storeError(s.logger, "查询邮箱失败", err)
		}
	}
	return nil
}

// ────────────────────── Signin ──────────────────────

func (s *authService) Signin(ctx context.Context, req *dto.SigninRequest) (*dto.TokenResponse, error) {
	// 1. 查询成员
	member, err := s.repo.Member.GetByUsername(ctx, strings.TrimSpace(req.Username))
	if err != nil {
		return nil, notFoundOr(s.logger, "查询成员失败", err, ErrInvalidCredentials)
	}

	// 2. 验证密码 (bcrypt)
	if err := bcrypt.CompareHashAndPassword([]byte(member.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !member.IsActive {
		return nil, ErrMemberInactive
	}

	// 3. 生成 Token 对
	return s.issueTokens(member)
}

// ────────────────────── Refresh ──────────────────────

func (s *authService) Refresh(ctx context.Context, refreshToken string) (*dto.TokenResponse, error) {
	claims, err := s.jwtMgr.ParseToken(refreshToken)
	if err != nil || claims.TokenType != jwt.TokenTypeRefresh {
		return nil, ErrInvalidRefreshToken
	}

	if s.rdb != nil {
		revoked, err := s.rdb.IsBlacklisted(ctx, claims.ID)
		if err != nil {
			s.logger.Warn("检查 Token 黑名单失败", zap.Error(err))
		} else if revoked {
			return nil, ErrInvalidRefreshToken
		}
	}

	member, err := s.repo.Member.GetByID(ctx, claims.MemberID)
	if err != nil {
		return nil, notFoundOr(s.logger, "查询成员失败", err, ErrInvalidRefreshToken)
	}
	if !member.IsActive {
		return nil, ErrMemberInactive
	}

	// 轮换：旧 Refresh Token 作废
	if s.rdb != nil && claims.ExpiresAt != nil {
		if err := s.rdb.BlacklistToken(ctx, claims.ID, time.Until(claims.ExpiresAt.Time)); err != nil {
			s.logger.Warn("写入 Token 黑名单失败", zap.Error(err))
		}
	}

	return s.issueTokens(member)
}

// ────────────────────── Logout ──────────────────────

func (s *authService) Logout(ctx context.Context, jti string, expiresAt time.Time) error {
	if s.rdb == nil {
		s.logger.Warn("Redis 不可用，登出未写入黑名单", zap.String("jti", jti))
		return nil
	}
	if err := s.rdb.BlacklistToken(ctx, jti, expiresAt.Sub(s.now())); err != nil {
		return storeError(s.logger, "写入 Token 黑名单失败", err)
	}
	return nil
}

// ────────────────────── FindUsername ──────────────────────

func (s *authService) FindUsername(ctx context.Context, req *dto.FindUsernameRequest) (*dto.FindUsernameResponse, error) {
	member, err := s.repo.Member.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		return nil, notFoundOr(s.logger, "查询成员失败", err, ErrMemberNotFound)
	}
	return &dto.FindUsernameResponse{Username: member.Username}, nil
}

// ────────────────────── 找回密码 ──────────────────────

func (s *authService) RequestPasswordReset(ctx context.Context, req *dto.PasswordResetRequest) error {
	member, err := s.memberByIdentity(ctx, req.Username, req.Email)
	if err != nil {
		return err
	}

	// code 取大写 UUID 十六进制的前 6 位，key 取其后 6 位
	raw := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	cc := &model.CertificateCode{
		MemberID:  member.MemberID,
		Code:      raw[:6],
		Key:       raw[6:12],
		ExpiresAt: s.now().Add(s.cfg.Auth.CertificateTTL),
	}
	if err := s.repo.CertificateCode.Create(ctx, cc); err != nil {
		return storeError(s.logger, "创建验证码失败", err)
	}

	body := fmt.Sprintf("您的 Ctudy 验证码为 %s，%d 分钟内有效。", cc.Code, int(s.cfg.Auth.CertificateTTL.Minutes()))
	if err := s.mailer.Send(ctx, member.Email, "[Ctudy] 找回密码验证码", body); err != nil {
		return storeError(s.logger, "发送验证码邮件失败", err)
	}
	return nil
}

func (s *authService) VerifyCertificate(ctx context.Context, req *dto.VerifyCertificateRequest) (*dto.CertificateResponse, error) {
	member, err := s.memberByIdentity(ctx, req.Username, req.Email)
	if err != nil {
		return nil, err
	}

	cc, err := s.repo.CertificateCode.FindValid(ctx, member.MemberID, strings.ToUpper(req.Code), s.now())
	if err != nil {
		return nil, notFoundOr(s.logger, "查询验证码失败", err, ErrCertificateNotFound)
	}

	// 校验通过后重置 key 另有一个完整的有效期
	cc.IsChecked = true
	cc.ExpiresAt = s.now().Add(s.cfg.Auth.CertificateTTL)
	if err := s.repo.CertificateCode.Update(ctx, cc); err != nil {
		return nil, storeError(s.logger, "更新验证码失败", err)
	}
	return &dto.CertificateResponse{Key: cc.Key}, nil
}

func (s *authService) ResetPassword(ctx context.Context, req *dto.ResetPasswordRequest) error {
	member, err := s.memberByIdentity(ctx, req.Username, req.Email)
	if err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("密码哈希失败", zap.Error(err))
		return apperrors.Internal(err)
	}

	err = runInTx(ctx, s.repo, s.logger, func(txRepo *repository.Repository) error {
		now := s.now()
		cc, err := txRepo.CertificateCode.FindChecked(ctx, member.MemberID, strings.ToUpper(req.Key), now)
		if err != nil {
			return notFoundOr(s.logger, "查询重置凭证失败", err, ErrResetKeyInvalid)
		}

		// 先消费凭证，并发请求中只有一个能成功
		n, err := txRepo.CertificateCode.Consume(ctx, cc.CertificateID, now)
		if err != nil {
			return storeError(s.logger, "更新重置凭证失败", err)
		}
		if n == 0 {
			return ErrResetKeyInvalid
		}

		member.PasswordHash = string(hash)
		if err := txRepo.Member.Update(ctx, member); err != nil {
			return storeError(s.logger, "更新密码失败", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("密码已重置", zap.String("member_id", member.MemberID))
	return nil
}

// ── 辅助函数 ──

// memberByIdentity 按用户名查询并核对邮箱
func (s *authService) memberByIdentity(ctx context.Context, username, email string) (*model.Member, error) {
	member, err := s.repo.Member.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, notFoundOr(s.logger, "查询成员失败", err, ErrMemberNotFound)
	}
	if !strings.EqualFold(member.Email, strings.TrimSpace(email)) {
		return nil, ErrMemberNotFound
	}
	return member, nil
}

func (s *authService) issueTokens(member *model.Member) (*dto.TokenResponse, error) {
	accessToken, err := s.jwtMgr.GenerateAccessToken(member.MemberID, member.Username)
	if err != nil {
		s.logger.Error("生成 AccessToken 失败", zap.Error(err))
		return nil, apperrors.Internal(err)
	}

	refreshToken, err := s.jwtMgr.GenerateRefreshToken(member.MemberID, member.Username)
	if err != nil {
		s.logger.Error("生成 RefreshToken 失败", zap.Error(err))
		return nil, apperrors.Internal(err)
	}

	return &dto.TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int(s.jwtMgr.AccessTokenTTL().Seconds()),
		Member:       *toMemberResponse(member),
	}, nil
}
