package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/ThemOfWind/CTUDY-SERVER/config"
	"github.com/ThemOfWind/CTUDY-SERVER/internal/dto"
	"github.com/ThemOfWind/CTUDY-SERVER/internal/model"
	"github.com/ThemOfWind/CTUDY-SERVER/pkg/jwt"
	"github.com/ThemOfWind/CTUDY-SERVER/pkg/redis"
)

// captureSender 记录发出的邮件
type captureSender struct {
	to, subject, body string
	err               error
}

func (c *captureSender) Send(_ context.Context, to, subject, body string) error {
	c.to, c.subject, c.body = to, subject, body
	return c.err
}

func testAuthConfig() *config.Config {
	return &config.Config{
		Auth: config.AuthConfig{
			JWTSecret:       "test-secret-key-for-unit-tests",
			AccessTokenTTL:  15 * time.Minute,
			RefreshTokenTTL: 7 * 24 * time.Hour,
			CertificateTTL:  10 * time.Minute,
		},
	}
}

func setupTestAuthService(t *testing.T, withRedis bool) (*authService, *mockStore, *captureSender) {
	t.Helper()
	repo, st := newMockRepository()
	cfg := testAuthConfig()
	mailer := &captureSender{}

	var rdb *redis.Client
	if withRedis {
		mr := miniredis.RunT(t)
		var err error
		rdb, err = redis.NewClient(&config.RedisConfig{Addr: mr.Addr()}, zap.NewNop())
		if err != nil {
			t.Fatalf("连接 miniredis 失败: %v", err)
		}
		t.Cleanup(func() { rdb.Close() })
	}

	svc := NewAuthService(cfg, repo, jwt.NewManager(&cfg.Auth), rdb, mailer, zap.NewNop()).(*authService)
	return svc, st, mailer
}

// seedPasswordMember 写入一个密码已知的成员
func seedPasswordMember(t *testing.T, st *mockStore, username, password string) *model.Member {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("生成密码哈希失败: %v", err)
	}
	m := st.addMember(username)
	m.PasswordHash = string(hash)
	return m
}

// ── Signup / CheckAvailability ──

func TestAuthService_Signup_Success(t *testing.T) {
	svc, st, _ := setupTestAuthService(t, false)

	resp, err := svc.Signup(context.Background(), &dto.SignupRequest{
		Username: "newbie",
		Password: "password123",
		Name:     "新人",
		Email:    "Newbie@Ctudy.KR",
	})
	if err != nil {
		t.Fatalf("Signup 应成功: %v", err)
	}
	if resp.ID == "" || resp.Email != "newbie@ctudy.kr" {
		t.Errorf("注册结果错误: %+v", resp)
	}
	stored := st.members[resp.ID]
	if stored == nil || bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("password123")) != nil {
		t.Errorf("密码应以 bcrypt 哈希保存")
	}
}

func TestAuthService_Signup_Conflicts(t *testing.T) {
	svc, st, _ := setupTestAuthService(t, false)
	st.addMember("alice")

	_, err := svc.Signup(context.Background(), &dto.SignupRequest{
		Username: "alice", Password: "password123", Name: "A", Email: "other@ctudy.kr",
	})
	if !errors.Is(err, ErrUsernameTaken) {
		t.Errorf("期望 ErrUsernameTaken，实际: %v", err)
	}

	_, err = svc.Signup(context.Background(), &dto.SignupRequest{
		Username: "alice2", Password: "password123", Name: "A", Email: "alice@ctudy.kr",
	})
	if !errors.Is(err, ErrEmailTaken) {
		t.Errorf("期望 ErrEmailTaken，实际: %v", err)
	}
}

func TestAuthService_Signup_ConcurrentDuplicate(t *testing.T) {
	svc, st, _ := setupTestAuthService(t, false)

	// 预检通过后，另一请求抢先以相同邮箱注册
	st.hooks["Member.Create"] = func() { st.addMember("bob") }
	st.errs["Member.Create"] = gorm.ErrDuplicatedKey

	_, err := svc.Signup(context.Background(), &dto.SignupRequest{
		Username: "carol", Password: "password123", Name: "Carol", Email: "bob@ctudy.kr",
	})
	if !errors.Is(err, ErrEmailTaken) {
		t.Errorf("邮箱冲突期望 ErrEmailTaken，实际: %v", err)
	}
}

func TestAuthService_Signup_DuplicateUnresolved(t *testing.T) {
	svc, st, _ := setupTestAuthService(t, false)
	st.errs["Member.Create"] = gorm.ErrDuplicatedKey

	_, err := svc.Signup(context.Background(), &dto.SignupRequest{
		Username: "carol", Password: "password123", Name: "Carol", Email: "carol@ctudy.kr",
	})
	if !errors.Is(err, ErrAccountTaken) {
		t.Errorf("无法确定冲突字段时期望 ErrAccountTaken，实际: %v", err)
	}
}

func TestAuthService_CheckAvailability(t *testing.T) {
	svc, st, _ := setupTestAuthService(t, false)
	st.addMember("alice")

	if _, err := svc.CheckAvailability(context.Background(), &dto.CheckAvailabilityRequest{}); !errors.Is(err, ErrAvailabilityParam) {
		t.Errorf("期望 ErrAvailabilityParam，实际: %v", err)
	}
	if _, err := svc.CheckAvailability(context.Background(), &dto.CheckAvailabilityRequest{Username: "alice"}); !errors.Is(err, ErrUsernameTaken) {
		t.Errorf("期望 ErrUsernameTaken，实际: %v", err)
	}
	resp, err := svc.CheckAvailability(context.Background(), &dto.CheckAvailabilityRequest{Username: "bob", Email: "bob@ctudy.kr"})
	if err != nil || !resp.Available {
		t.Errorf("bob 应可用: %v", err)
	}
}

// ── Signin / Refresh / Logout ──

func TestAuthService_Signin(t *testing.T) {
	svc, st, _ := setupTestAuthService(t, false)
	seedPasswordMember(t, st, "alice", "password123")

	resp, err := svc.Signin(context.Background(), &dto.SigninRequest{Username: "alice", Password: "password123"})
	if err != nil {
		t.Fatalf("Signin 应成功: %v", err)
	}
	if resp.AccessToken == "" || resp.RefreshToken == "" || resp.Member.Username != "alice" {
		t.Errorf("登录结果错误: %+v", resp)
	}

	claims, err := svc.jwtMgr.ParseToken(resp.AccessToken)
	if err != nil || claims.MemberID != "m-alice" || claims.TokenType != jwt.TokenTypeAccess {
		t.Errorf("AccessToken 内容错误: %+v, %v", claims, err)
	}
}

func TestAuthService_Signin_Failures(t *testing.T) {
	svc, st, _ := setupTestAuthService(t, false)
	seedPasswordMember(t, st, "alice", "password123")
	seedPasswordMember(t, st, "frozen", "password123").IsActive = false

	tests := []struct {
		name     string
		username string
		password string
		wantErr  error
	}{
		{"密码错误", "alice", "wrong-password", ErrInvalidCredentials},
		{"用户不存在", "ghost", "password123", ErrInvalidCredentials},
		{"账号停用", "frozen", "password123", ErrMemberInactive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Signin(context.Background(), &dto.SigninRequest{Username: tt.username, Password: tt.password})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("期望 %v，实际: %v", tt.wantErr, err)
			}
		})
	}
}

func TestAuthService_Refresh_Rotation(t *testing.T) {
	svc, st, _ := setupTestAuthService(t, true)
	seedPasswordMember(t, st, "alice", "password123")

	login, err := svc.Signin(context.Background(), &dto.SigninRequest{Username: "alice", Password: "password123"})
	if err != nil {
		t.Fatalf("Signin 应成功: %v", err)
	}

	refreshed, err := svc.Refresh(context.Background(), login.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh 应成功: %v", err)
	}
	if refreshed.RefreshToken == login.RefreshToken {
		t.Errorf("应签发新的 RefreshToken")
	}

	// 旧 RefreshToken 已作废
	if _, err := svc.Refresh(context.Background(), login.RefreshToken); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Errorf("期望 ErrInvalidRefreshToken，实际: %v", err)
	}
}

func TestAuthService_Refresh_RejectsAccessToken(t *testing.T) {
	svc, st, _ := setupTestAuthService(t, false)
	seedPasswordMember(t, st, "alice", "password123")

	login, _ := svc.Signin(context.Background(), &dto.SigninRequest{Username: "alice", Password: "password123"})
	if _, err := svc.Refresh(context.Background(), login.AccessToken); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Errorf("期望 ErrInvalidRefreshToken，实际: %v", err)
	}
	if _, err := svc.Refresh(context.Background(), "not-a-token"); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Errorf("期望 ErrInvalidRefreshToken，实际: %v", err)
	}
}

func TestAuthService_Logout(t *testing.T) {
	svc, _, _ := setupTestAuthService(t, true)

	if err := svc.Logout(context.Background(), "jti-1", time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("Logout 应成功: %v", err)
	}
	revoked, err := svc.rdb.IsBlacklisted(context.Background(), "jti-1")
	if err != nil || !revoked {
		t.Errorf("jti 应进入黑名单: %v", err)
	}
}

func TestAuthService_Logout_WithoutRedis(t *testing.T) {
	svc, _, _ := setupTestAuthService(t, false)

	if err := svc.Logout(context.Background(), "jti-1", time.Now().Add(time.Minute)); err != nil {
		t.Errorf("无 Redis 时登出应直接成功: %v", err)
	}
}

// ── 找回用户名 / 密码 ──

func TestAuthService_FindUsername(t *testing.T) {
	svc, st, _ := setupTestAuthService(t, false)
	st.addMember("alice")

	resp, err := svc.FindUsername(context.Background(), &dto.FindUsernameRequest{Email: "ALICE@ctudy.kr"})
	if err != nil || resp.Username != "alice" {
		t.Errorf("应找回 alice: %+v, %v", resp, err)
	}
	if _, err := svc.FindUsername(context.Background(), &dto.FindUsernameRequest{Email: "ghost@ctudy.kr"}); !errors.Is(err, ErrMemberNotFound) {
		t.Errorf("期望 ErrMemberNotFound，实际: %v", err)
	}
}

func TestAuthService_PasswordReset_FullFlow(t *testing.T) {
	svc, st, mailer := setupTestAuthService(t, false)
	seedPasswordMember(t, st, "alice", "old-password")
	ctx := context.Background()

	if err := svc.RequestPasswordReset(ctx, &dto.PasswordResetRequest{Username: "alice", Email: "alice@ctudy.kr"}); err != nil {
		t.Fatalf("RequestPasswordReset 应成功: %v", err)
	}
	if len(st.certs) != 1 {
		t.Fatalf("应生成 1 条验证码，实际 %d", len(st.certs))
	}
	var cc *model.CertificateCode
	for _, c := range st.certs {
		cc = c
	}
	if mailer.to != "alice@ctudy.kr" || !strings.Contains(mailer.body, cc.Code) {
		t.Errorf("邮件应发送至 alice 且包含验证码，实际: to=%s body=%s", mailer.to, mailer.body)
	}
	if len(cc.Code) != 6 || len(cc.Key) != 6 || cc.Code == cc.Key {
		t.Errorf("验证码与 key 应为不同的 6 位字符串: %s / %s", cc.Code, cc.Key)
	}

	// 验证码大小写不敏感
	cert, err := svc.VerifyCertificate(ctx, &dto.VerifyCertificateRequest{
		Username: "alice", Email: "alice@ctudy.kr", Code: strings.ToLower(cc.Code),
	})
	if err != nil {
		t.Fatalf("VerifyCertificate 应成功: %v", err)
	}
	if cert.Key != cc.Key {
		t.Errorf("应返回重置 key")
	}

	// 已校验的验证码不可再次校验
	if _, err := svc.VerifyCertificate(ctx, &dto.VerifyCertificateRequest{
		Username: "alice", Email: "alice@ctudy.kr", Code: cc.Code,
	}); !errors.Is(err, ErrCertificateNotFound) {
		t.Errorf("期望 ErrCertificateNotFound，实际: %v", err)
	}

	reset := &dto.ResetPasswordRequest{Username: "alice", Email: "alice@ctudy.kr", Key: cert.Key, Password: "new-password"}
	if err := svc.ResetPassword(ctx, reset); err != nil {
		t.Fatalf("ResetPassword 应成功: %v", err)
	}
	if _, err := svc.Signin(ctx, &dto.SigninRequest{Username: "alice", Password: "new-password"}); err != nil {
		t.Errorf("新密码应可登录: %v", err)
	}

	// key 只能使用一次
	if err := svc.ResetPassword(ctx, reset); !errors.Is(err, ErrResetKeyInvalid) {
		t.Errorf("期望 ErrResetKeyInvalid，实际: %v", err)
	}
}

func TestAuthService_VerifyCertificate_Expired(t *testing.T) {
	svc, st, _ := setupTestAuthService(t, false)
	st.addMember("alice")
	ctx := context.Background()

	base := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }
	if err := svc.RequestPasswordReset(ctx, &dto.PasswordResetRequest{Username: "alice", Email: "alice@ctudy.kr"}); err != nil {
		t.Fatalf("RequestPasswordReset 应成功: %v", err)
	}
	var code string
	for _, c := range st.certs {
		code = c.Code
	}

	svc.now = func() time.Time { return base.Add(11 * time.Minute) }
	_, err := svc.VerifyCertificate(ctx, &dto.VerifyCertificateRequest{Username: "alice", Email: "alice@ctudy.kr", Code: code})
	if !errors.Is(err, ErrCertificateNotFound) {
		t.Errorf("过期验证码期望 ErrCertificateNotFound，实际: %v", err)
	}
}

// verifiedKey 申请并校验验证码，返回重置 key
func verifiedKey(t *testing.T, svc *authService, st *mockStore) string {
	t.Helper()
	ctx := context.Background()
	if err := svc.RequestPasswordReset(ctx, &dto.PasswordResetRequest{Username: "alice", Email: "alice@ctudy.kr"}); err != nil {
		t.Fatalf("RequestPasswordReset 应成功: %v", err)
	}
	var code string
	for _, c := range st.certs {
		code = c.Code
	}
	cert, err := svc.VerifyCertificate(ctx, &dto.VerifyCertificateRequest{Username: "alice", Email: "alice@ctudy.kr", Code: code})
	if err != nil {
		t.Fatalf("VerifyCertificate 应成功: %v", err)
	}
	return cert.Key
}

func TestAuthService_ResetPassword_KeyExpires(t *testing.T) {
	svc, st, _ := setupTestAuthService(t, false)
	seedPasswordMember(t, st, "alice", "old-password")

	base := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }
	key := verifiedKey(t, svc, st)

	svc.now = func() time.Time { return base.Add(11 * time.Minute) }
	err := svc.ResetPassword(context.Background(), &dto.ResetPasswordRequest{
		Username: "alice", Email: "alice@ctudy.kr", Key: key, Password: "new-password",
	})
	if !errors.Is(err, ErrResetKeyInvalid) {
		t.Errorf("过期 key 期望 ErrResetKeyInvalid，实际: %v", err)
	}
}

func TestAuthService_ResetPassword_KeyWindowStartsAtVerify(t *testing.T) {
	svc, st, _ := setupTestAuthService(t, false)
	seedPasswordMember(t, st, "alice", "old-password")

	base := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }
	if err := svc.RequestPasswordReset(context.Background(), &dto.PasswordResetRequest{Username: "alice", Email: "alice@ctudy.kr"}); err != nil {
		t.Fatalf("RequestPasswordReset 应成功: %v", err)
	}
	var code string
	for _, c := range st.certs {
		code = c.Code
	}

	// 临近过期时校验，key 仍有完整有效期
	svc.now = func() time.Time { return base.Add(9 * time.Minute) }
	cert, err := svc.VerifyCertificate(context.Background(), &dto.VerifyCertificateRequest{Username: "alice", Email: "alice@ctudy.kr", Code: code})
	if err != nil {
		t.Fatalf("VerifyCertificate 应成功: %v", err)
	}

	svc.now = func() time.Time { return base.Add(15 * time.Minute) }
	if err := svc.ResetPassword(context.Background(), &dto.ResetPasswordRequest{
		Username: "alice", Email: "alice@ctudy.kr", Key: cert.Key, Password: "new-password",
	}); err != nil {
		t.Errorf("校验后有效期内重置应成功: %v", err)
	}
}

func TestAuthService_ResetPassword_ConsumedConcurrently(t *testing.T) {
	svc, st, _ := setupTestAuthService(t, false)
	member := seedPasswordMember(t, st, "alice", "old-password")
	oldHash := member.PasswordHash
	key := verifiedKey(t, svc, st)

	// 查到凭证后、消费前，另一请求先完成了消费
	st.hooks["CertificateCode.Consume"] = func() {
		for _, c := range st.certs {
			if c.UsedAt == nil {
				used := time.Now()
				c.UsedAt = &used
			}
		}
	}

	err := svc.ResetPassword(context.Background(), &dto.ResetPasswordRequest{
		Username: "alice", Email: "alice@ctudy.kr", Key: key, Password: "new-password",
	})
	if !errors.Is(err, ErrResetKeyInvalid) {
		t.Errorf("凭证已被消费期望 ErrResetKeyInvalid，实际: %v", err)
	}
	if st.members[member.MemberID].PasswordHash != oldHash {
		t.Errorf("消费失败时不应修改密码")
	}
}

func TestAuthService_RequestPasswordReset_EmailMismatch(t *testing.T) {
	svc, st, mailer := setupTestAuthService(t, false)
	st.addMember("alice")

	err := svc.RequestPasswordReset(context.Background(), &dto.PasswordResetRequest{Username: "alice", Email: "bob@ctudy.kr"})
	if !errors.Is(err, ErrMemberNotFound) {
		t.Errorf("期望 ErrMemberNotFound，实际: %v", err)
	}
	if mailer.to != "" || len(st.certs) != 0 {
		t.Errorf("邮箱不匹配时不应生成验证码或发信")
	}
}
