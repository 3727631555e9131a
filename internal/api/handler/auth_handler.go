package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ThemOfWind/CTUDY-SERVER/internal/dto"
	"github.com/ThemOfWind/CTUDY-SERVER/internal/service"
	"github.com/ThemOfWind/CTUDY-SERVER/pkg/response"
)

// AuthHandler 账号认证 HTTP 处理器
type AuthHandler struct {
	authSvc service.AuthService
	logger  *zap.Logger
}

// NewAuthHandler 创建 AuthHandler
func NewAuthHandler(authSvc service.AuthService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{authSvc: authSvc, logger: logger}
}

// Signup 注册
// POST /api/v2/account/signup
func (h *AuthHandler) Signup(c *gin.Context) {
	var req dto.SignupRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.authSvc.Signup(c.Request.Context(), &req)
	if err != nil {
		response.FromError(c, h.logger, err)
		return
	}
	response.Created(c, result)
}

// CheckAvailability 检查用户名 / 邮箱是否可用
// GET /api/v2/account/signup?username=&email=
func (h *AuthHandler) CheckAvailability(c *gin.Context) {
	var req dto.CheckAvailabilityRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "参数校验失败")
		return
	}

	result, err := h.authSvc.CheckAvailability(c.Request.Context(), &req)
	if err != nil {
		response.FromError(c, h.logger, err)
		return
	}
	response.OK(c, result)
}

// Signin 登录
// POST /api/v2/account/signin
func (h *AuthHandler) Signin(c *gin.Context) {
	var req dto.SigninRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.authSvc.Signin(c.Request.Context(), &req)
	if err != nil {
		response.FromError(c, h.logger, err)
		return
	}
	response.OK(c, result)
}

// Refresh 刷新 Token
// POST /api/v2/account/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req dto.RefreshTokenRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.authSvc.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		response.FromError(c, h.logger, err)
		return
	}
	response.OK(c, result)
}

// Logout 登出，当前 Access Token 加入黑名单
// GET /api/v2/account/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	jti, exp, ok := tokenMeta(c)
	if !ok {
		response.Unauthorized(c, "未认证")
		return
	}

	if err := h.authSvc.Logout(c.Request.Context(), jti, exp); err != nil {
		response.FromError(c, h.logger, err)
		return
	}
	response.Success(c)
}

// FindUsername 按邮箱找回用户名
// POST /api/v2/account/findid
func (h *AuthHandler) FindUsername(c *gin.Context) {
	var req dto.FindUsernameRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.authSvc.FindUsername(c.Request.Context(), &req)
	if err != nil {
		response.FromError(c, h.logger, err)
		return
	}
	response.OK(c, result)
}

// RequestPasswordReset 发送找回密码验证码
// POST /api/v2/account/findpw
func (h *AuthHandler) RequestPasswordReset(c *gin.Context) {
	var req dto.PasswordResetRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.authSvc.RequestPasswordReset(c.Request.Context(), &req); err != nil {
		response.FromError(c, h.logger, err)
		return
	}
	response.Success(c)
}

// VerifyCertificate 校验验证码
// POST /api/v2/account/findpw/certificate
func (h *AuthHandler) VerifyCertificate(c *gin.Context) {
	var req dto.VerifyCertificateRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.authSvc.VerifyCertificate(c.Request.Context(), &req)
	if err != nil {
		response.FromError(c, h.logger, err)
		return
	}
	response.OK(c, result)
}

// ResetPassword 凭 key 重置密码
// POST /api/v2/account/findpw/reset
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req dto.ResetPasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.authSvc.ResetPassword(c.Request.Context(), &req); err != nil {
		response.FromError(c, h.logger, err)
		return
	}
	response.Success(c)
}
