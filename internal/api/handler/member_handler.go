package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ThemOfWind/CTUDY-SERVER/internal/dto"
	"github.com/ThemOfWind/CTUDY-SERVER/internal/service"
	"github.com/ThemOfWind/CTUDY-SERVER/pkg/response"
)

// MemberHandler 成员资料 HTTP 处理器
type MemberHandler struct {
	memberSvc service.MemberService
	authSvc   service.AuthService
	logger    *zap.Logger
}

// NewMemberHandler 创建 MemberHandler
func NewMemberHandler(memberSvc service.MemberService, authSvc service.AuthService, logger *zap.Logger) *MemberHandler {
	return &MemberHandler{memberSvc: memberSvc, authSvc: authSvc, logger: logger}
}

// GetProfile 获取当前成员资料
// GET /api/v2/account/profile
func (h *MemberHandler) GetProfile(c *gin.Context) {
	memberID, ok := MustGetMemberID(c)
	if !ok {
		return
	}

	result, err := h.memberSvc.GetProfile(c.Request.Context(), memberID)
	if err != nil {
		response.FromError(c, h.logger, err)
		return
	}
	response.OK(c, result)
}

// UpdateProfile 更新姓名 / 头像
// PUT /api/v2/account/profile
func (h *MemberHandler) UpdateProfile(c *gin.Context) {
	memberID, ok := MustGetMemberID(c)
	if !ok {
		return
	}

	var req dto.UpdateProfileRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.memberSvc.UpdateProfile(c.Request.Context(), memberID, &req)
	if err != nil {
		response.FromError(c, h.logger, err)
		return
	}
	response.OK(c, result)
}

// ChangePassword 修改密码
// PUT /api/v2/account/password
func (h *MemberHandler) ChangePassword(c *gin.Context) {
	memberID, ok := MustGetMemberID(c)
	if !ok {
		return
	}

	var req dto.ChangePasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.memberSvc.ChangePassword(c.Request.Context(), memberID, &req); err != nil {
		response.FromError(c, h.logger, err)
		return
	}
	response.Success(c)
}

// Search 按用户名搜索成员
// GET /api/v2/account/search?username=
func (h *MemberHandler) Search(c *gin.Context) {
	memberID, ok := MustGetMemberID(c)
	if !ok {
		return
	}

	var req dto.SearchMemberRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "参数校验失败")
		return
	}

	result, err := h.memberSvc.Search(c.Request.Context(), memberID, req.Username)
	if err != nil {
		response.FromError(c, h.logger, err)
		return
	}
	response.OK(c, result)
}

// Withdraw 注销账号，成功后当前 Token 一并作废
// DELETE /api/v2/account/withdraw
func (h *MemberHandler) Withdraw(c *gin.Context) {
	memberID, ok := MustGetMemberID(c)
	if !ok {
		return
	}

	if err := h.memberSvc.Withdraw(c.Request.Context(), memberID); err != nil {
		response.FromError(c, h.logger, err)
		return
	}

	if jti, exp, ok := tokenMeta(c); ok {
		if err := h.authSvc.Logout(c.Request.Context(), jti, exp); err != nil {
			h.logger.Warn("注销后作废 Token 失败", zap.String("member_id", memberID), zap.Error(err))
		}
	}
	response.Success(c)
}
