package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ThemOfWind/CTUDY-SERVER/internal/dto"
	"github.com/ThemOfWind/CTUDY-SERVER/internal/service"
	"github.com/ThemOfWind/CTUDY-SERVER/pkg/response"
)

// CouponHandler 券模块 HTTP 处理器
type CouponHandler struct {
	couponSvc service.CouponService
	logger    *zap.Logger
}

// NewCouponHandler 创建 CouponHandler
func NewCouponHandler(couponSvc service.CouponService, logger *zap.Logger) *CouponHandler {
	return &CouponHandler{couponSvc: couponSvc, logger: logger}
}

// ListCoupons 按模式列出房间内的券
// GET /api/v2/coupon?room_id=&mode=a|s|r|e
func (h *CouponHandler) ListCoupons(c *gin.Context) {
	memberID, ok := MustGetMemberID(c)
	if !ok {
		return
	}

	var req dto.CouponListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "room_id 无效")
		return
	}

	result, err := h.couponSvc.ListCoupons(c.Request.Context(), memberID, req.RoomID, req.Mode)
	if err != nil {
		response.FromError(c, h.logger, err)
		return
	}
	response.OK(c, result)
}

// CreateCoupon 向房间内其他成员发券
// POST /api/v2/coupon
func (h *CouponHandler) CreateCoupon(c *gin.Context) {
	memberID, ok := MustGetMemberID(c)
	if !ok {
		return
	}

	var req dto.CreateCouponRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.couponSvc.CreateCoupon(c.Request.Context(), memberID, &req)
	if err != nil {
		response.FromError(c, h.logger, err)
		return
	}
	response.Created(c, result)
}

// UseCoupon 使用券（仅接收人）
// DELETE /api/v2/coupon/:id
func (h *CouponHandler) UseCoupon(c *gin.Context) {
	memberID, ok := MustGetMemberID(c)
	if !ok {
		return
	}
	couponID, ok := pathID(c, "券不存在")
	if !ok {
		return
	}

	if err := h.couponSvc.UseCoupon(c.Request.Context(), memberID, couponID); err != nil {
		response.FromError(c, h.logger, err)
		return
	}
	response.Success(c)
}
