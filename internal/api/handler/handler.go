package handler

import (
	"go.uber.org/zap"

	"github.com/ThemOfWind/CTUDY-SERVER/internal/service"
)

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Auth   *AuthHandler
	Member *MemberHandler
	Room   *RoomHandler
	Coupon *CouponHandler
	Export *ExportHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service, logger *zap.Logger) *Handler {
	return &Handler{
		Auth:   NewAuthHandler(svc.Auth, logger),
		Member: NewMemberHandler(svc.Member, svc.Auth, logger),
		Room:   NewRoomHandler(svc.Room, logger),
		Coupon: NewCouponHandler(svc.Coupon, logger),
		Export: NewExportHandler(svc.Export, logger),
	}
}
