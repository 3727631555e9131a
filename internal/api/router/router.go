package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ThemOfWind/CTUDY-SERVER/config"
	"github.com/ThemOfWind/CTUDY-SERVER/internal/api/handler"
	"github.com/ThemOfWind/CTUDY-SERVER/internal/api/middleware"
	"github.com/ThemOfWind/CTUDY-SERVER/pkg/jwt"
	"github.com/ThemOfWind/CTUDY-SERVER/pkg/redis"
)

// Setup 初始化并返回 Gin 路由引擎
// db 与 rdb 可为 nil（测试环境），此时健康检查只返回进程状态
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, rdb *redis.Client, db *gorm.DB, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(cfg.Server.MaxBodyBytes))

	// ── 健康检查 ──
	r.GET("/health", healthCheck(db))

	limited := middleware.RateLimit(rdb, cfg.RateLimit.Limit, cfg.RateLimit.Window, logger)

	// ── API v2 ──
	v2 := r.Group("/api/v2")
	{
		// 账号模块（无需认证）
		account := v2.Group("/account")
		account.Use(limited)
		{
			account.POST("/signup", h.Auth.Signup)
			account.GET("/signup", h.Auth.CheckAvailability)
			account.POST("/signin", h.Auth.Signin)
			account.POST("/refresh", h.Auth.Refresh)
			account.POST("/findid", h.Auth.FindUsername)
			account.POST("/findpw", h.Auth.RequestPasswordReset)
			account.POST("/findpw/certificate", h.Auth.VerifyCertificate)
			account.POST("/findpw/reset", h.Auth.ResetPassword)
		}

		// 需要认证的路由
		authorized := v2.Group("")
		authorized.Use(middleware.JWTAuth(jwtMgr, rdb, logger))
		{
			me := authorized.Group("/account")
			{
				me.GET("/logout", h.Auth.Logout)
				me.DELETE("/withdraw", h.Member.Withdraw)
				me.GET("/profile", h.Member.GetProfile)
				me.PUT("/profile", h.Member.UpdateProfile)
				me.PUT("/password", h.Member.ChangePassword)
				me.GET("/search", h.Member.Search)
			}

			// 房间模块（房主鉴权在 Service 层）
			rooms := authorized.Group("/room")
			{
				rooms.GET("", h.Room.ListRooms)
				rooms.POST("", h.Room.CreateRoom)
				rooms.GET("/:id", h.Room.GetRoom)
				rooms.PUT("/:id", h.Room.UpdateRoom)
				rooms.DELETE("/:id", h.Room.DeleteRoom)
				rooms.PUT("/:id/master", h.Room.TransferMaster)
				rooms.DELETE("/:id/leave", h.Room.LeaveRoom)
				rooms.GET("/:id/members", h.Room.ListMembers)
				rooms.POST("/:id/members", h.Room.AddMembers)
				rooms.DELETE("/:id/members", h.Room.RemoveMembers)
				rooms.GET("/:id/export", h.Export.ExportCoupons)
				rooms.GET("/:id/calendar", h.Export.CouponCalendar)
			}

			// 券模块
			coupons := authorized.Group("/coupon")
			{
				coupons.GET("", h.Coupon.ListCoupons)
				coupons.POST("", h.Coupon.CreateCoupon)
				coupons.DELETE("/:id", h.Coupon.UseCoupon)
			}
		}
	}

	return r
}

func healthCheck(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			sqlDB, err := db.DB()
			if err == nil {
				err = sqlDB.PingContext(ctx)
			}
			if err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "db": "unreachable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
