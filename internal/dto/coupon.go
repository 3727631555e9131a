package dto

// 券列表模式
const (
	CouponModeAll      = "a" // 发出与收到的全部未使用券
	CouponModeSent     = "s" // 发出的未使用券
	CouponModeReceived = "r" // 收到且当前有效的券
	CouponModeExpired  = "e" // 收到但已过期的券
)

// ── 券模块 DTO ──

// CreateCouponRequest 发券请求，日期格式 YYYY-MM-DD
type CreateCouponRequest struct {
	Name       string `json:"name"        binding:"required,max=100"`
	RoomID     string `json:"room_id"     binding:"required,uuid"`
	ReceiverID string `json:"receiver_id" binding:"required,uuid"`
	StartDate  string `json:"start_date"  binding:"required,datetime=2006-01-02"`
	EndDate    string `json:"end_date"    binding:"required,datetime=2006-01-02"`
}

// CouponListRequest 券列表查询参数
type CouponListRequest struct {
	RoomID string `form:"room_id" binding:"required,uuid"`
	Mode   string `form:"mode"`
}
