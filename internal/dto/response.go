package dto

// ── 账号模块响应 ──

// TokenResponse Token 对响应
type TokenResponse struct {
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
	ExpiresIn    int            `json:"expires_in"` // Access Token 有效期（秒）
	Member       MemberResponse `json:"member"`
}

// AvailabilityResponse 用户名 / 邮箱可用性
type AvailabilityResponse struct {
	Available bool `json:"available"`
}

// FindUsernameResponse 找回用户名响应
type FindUsernameResponse struct {
	Username string `json:"username"`
}

// CertificateResponse 验证码校验通过后返回重置 key
type CertificateResponse struct {
	Key string `json:"key"`
}

// ── 成员模块响应 ──

// MemberResponse 成员信息（脱敏）
type MemberResponse struct {
	ID        string  `json:"id"`
	Username  string  `json:"username"`
	Name      string  `json:"name"`
	Email     string  `json:"email"`
	Image     *string `json:"image,omitempty"`
	CreatedAt string  `json:"created_at"`
}

// MemberBrief 成员简要信息
type MemberBrief struct {
	ID       string  `json:"id"`
	Username string  `json:"username"`
	Name     string  `json:"name"`
	Image    *string `json:"image,omitempty"`
}

// ── 房间模块响应 ──

// RoomCreatedResponse 创建房间响应
type RoomCreatedResponse struct {
	ID string `json:"id"`
}

// RoomListItem 房间列表项
type RoomListItem struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Banner         *string `json:"banner,omitempty"`
	MemberCount    int64   `json:"member_count"` // 含房主
	MasterName     string  `json:"master_name"`
	MasterUsername string  `json:"master_username"`
	IsMaster       bool    `json:"is_master"`
	CreatedAt      string  `json:"created_at"`
}

// RoomDetailResponse 房间详情
type RoomDetailResponse struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Banner      *string       `json:"banner,omitempty"`
	Master      MemberBrief   `json:"master"`
	Members     []MemberBrief `json:"members"`
	MemberCount int64         `json:"member_count"`
	IsMaster    bool          `json:"is_master"`
	CreatedAt   string        `json:"created_at"`
}

// RoomMemberResponse 房间参与者
type RoomMemberResponse struct {
	MemberBrief
	IsMaster bool `json:"is_master"`
}

// ── 券模块响应 ──

// CouponResponse 券信息
type CouponResponse struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	RoomID    string       `json:"room_id"`
	Sender    *MemberBrief `json:"sender,omitempty"`
	Receiver  *MemberBrief `json:"receiver,omitempty"`
	StartDate string       `json:"start_date"`
	EndDate   string       `json:"end_date"`
	IsUsed    bool         `json:"is_used"`
	UsedAt    *string      `json:"used_at,omitempty"`
}

// CouponListResponse 券列表；a 模式同时返回两组，其余模式只填充对应一组
type CouponListResponse struct {
	SendList    []CouponResponse `json:"send_list"`
	ReceiveList []CouponResponse `json:"receive_list"`
}

// ── 分页请求 ──

// PaginationRequest 通用分页参数
type PaginationRequest struct {
	Page     int `form:"page"      binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// GetPage 获取页码（含默认值）
func (p *PaginationRequest) GetPage() int {
	if p.Page <= 0 {
		return 1
	}
	return p.Page
}

// GetPageSize 获取每页数量（含默认值）
func (p *PaginationRequest) GetPageSize() int {
	if p.PageSize <= 0 {
		return 20
	}
	return p.PageSize
}

// GetOffset 计算偏移量
func (p *PaginationRequest) GetOffset() int {
	return (p.GetPage() - 1) * p.GetPageSize()
}
