package dto

// ── 成员模块 DTO ──

// UpdateProfileRequest 更新个人资料请求
type UpdateProfileRequest struct {
	Name  *string `json:"name"  binding:"omitempty,min=1,max=30"`
	Image *string `json:"image" binding:"omitempty,max=255"`
}

// SearchMemberRequest 按用户名搜索成员
type SearchMemberRequest struct {
	Username string `form:"username" binding:"required,max=150"`
}
