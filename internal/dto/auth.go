package dto

// ── 账号模块 DTO ──

// SignupRequest 注册请求
type SignupRequest struct {
	Username string `json:"username" binding:"required,min=4,max=150"`
	Password string `json:"password" binding:"required,min=8,max=64"`
	Name     string `json:"name"     binding:"required,min=1,max=30"`
	Email    string `json:"email"    binding:"required,email,max=255"`
}

// CheckAvailabilityRequest 用户名 / 邮箱可用性检查参数
type CheckAvailabilityRequest struct {
	Username string `form:"username" binding:"omitempty,max=150"`
	Email    string `form:"email"    binding:"omitempty,email"`
}

// SigninRequest 登录请求
type SigninRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RefreshTokenRequest 刷新 Token 请求
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// FindUsernameRequest 找回用户名请求
type FindUsernameRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// PasswordResetRequest 申请找回密码（发送验证码）
type PasswordResetRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email"    binding:"required,email"`
}

// VerifyCertificateRequest 校验验证码
type VerifyCertificateRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email"    binding:"required,email"`
	Code     string `json:"code"     binding:"required,len=6"`
}

// ResetPasswordRequest 凭校验后的 key 重置密码
type ResetPasswordRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email"    binding:"required,email"`
	Key      string `json:"key"      binding:"required,len=6"`
	Password string `json:"password" binding:"required,min=8,max=64"`
}

// ChangePasswordRequest 修改密码请求
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=8,max=64"`
}
