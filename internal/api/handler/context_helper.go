package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ThemOfWind/CTUDY-SERVER/internal/api/middleware"
	"github.com/ThemOfWind/CTUDY-SERVER/pkg/response"
)

// MustGetMemberID 从 Gin 上下文中安全提取 member_id。
// 如果 JWT 中间件未正确注入 member_id，返回 false 并写入 401 响应。
// 调用方应在 ok=false 时直接 return。
func MustGetMemberID(c *gin.Context) (string, bool) {
	v, exists := c.Get(middleware.ContextMemberID)
	if !exists {
		response.Unauthorized(c, "未认证")
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		response.Unauthorized(c, "未认证")
		return "", false
	}
	return s, true
}

// tokenMeta 提取当前 Access Token 的 jti 与过期时间
func tokenMeta(c *gin.Context) (string, time.Time, bool) {
	jti := c.GetString(middleware.ContextTokenJTI)
	exp, ok := c.Get(middleware.ContextTokenExp)
	if jti == "" || !ok {
		return "", time.Time{}, false
	}
	t, ok := exp.(time.Time)
	return jti, t, ok
}

// pathID 读取路径参数 :id 并校验为 UUID，非法时按资源不存在处理
func pathID(c *gin.Context, notFound string) (string, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		response.NotFound(c, notFound)
		return "", false
	}
	return id, true
}

// bindJSON 绑定并校验 JSON 请求体，失败时写入 400 / 413 响应
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		if middleware.IsBodyTooLarge(err) {
			response.Error(c, http.StatusRequestEntityTooLarge, "请求体过大")
			return false
		}
		response.BadRequest(c, "参数校验失败")
		return false
	}
	return true
}
