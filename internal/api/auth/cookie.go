package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// ExtractToken 从请求中提取身份令牌：优先读取命名 Cookie，
// 不存在时回退到 Authorization: Bearer 头。
func ExtractToken(c *gin.Context, cookieName string) string {
	if token, err := c.Cookie(cookieName); err == nil && token != "" {
		return token
	}
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

// SetSessionCookie 写入会话 Cookie（httpOnly + Secure + SameSite=None，
// 前端跨站携带凭证访问 API）。
func SetSessionCookie(c *gin.Context, name, token string, ttl time.Duration) {
	c.SetSameSite(http.SameSiteNoneMode)
	c.SetCookie(name, token, int(ttl.Seconds()), "/", "", true, true)
}

// ClearSessionCookie 清除会话 Cookie。
func ClearSessionCookie(c *gin.Context, name string) {
	c.SetSameSite(http.SameSiteNoneMode)
	c.SetCookie(name, "", -1, "/", "", true, true)
}
