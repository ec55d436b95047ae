package middleware

import (
	"net/http"

	"codequery/internal/api/auth"

	"github.com/gin-gonic/gin"
)

// RequireAuth 校验身份令牌并将用户 ID 写入上下文。
//
// 缺少令牌返回 401；令牌无效返回 400 并清除会话 Cookie。
// 两种失败使用不同状态码是既有客户端依赖的行为，保持不变。
func RequireAuth(tokens *auth.TokenService, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := auth.ExtractToken(c, cookieName)
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"message": "Not authorized, no token"})
			c.Abort()
			return
		}

		userID, err := tokens.Verify(c.Request.Context(), token)
		if err != nil {
			auth.ClearSessionCookie(c, cookieName)
			c.JSON(http.StatusBadRequest, gin.H{"message": "Not authorized"})
			c.Abort()
			return
		}

		c.Set(auth.ContextUserIDKey, userID)
		c.Next()
	}
}

// OptionalAuth 与 RequireAuth 使用相同的提取逻辑，但从不拒绝请求：
// 缺少令牌按匿名继续，令牌无效则清除 Cookie 后按匿名继续。
// 匿名回答依赖这个变体。
func OptionalAuth(tokens *auth.TokenService, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := auth.ExtractToken(c, cookieName)
		if token == "" {
			c.Next()
			return
		}

		userID, err := tokens.Verify(c.Request.Context(), token)
		if err != nil {
			auth.ClearSessionCookie(c, cookieName)
			c.Next()
			return
		}

		c.Set(auth.ContextUserIDKey, userID)
		c.Next()
	}
}
