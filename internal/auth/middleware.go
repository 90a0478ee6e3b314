package auth

import (
	"context"
	"net/http"

	"contracthub/internal/common"

	"github.com/gin-gonic/gin"
)

// ContextKey 上下文键类型
type ContextKey string

// UserContextKey 用户上下文键
const UserContextKey ContextKey = "user"

// UserContext 用户上下文
type UserContext struct {
	UserID string
	Roles  []string
}

// AuthMiddleware JWT 认证中间件
func AuthMiddleware(jwtService *JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			common.AbortWithError(c, http.StatusUnauthorized, common.CodeUnauthorized, "缺少认证令牌")
			return
		}

		token := ExtractTokenFromBearer(authHeader)
		if token == "" {
			common.AbortWithError(c, http.StatusUnauthorized, common.CodeUnauthorized, "无效的令牌格式")
			return
		}

		claims, err := jwtService.ValidateToken(c.Request.Context(), token)
		if err != nil {
			common.AbortWithError(c, http.StatusUnauthorized, common.CodeUnauthorized, "令牌验证失败: "+err.Error())
			return
		}

		userCtx := &UserContext{UserID: claims.Subject, Roles: claims.Roles}
		c.Set(string(UserContextKey), userCtx)
		c.Request = c.Request.WithContext(SetUserContext(c.Request.Context(), userCtx))
		c.Next()
	}
}

// GetUserContext 从 Gin Context 获取用户上下文
func GetUserContext(c *gin.Context) (*UserContext, bool) {
	userCtx, exists := c.Get(string(UserContextKey))
	if !exists {
		return nil, false
	}
	ctx, ok := userCtx.(*UserContext)
	return ctx, ok
}

// UserID 当前操作人ID，未认证时为空
func UserID(c *gin.Context) string {
	if userCtx, ok := GetUserContext(c); ok {
		return userCtx.UserID
	}
	return ""
}

// SetUserContext 在标准 context.Context 中设置用户上下文
func SetUserContext(ctx context.Context, userCtx *UserContext) context.Context {
	return context.WithValue(ctx, UserContextKey, userCtx)
}

// GetUserContextFromStdContext 从标准 context.Context 获取用户上下文
func GetUserContextFromStdContext(ctx context.Context) (*UserContext, bool) {
	userCtx, ok := ctx.Value(UserContextKey).(*UserContext)
	return userCtx, ok
}
