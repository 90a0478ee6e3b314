package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	svc := NewJWTService("secret", "contracthub", nil)
	token, err := svc.GenerateToken("user-1", []string{"ADMIN"})
	require.NoError(t, err)

	claims, err := svc.ValidateToken(context.Background(), token)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.Subject)
	require.Equal(t, []string{"ADMIN"}, claims.Roles)

	other := NewJWTService("another-secret", "contracthub", nil)
	_, err = other.ValidateToken(context.Background(), token)
	require.Error(t, err)

	wrongIssuer := NewJWTService("secret", "someone-else", nil)
	_, err = wrongIssuer.ValidateToken(context.Background(), token)
	require.Error(t, err)

	// 没有 Redis 时失效操作为空操作
	require.NoError(t, svc.InvalidateToken(context.Background(), token))
	require.False(t, svc.IsTokenBlacklisted(context.Background(), token))
}

func TestValidateTokenRejectsMissingSubject(t *testing.T) {
	svc := NewJWTService("secret", "", nil)
	raw := jwt.NewWithClaims(jwt.SigningMethodHS256, &TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute))},
	})
	token, err := raw.SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = svc.ValidateToken(context.Background(), token)
	require.Error(t, err)
}

func TestAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := NewJWTService("secret", "contracthub", nil)

	router := gin.New()
	router.GET("/me", AuthMiddleware(svc), func(c *gin.Context) {
		userCtx, ok := GetUserContextFromStdContext(c.Request.Context())
		require.True(t, ok)
		c.String(http.StatusOK, UserID(c)+"|"+userCtx.UserID)
	})

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/me", nil))
	require.Equal(t, http.StatusUnauthorized, resp.Code)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	require.Equal(t, http.StatusUnauthorized, resp.Code)

	token, err := svc.GenerateToken("user-7", nil)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, "user-7|user-7", resp.Body.String())
}
