package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
)

// ErrTokenRevoked 令牌已加入黑名单
var ErrTokenRevoked = errors.New("令牌已失效")

// JWTService JWT 令牌服务
// 操作人身份取自 sub 声明
type JWTService struct {
	secretKey   []byte
	issuer      string
	expiry      time.Duration
	redisClient redis.UniversalClient // 为 nil 时不启用黑名单
}

// NewJWTService 创建 JWT 服务
func NewJWTService(secretKey, issuer string, redisClient redis.UniversalClient) *JWTService {
	return &JWTService{
		secretKey:   []byte(secretKey),
		issuer:      issuer,
		expiry:      2 * time.Hour,
		redisClient: redisClient,
	}
}

// TokenClaims JWT 声明
type TokenClaims struct {
	Roles []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// GenerateToken 签发访问令牌，主要用于测试与运维脚本
func (s *JWTService) GenerateToken(userID string, roles []string) (string, error) {
	now := time.Now()
	claims := &TokenClaims{
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secretKey)
	if err != nil {
		return "", fmt.Errorf("签名令牌失败: %w", err)
	}
	return tokenString, nil
}

// ValidateToken 验证并解析 JWT 令牌
func (s *JWTService) ValidateToken(ctx context.Context, tokenString string) (*TokenClaims, error) {
	if s.IsTokenBlacklisted(ctx, tokenString) {
		return nil, ErrTokenRevoked
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(*jwt.Token) (any, error) {
		return s.secretKey, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("解析令牌失败: %w", err)
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, fmt.Errorf("无效的令牌")
	}
	return claims, nil
}

// InvalidateToken 使令牌失效（加入黑名单）
func (s *JWTService) InvalidateToken(ctx context.Context, tokenString string) error {
	if s.redisClient == nil {
		return nil
	}

	token, _, err := jwt.NewParser().ParseUnverified(tokenString, &TokenClaims{})
	if err != nil {
		return fmt.Errorf("解析令牌失败: %w", err)
	}
	claims, ok := token.Claims.(*TokenClaims)
	if !ok || claims.ExpiresAt == nil {
		return fmt.Errorf("无效的令牌声明")
	}

	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl <= 0 {
		return nil
	}
	if err := s.redisClient.Set(ctx, blacklistKey(tokenString), "revoked", ttl).Err(); err != nil {
		return fmt.Errorf("加入黑名单失败: %w", err)
	}
	return nil
}

// IsTokenBlacklisted 检查令牌是否在黑名单中，Redis 故障时放行
func (s *JWTService) IsTokenBlacklisted(ctx context.Context, tokenString string) bool {
	if s.redisClient == nil {
		return false
	}
	exists, err := s.redisClient.Exists(ctx, blacklistKey(tokenString)).Result()
	if err != nil {
		return false
	}
	return exists > 0
}

func blacklistKey(tokenString string) string {
	return "contracthub:blacklist:token:" + tokenString
}

// ExtractTokenFromBearer 从 Bearer 令牌中提取纯令牌字符串
func ExtractTokenFromBearer(bearerToken string) string {
	const prefix = "Bearer "
	if len(bearerToken) > len(prefix) && bearerToken[:len(prefix)] == prefix {
		return bearerToken[len(prefix):]
	}
	return bearerToken
}
