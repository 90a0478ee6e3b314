package directory

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"contracthub/internal/logger"
	"contracthub/internal/metrics"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const cacheKeyPrefix = "contracthub:directory:"

// CachedDirectory 基于 Redis 的读穿透缓存
// 缓存不可用时直接回源，不影响查询结果；不存在类错误不缓存
type CachedDirectory struct {
	next   Directory
	rdb    redis.UniversalClient
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedDirectory 创建带缓存的用户目录
func NewCachedDirectory(next Directory, rdb redis.UniversalClient, ttl time.Duration) *CachedDirectory {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedDirectory{
		next:   next,
		rdb:    rdb,
		ttl:    ttl,
		logger: logger.OrNop(),
	}
}

// UserByID 按ID查询用户
func (c *CachedDirectory) UserByID(ctx context.Context, userID string) (*User, error) {
	return cached(ctx, c, "user:"+userID, func() (*User, error) {
		return c.next.UserByID(ctx, userID)
	})
}

// UsersByDepartment 查询部门成员
func (c *CachedDirectory) UsersByDepartment(ctx context.Context, department string) ([]User, error) {
	return cached(ctx, c, "dept:"+department, func() ([]User, error) {
		return c.next.UsersByDepartment(ctx, department)
	})
}

// UsersByRole 查询角色成员
func (c *CachedDirectory) UsersByRole(ctx context.Context, role string) ([]User, error) {
	return cached(ctx, c, "role:"+strings.ToUpper(role), func() ([]User, error) {
		return c.next.UsersByRole(ctx, role)
	})
}

// AllUsers 查询全部在职用户
func (c *CachedDirectory) AllUsers(ctx context.Context) ([]User, error) {
	return cached(ctx, c, "all", func() ([]User, error) {
		return c.next.AllUsers(ctx)
	})
}

// TeamMembers 查询团队成员
func (c *CachedDirectory) TeamMembers(ctx context.Context, teamID string) ([]User, error) {
	return cached(ctx, c, "team:"+teamID, func() ([]User, error) {
		return c.next.TeamMembers(ctx, teamID)
	})
}

// ManagerOf 查询直属上级
func (c *CachedDirectory) ManagerOf(ctx context.Context, userID string) (*User, error) {
	return cached(ctx, c, "manager:"+userID, func() (*User, error) {
		return c.next.ManagerOf(ctx, userID)
	})
}

func cached[T any](ctx context.Context, c *CachedDirectory, key string, load func() (T, error)) (T, error) {
	fullKey := cacheKeyPrefix + key

	raw, err := c.rdb.Get(ctx, fullKey).Bytes()
	switch {
	case err == nil:
		var value T
		if jsonErr := json.Unmarshal(raw, &value); jsonErr == nil {
			metrics.DirectoryCacheTotal.WithLabelValues("get", "hit").Inc()
			return value, nil
		}
		metrics.DirectoryCacheTotal.WithLabelValues("get", "corrupt").Inc()
	case errors.Is(err, redis.Nil):
		metrics.DirectoryCacheTotal.WithLabelValues("get", "miss").Inc()
	default:
		metrics.DirectoryCacheTotal.WithLabelValues("get", "error").Inc()
		c.logger.Debug("读取目录缓存失败，回源查询", zap.String("key", fullKey), zap.Error(err))
	}

	value, err := load()
	if err != nil {
		return value, err
	}

	if payload, jsonErr := json.Marshal(value); jsonErr == nil {
		if setErr := c.rdb.Set(ctx, fullKey, payload, c.ttl).Err(); setErr != nil {
			metrics.DirectoryCacheTotal.WithLabelValues("set", "error").Inc()
			c.logger.Debug("写入目录缓存失败", zap.String("key", fullKey), zap.Error(setErr))
		}
	}
	return value, nil
}
