package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置结构
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Log       LogConfig       `mapstructure:"log"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Approval  ApprovalConfig  `mapstructure:"approval"`
	Signature SignatureConfig `mapstructure:"signature"`
	Directory DirectoryConfig `mapstructure:"directory"`
	Queue     QueueConfig     `mapstructure:"queue"`
	Webhooks  []WebhookConfig `mapstructure:"webhooks"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	Mode         string `mapstructure:"mode"` // debug, release, test
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"` // 秒
	AutoMigrate     bool   `mapstructure:"auto_migrate"`      // 是否自动迁移表结构
}

// RedisConfig Redis 配置
type RedisConfig struct {
	// 连接模式: standalone(单节点), sentinel(哨兵), cluster(集群)，为空表示不启用
	Mode string `mapstructure:"mode"`

	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	MasterName       string   `mapstructure:"master_name"`
	SentinelAddrs    []string `mapstructure:"sentinel_addrs"`
	SentinelPassword string   `mapstructure:"sentinel_password"`

	ClusterAddrs []string `mapstructure:"cluster_addrs"`

	PoolSize     int `mapstructure:"pool_size"`
	MinIdleConns int `mapstructure:"min_idle_conns"`
}

// Enabled 是否配置了 Redis
func (c RedisConfig) Enabled() bool {
	return c.Mode != "" && c.Mode != "disabled"
}

// Addr 单节点地址
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, /path/to/log
}

// AuthConfig 身份认证配置
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
}

// ApprovalConfig 审批引擎配置
type ApprovalConfig struct {
	// 全部审批通过后的默认合同状态变体: approval(APPROVED) / signoff(SIGNING)
	DefaultVariant string `mapstructure:"default_variant"`
	// 单次目录查询超时（毫秒）
	LookupTimeoutMs int `mapstructure:"lookup_timeout_ms"`
	// 启动时加载的工作流模板文件
	TemplatesPath string `mapstructure:"templates_path"`
	// 合同锁实现: local / redis
	Locker string `mapstructure:"locker"`
	// 分布式锁 TTL（毫秒）
	LockTTLMs int `mapstructure:"lock_ttl_ms"`
}

// LookupTimeout 目录查询超时
func (c ApprovalConfig) LookupTimeout() time.Duration {
	if c.LookupTimeoutMs <= 0 {
		return 3 * time.Second
	}
	return time.Duration(c.LookupTimeoutMs) * time.Millisecond
}

// LockTTL 分布式锁 TTL
func (c ApprovalConfig) LockTTL() time.Duration {
	if c.LockTTLMs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.LockTTLMs) * time.Millisecond
}

// SignatureConfig 签署配置
type SignatureConfig struct {
	DefaultExpiryHours int `mapstructure:"default_expiry_hours"` // 0 表示不过期
}

// DefaultExpiry 默认签署有效期
func (c SignatureConfig) DefaultExpiry() time.Duration {
	return time.Duration(c.DefaultExpiryHours) * time.Hour
}

// DirectoryConfig 用户目录配置
type DirectoryConfig struct {
	CacheEnabled    bool `mapstructure:"cache_enabled"`
	CacheTTLSeconds int  `mapstructure:"cache_ttl_seconds"`
}

// CacheTTL 缓存有效期
func (c DirectoryConfig) CacheTTL() time.Duration {
	if c.CacheTTLSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// QueueConfig 事件投递队列配置
type QueueConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Name     string `mapstructure:"name"`
	MaxRetry int    `mapstructure:"max_retry"`
}

// WebhookConfig 外部事件订阅端点
type WebhookConfig struct {
	Name    string            `mapstructure:"name"`
	URL     string            `mapstructure:"url"`
	Secret  string            `mapstructure:"secret"`
	Headers map[string]string `mapstructure:"headers"`
	Events  []string          `mapstructure:"events"` // 为空表示订阅全部事件
}

// Load 加载配置
// env: 环境名称（dev, prod, test）
// configPath: 配置文件路径（可选）
func Load(env string, configPath string) (*Config, error) {
	v := viper.New()

	if configPath == "" {
		v.SetConfigName(env) // dev.yaml, prod.yaml
		v.AddConfigPath("./config")
		v.AddConfigPath("../config")
		v.AddConfigPath("../../config")
	} else {
		v.SetConfigFile(configPath)
	}

	v.SetConfigType("yaml")
	setDefaults(v)

	// 读取环境变量（优先级高于配置文件）
	v.SetEnvPrefix("APP")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // APP_DATABASE_HOST

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 15)
	v.SetDefault("server.write_timeout", 15)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 300)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output_path", "stdout")
	v.SetDefault("approval.default_variant", "approval")
	v.SetDefault("approval.lookup_timeout_ms", 3000)
	v.SetDefault("approval.locker", "local")
	v.SetDefault("approval.lock_ttl_ms", 30000)
	v.SetDefault("directory.cache_ttl_seconds", 300)
	v.SetDefault("queue.name", "contract_events")
	v.SetDefault("queue.max_retry", 5)
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}
