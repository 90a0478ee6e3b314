package metrics

import (
	"context"
	"database/sql"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// DBConnections 数据库连接池状态
var DBConnections = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "contracthub_db_connections",
		Help: "数据库连接池连接数",
	},
	[]string{"state"},
)

// PendingCounter 统计当前待审批记录数
type PendingCounter func(ctx context.Context) (int64, error)

// SystemCollector 定期采集连接池状态，并用数据库中的实际值校准待审批数量
// 引擎在运行中增减待审批计数，多实例部署或重启后以此处的采集值为准
type SystemCollector struct {
	db       *sql.DB
	pending  PendingCounter
	interval time.Duration
	logger   *zap.Logger
}

// NewSystemCollector 创建系统指标收集器
func NewSystemCollector(db *sql.DB, pending PendingCounter, logger *zap.Logger) *SystemCollector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SystemCollector{
		db:       db,
		pending:  pending,
		interval: 15 * time.Second,
		logger:   logger,
	}
}

// Run 立即采集一次，之后按间隔采集，直到 ctx 结束
func (c *SystemCollector) Run(ctx context.Context) {
	c.CollectOnce(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.CollectOnce(ctx)
		}
	}
}

// CollectOnce 采集一次
func (c *SystemCollector) CollectOnce(ctx context.Context) {
	if c.db != nil {
		stats := c.db.Stats()
		DBConnections.WithLabelValues("open").Set(float64(stats.OpenConnections))
		DBConnections.WithLabelValues("in_use").Set(float64(stats.InUse))
		DBConnections.WithLabelValues("idle").Set(float64(stats.Idle))
	}

	if c.pending != nil {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		n, err := c.pending(ctx)
		if err != nil {
			c.logger.Warn("统计待审批数量失败", zap.Error(err))
			return
		}
		ApprovalPendingGauge.Set(float64(n))
	}
}
