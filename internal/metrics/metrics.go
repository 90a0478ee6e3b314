package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// API 指标
var (
	// APIRequestsTotal API 请求总数
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contracthub_api_requests_total",
			Help: "API 请求总数",
		},
		[]string{"method", "path", "status"},
	)

	// APIRequestDuration API 请求延迟（秒）
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "contracthub_api_request_duration_seconds",
			Help:    "API 请求延迟分布",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// 审批指标
var (
	ApprovalPendingGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "contracthub_approval_pending_total",
			Help: "当前待审批记录数量",
		},
	)

	ApprovalInitiationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contracthub_approval_initiations_total",
			Help: "审批发起次数",
		},
		[]string{"result"},
	)

	ApprovalDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contracthub_approval_decisions_total",
			Help: "审批决策次数",
		},
		[]string{"decision"},
	)

	ApproverResolutionFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contracthub_approver_resolution_failures_total",
			Help: "审批人解析失败次数（降级为空集合）",
		},
		[]string{"kind"},
	)

	ApproverSetSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "contracthub_approver_set_size",
			Help:    "单次发起解析出的审批人数量",
			Buckets: []float64{1, 2, 3, 5, 8, 13, 21, 50},
		},
	)

	ContractStatusTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contracthub_contract_status_transitions_total",
			Help: "合同状态变更次数",
		},
		[]string{"from", "to"},
	)
)

// 签署指标
var (
	SignatureActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contracthub_signature_actions_total",
			Help: "签署操作次数",
		},
		[]string{"action", "result"},
	)

	SignaturePackagesCompletedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "contracthub_signature_packages_completed_total",
			Help: "完成的签署包数量",
		},
	)
)

// 通知与缓存指标
var (
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contracthub_notifications_total",
			Help: "状态变更通知投递次数",
		},
		[]string{"channel", "status"},
	)

	DirectoryCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contracthub_directory_cache_total",
			Help: "用户目录缓存访问次数",
		},
		[]string{"op", "result"},
	)

	LockWaitDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "contracthub_contract_lock_wait_seconds",
			Help:    "获取合同锁的等待时间",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"locker"},
	)
)
