package metrics

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "stampcard"

// LoyaltyMetrics 集点与核销相关指标
type LoyaltyMetrics struct {
	registry *prometheus.Registry

	stampAwards          *prometheus.CounterVec
	stampRejections      *prometheus.CounterVec
	commitConflicts      prometheus.Counter
	credentialsIssued    prometheus.Counter
	redemptions          *prometheus.CounterVec
	redemptionRejections *prometheus.CounterVec
	httpDuration         *prometheus.HistogramVec
}

var (
	defaultOnce sync.Once
	defaultReg  *LoyaltyMetrics
)

// Default 返回进程级指标实例（懒加载）
func Default() *LoyaltyMetrics {
	defaultOnce.Do(func() {
		defaultReg = New()
	})
	return defaultReg
}

// New 创建独立注册表的指标实例
func New() *LoyaltyMetrics {
	m := &LoyaltyMetrics{
		registry: prometheus.NewRegistry(),
		stampAwards: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stamp_awards_total",
			Help:      "Stamp scans accepted, segmented by resulting transaction status.",
		}, []string{"status"}),
		stampRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stamp_rejections_total",
			Help:      "Stamp scans rejected by policy, segmented by outcome code.",
		}, []string{"code"}),
		commitConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stamp_commit_conflicts_total",
			Help:      "Stamp card compare-and-swap conflicts that forced a retry.",
		}),
		credentialsIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "redemption_credentials_issued_total",
			Help:      "Redemption credentials issued or reissued.",
		}),
		redemptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "redemptions_total",
			Help:      "Successful reward redemptions, segmented by verification channel.",
		}, []string{"channel"}),
		redemptionRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "redemption_rejections_total",
			Help:      "Rejected redemption verifications, segmented by outcome code and channel.",
		}, []string{"code", "channel"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.stampAwards,
		m.stampRejections,
		m.commitConflicts,
		m.credentialsIssued,
		m.redemptions,
		m.redemptionRejections,
		m.httpDuration,
	)
	return m
}

// Registry 返回底层注册表
func (m *LoyaltyMetrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler 返回 /metrics 处理器
func (m *LoyaltyMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// StampAwarded 记录一次成功集点
func (m *LoyaltyMetrics) StampAwarded(status string) {
	if m == nil {
		return
	}
	m.stampAwards.WithLabelValues(normalizeLabel(status)).Inc()
}

// StampRejected 记录一次策略拒绝
func (m *LoyaltyMetrics) StampRejected(code string) {
	if m == nil {
		return
	}
	m.stampRejections.WithLabelValues(normalizeLabel(code)).Inc()
}

// CommitConflict 记录一次 CAS 冲突
func (m *LoyaltyMetrics) CommitConflict() {
	if m == nil {
		return
	}
	m.commitConflicts.Inc()
}

// CredentialIssued 记录一次凭证签发
func (m *LoyaltyMetrics) CredentialIssued() {
	if m == nil {
		return
	}
	m.credentialsIssued.Inc()
}

// Redeemed 记录一次成功核销
func (m *LoyaltyMetrics) Redeemed(channel string) {
	if m == nil {
		return
	}
	m.redemptions.WithLabelValues(normalizeLabel(channel)).Inc()
}

// RedemptionRejected 记录一次核销拒绝
func (m *LoyaltyMetrics) RedemptionRejected(code, channel string) {
	if m == nil {
		return
	}
	m.redemptionRejections.WithLabelValues(normalizeLabel(code), normalizeLabel(channel)).Inc()
}

// ObserveHTTP 记录 HTTP 请求耗时
func (m *LoyaltyMetrics) ObserveHTTP(route, method, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpDuration.WithLabelValues(normalizeLabel(route), method, status).Observe(elapsed.Seconds())
}

func normalizeLabel(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	return value
}
