package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	initOnce sync.Once

	// HTTPRequestsTotal 按方法/路径/状态码统计 HTTP 请求数。
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTPRequestDuration HTTP 请求耗时分布。
	HTTPRequestDuration *prometheus.HistogramVec

	// AIGenerationsTotal AI 回答生成次数（按结果 success/error）。
	AIGenerationsTotal *prometheus.CounterVec

	// VoteTogglesTotal 投票切换次数（按方向 up/down）。
	VoteTogglesTotal *prometheus.CounterVec
)

// InitMetrics 注册 Prometheus 指标，重复调用只生效一次。
func InitMetrics() {
	initOnce.Do(func() {
		HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "codequery_http_requests_total",
			Help: "Total HTTP requests handled.",
		}, []string{"method", "path", "status"})

		HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "codequery_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"})

		AIGenerationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "codequery_ai_generations_total",
			Help: "Intelligent answer generations by result.",
		}, []string{"result"})

		VoteTogglesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "codequery_vote_toggles_total",
			Help: "Answer vote toggles by direction.",
		}, []string{"direction"})

		prometheus.MustRegister(
			HTTPRequestsTotal,
			HTTPRequestDuration,
			AIGenerationsTotal,
			VoteTogglesTotal,
		)
	})
}
