// Package metrics 定义Prometheus指标
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// AuthzDecisions 按动作与结果统计鉴权决策
	AuthzDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warbler_authz_decisions_total",
		Help: "Authorization decisions by action and outcome",
	}, []string{"action", "outcome"})

	// ReactionOutcomes 统计点赞/取消点赞结果
	ReactionOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warbler_reaction_outcomes_total",
		Help: "Like and unlike outcomes",
	}, []string{"operation", "outcome"})

	// CSRFRejections CSRF校验失败次数
	CSRFRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "warbler_csrf_rejections_total",
		Help: "Requests refused by the CSRF gate",
	})

	// WebSocketConnections 当前WebSocket连接数
	WebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "warbler_websocket_connections",
		Help: "Number of active notification WebSocket connections",
	})
)

// 结果标签
const (
	OutcomeAllow   = "allow"
	OutcomeDeny    = "deny"
	OutcomeCreated = "created"
	OutcomeNoop    = "noop"
	OutcomeRemoved = "removed"
	OutcomeError   = "error"
)

// ObserveDecision 记录一次鉴权决策
func ObserveDecision(action string, allowed bool) {
	outcome := OutcomeDeny
	if allowed {
		outcome = OutcomeAllow
	}
	AuthzDecisions.WithLabelValues(action, outcome).Inc()
}

// ObserveReaction 记录一次点赞类操作结果
func ObserveReaction(operation, outcome string) {
	ReactionOutcomes.WithLabelValues(operation, outcome).Inc()
}

// Handler 暴露 /metrics
func Handler() http.Handler {
	return promhttp.Handler()
}
