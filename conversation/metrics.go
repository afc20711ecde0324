package conversation

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics 收集编排核心的 Prometheus 指标。
// 所有记录方法对 nil 接收者安全：不需要指标时传 nil 即可。
type Metrics struct {
	turnsTotal     *prometheus.CounterVec
	turnDuration   *prometheus.HistogramVec
	adapterCalls   *prometheus.CounterVec
	adapterErrors  *prometheus.CounterVec
	toolExecutions *prometheus.CounterVec
	tokensTotal    *prometheus.CounterVec
}

// NewMetrics 注册并返回编排指标集合。reg 为 nil 时使用默认注册表。
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		turnsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "colloquy",
			Name:      "turns_total",
			Help:      "Completed conversation turns per participant.",
		}, []string{"participant"}),
		turnDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "colloquy",
			Name:      "turn_duration_seconds",
			Help:      "Wall time of a full turn including tool resolution.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"participant"}),
		adapterCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "colloquy",
			Name:      "adapter_calls_total",
			Help:      "Chat exchanges sent to provider adapters.",
		}, []string{"provider"}),
		adapterErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "colloquy",
			Name:      "adapter_errors_total",
			Help:      "Adapter calls that returned an error.",
		}, []string{"provider"}),
		toolExecutions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "colloquy",
			Name:      "tool_executions_total",
			Help:      "Tool invocations resolved during turns.",
		}, []string{"tool"}),
		tokensTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "colloquy",
			Name:      "tokens_total",
			Help:      "Token usage reported by providers.",
		}, []string{"provider", "kind"}),
	}
}

func (m *Metrics) observeTurn(participant string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(participant).Inc()
	m.turnDuration.WithLabelValues(participant).Observe(elapsed.Seconds())
}

func (m *Metrics) observeAdapterCall(provider string, err error) {
	if m == nil {
		return
	}
	m.adapterCalls.WithLabelValues(provider).Inc()
	if err != nil {
		m.adapterErrors.WithLabelValues(provider).Inc()
	}
}

func (m *Metrics) observeToolExecution(tool string) {
	if m == nil {
		return
	}
	m.toolExecutions.WithLabelValues(tool).Inc()
}

func (m *Metrics) observeTokens(provider string, prompt, completion int) {
	if m == nil {
		return
	}
	m.tokensTotal.WithLabelValues(provider, "prompt").Add(float64(prompt))
	m.tokensTotal.WithLabelValues(provider, "completion").Add(float64(completion))
}
