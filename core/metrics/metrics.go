package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dnslin/sessionretry/core/authretry"
)

// Prometheus 实现 authretry.Metrics。
type Prometheus struct {
	refreshTotal  *prometheus.CounterVec
	requestsTotal *prometheus.CounterVec
}

var _ authretry.Metrics = (*Prometheus)(nil)

// NewPrometheus 在 reg 上注册计数器；reg 为 nil 时使用默认注册表。
func NewPrometheus(reg prometheus.Registerer, namespace string) (*Prometheus, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "sessionretry"
	}
	p := &Prometheus{
		refreshTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "refresh_total",
				Help:      "Total number of session refreshes triggered by expired sessions",
			},
			[]string{"operation", "result"},
		),
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Total number of completed requests by final outcome",
			},
			[]string{"operation", "outcome", "retried"},
		),
	}
	for _, c := range []prometheus.Collector{p.refreshTotal, p.requestsTotal} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// ObserveRefresh 按结果累计刷新次数。
func (p *Prometheus) ObserveRefresh(operation string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	p.refreshTotal.WithLabelValues(operation, result).Inc()
}

// ObserveOutcome 按最终错误分类累计请求数。
func (p *Prometheus) ObserveOutcome(operation string, kind authretry.Kind, retried bool) {
	p.requestsTotal.WithLabelValues(operation, kind.String(), strconv.FormatBool(retried)).Inc()
}
