package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics は再計算と状態遷移のカウンタを保持します。compliance.Recorder を満たします。
type Metrics struct {
	registry        *prometheus.Registry
	recalculations  *prometheus.CounterVec
	transitions     *prometheus.CounterVec
	lockContentions prometheus.Counter
}

// New は専用レジストリにカウンタを登録した Metrics を生成します。
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		recalculations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "levy_recalculations_total",
			Help: "Monthly and annual recalculations by result.",
		}, []string{"kind", "result"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "levy_status_transitions_total",
			Help: "Accepted status transitions by target and destination status.",
		}, []string{"target", "to"}),
		lockContentions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "levy_period_lock_contentions_total",
			Help: "Period lock acquisitions that found the lock already held.",
		}),
	}
	reg.MustRegister(
		m.recalculations,
		m.transitions,
		m.lockContentions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveRecalculation は再計算の結果を数えます。
func (m *Metrics) ObserveRecalculation(kind, result string) {
	if m == nil {
		return
	}
	m.recalculations.WithLabelValues(kind, result).Inc()
}

// ObserveStatusTransition は受理された状態遷移を数えます。
func (m *Metrics) ObserveStatusTransition(target, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(target, to).Inc()
}

// ObserveLockContention は取得済みの期間ロックに当たった回数を数えます。
func (m *Metrics) ObserveLockContention() {
	if m == nil {
		return
	}
	m.lockContentions.Inc()
}

// Handler は /metrics 用の HTTP ハンドラを返します。
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
