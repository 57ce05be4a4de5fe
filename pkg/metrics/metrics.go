// Package metrics はゲートウェイのPrometheusメトリクスを提供する。
//
// HTTPリクエストと上流API呼び出しの件数・所要時間、音声アーティファクトの
// 失効削除件数を記録する。プロセスごとに専用のレジストリを持つ。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "interpreter"

// 上流API呼び出しの結果ラベル。
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Metrics はゲートウェイが公開するコレクタの集合。
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal       *prometheus.CounterVec
	httpRequestDuration     *prometheus.HistogramVec
	upstreamRequestsTotal   *prometheus.CounterVec
	upstreamRequestDuration *prometheus.HistogramVec
	artifactsEvictedTotal   prometheus.Counter
}

// New は専用レジストリにコレクタを登録したMetricsを生成する。
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"route", "method", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"route", "method"},
		),
		upstreamRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upstream_requests_total",
				Help:      "Total number of calls to translation, recognition and synthesis providers",
			},
			[]string{"provider", "capability", "status"},
		),
		upstreamRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "upstream_request_duration_seconds",
				Help:      "Duration of provider calls in seconds",
				Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"provider", "capability"},
		),
		artifactsEvictedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "artifacts_evicted_total",
				Help:      "Total number of expired audio artifacts removed",
			},
		),
	}

	m.registry.MustRegister(
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.upstreamRequestsTotal,
		m.upstreamRequestDuration,
		m.artifactsEvictedTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry は内部のレジストリを返す。
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler は /metrics 用のHTTPハンドラを返す。
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware はHTTPリクエストの件数と所要時間を記録するGinミドルウェアを返す。
// ルートはgin上のパターン（例: /get-audio/:id）で集計し、未登録パスは "unmatched" とする。
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		m.httpRequestsTotal.WithLabelValues(route, method, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpRequestDuration.WithLabelValues(route, method).Observe(time.Since(start).Seconds())
	}
}

// ObserveUpstream は上流API呼び出し1回分の結果を記録する。
func (m *Metrics) ObserveUpstream(provider, capability string, elapsed time.Duration, err error) {
	status := StatusSuccess
	if err != nil {
		status = StatusError
	}
	m.upstreamRequestsTotal.WithLabelValues(provider, capability, status).Inc()
	m.upstreamRequestDuration.WithLabelValues(provider, capability).Observe(elapsed.Seconds())
}

// AddEvicted は失効により削除したアーティファクト数を加算する。
func (m *Metrics) AddEvicted(n int) {
	if n > 0 {
		m.artifactsEvictedTotal.Add(float64(n))
	}
}
