package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gridguard/pipeline"
)

// Metrics 服务指标。每个实例拥有独立的注册表
type Metrics struct {
	registry *prometheus.Registry

	RequestDuration   *prometheus.HistogramVec
	ResponseCodes     *prometheus.CounterVec
	Predictions       *prometheus.CounterVec
	CoercionFallbacks *prometheus.CounterVec
	FilledDefaults    *prometheus.CounterVec
	AuthDenials       *prometheus.CounterVec
	ModelLoaded       prometheus.Gauge
}

// NewMetrics 创建指标
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gridguard_request_duration_seconds",
				Help:    "Time taken to answer HTTP requests in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"route", "method"},
		),
		ResponseCodes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gridguard_response_codes_total",
				Help: "HTTP responses by route and status code",
			},
			[]string{"route", "status"},
		),
		Predictions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gridguard_predictions_total",
				Help: "Scored records by source and outcome",
			},
			[]string{"source", "outcome"},
		),
		CoercionFallbacks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gridguard_coercion_fallbacks_total",
				Help: "Input cells that could not be parsed and were replaced with the fallback value",
			},
			[]string{"column"},
		),
		FilledDefaults: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gridguard_filled_defaults_total",
				Help: "Requests or uploads in which a feature column was missing and default-filled",
			},
			[]string{"column"},
		),
		AuthDenials: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gridguard_auth_denials_total",
				Help: "Rejected credentials by reason",
			},
			[]string{"reason"},
		),
		ModelLoaded: factory.NewGauge(prometheus.GaugeOpts{
			Name: "gridguard_model_loaded",
			Help: "1 when a model artifact is being served",
		}),
	}
}

// Handler 返回 /metrics 处理器
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry is exposed for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveRequest 记录一次HTTP请求
func (m *Metrics) ObserveRequest(route, method string, status int, duration time.Duration) {
	m.RequestDuration.WithLabelValues(route, method).Observe(duration.Seconds())
	m.ResponseCodes.WithLabelValues(route, strconv.Itoa(status)).Inc()
}

// ObserveReport 累加一次标准化过程中的回退和默认填充
func (m *Metrics) ObserveReport(report pipeline.Report) {
	for _, issue := range report.Issues() {
		switch issue.Type {
		case pipeline.IssueCoercionFallback:
			m.CoercionFallbacks.WithLabelValues(issue.Column).Inc()
		case pipeline.IssueFilledDefault:
			m.FilledDefaults.WithLabelValues(issue.Column).Inc()
		}
	}
}

// ObservePredictions 按结果统计预测
func (m *Metrics) ObservePredictions(source string, healthy, failures int) {
	m.Predictions.WithLabelValues(source, "healthy").Add(float64(healthy))
	m.Predictions.WithLabelValues(source, "failure").Add(float64(failures))
}

func (m *Metrics) SetModelLoaded(loaded bool) {
	if loaded {
		m.ModelLoaded.Set(1)
		return
	}
	m.ModelLoaded.Set(0)
}
