package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "interview"

// Collector records provider latency, turn outcomes and session endings.
type Collector struct {
	gatherer prometheus.Gatherer

	callDuration  *prometheus.HistogramVec
	turns         *prometheus.CounterVec
	sessionsEnded *prometheus.CounterVec
	refunds       prometheus.Counter
	liveSessions  prometheus.Gauge
	rateLimited   prometheus.Counter
}

// NewCollector registers the metrics on a fresh registry.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	return newCollector(reg, reg)
}

func newCollector(reg prometheus.Registerer, g prometheus.Gatherer) *Collector {
	f := promauto.With(reg)
	return &Collector{
		gatherer: g,
		callDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_call_duration_seconds",
			Help:      "Duration of STT, LLM and TTS calls.",
			Buckets:   []float64{.1, .25, .5, 1, 2, 4, 8, 15, 30},
		}, []string{"kind", "provider", "success"}),
		turns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Turns by outcome.",
		}, []string{"outcome"}),
		sessionsEnded: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_ended_total",
			Help:      "Ended sessions by reason.",
		}, []string{"reason", "early_disconnect"}),
		refunds: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refunded_credits_total",
			Help:      "Credits returned for early disconnects.",
		}),
		liveSessions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_sessions",
			Help:      "Sessions currently held in memory.",
		}),
		rateLimited: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_rate_limited_total",
			Help:      "Client socket messages dropped by the rate limiter.",
		}),
	}
}

func (c *Collector) ObserveCall(kind, provider string, d time.Duration, err error) {
	c.callDuration.WithLabelValues(kind, provider, strconv.FormatBool(err == nil)).Observe(d.Seconds())
}

func (c *Collector) ObserveTurn(outcome string) {
	c.turns.WithLabelValues(outcome).Inc()
}

func (c *Collector) ObserveSessionEnd(reason string, earlyDisconnect bool, refunded int) {
	c.sessionsEnded.WithLabelValues(reason, strconv.FormatBool(earlyDisconnect)).Inc()
	if refunded > 0 {
		c.refunds.Add(float64(refunded))
	}
}

func (c *Collector) SessionOpened() { c.liveSessions.Inc() }

func (c *Collector) SessionClosed() { c.liveSessions.Dec() }

func (c *Collector) RateLimited() { c.rateLimited.Inc() }

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}
