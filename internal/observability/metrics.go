package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	apiRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wppcrm_api_requests_total",
			Help: "Total number of REST calls issued to the CRM backend.",
		},
		[]string{"endpoint", "status"},
	)
	apiRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wppcrm_api_request_duration_seconds",
			Help:    "REST call latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)
	tokenRefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wppcrm_token_refresh_total",
			Help: "Token refresh attempts by result.",
		},
		[]string{"result"},
	)
	wsConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "wppcrm_ws_connected",
			Help: "1 while the realtime socket is open.",
		},
	)
	wsReconnectsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "wppcrm_ws_reconnect_attempts_total",
			Help: "Total number of realtime reconnect attempts.",
		},
	)
	wsFramesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wppcrm_ws_frames_total",
			Help: "Inbound realtime frames by classified kind.",
		},
		[]string{"kind"},
	)
	eventsDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wppcrm_events_dropped_total",
			Help: "Events dropped because a subscriber was not keeping up.",
		},
		[]string{"kind"},
	)
	sendsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wppcrm_sends_total",
			Help: "Outbound sends by kind and result.",
		},
		[]string{"kind", "result"},
	)
)

func init() {
	prometheus.MustRegister(
		apiRequestsTotal,
		apiRequestDuration,
		tokenRefreshTotal,
		wsConnected,
		wsReconnectsTotal,
		wsFramesTotal,
		eventsDroppedTotal,
		sendsTotal,
	)
}

// ObserveAPIRequest records one REST round trip. status is 0 when no
// response was received.
func ObserveAPIRequest(endpoint string, status int, d time.Duration) {
	label := "network_error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	apiRequestsTotal.WithLabelValues(endpoint, label).Inc()
	apiRequestDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}

func IncTokenRefresh(result string) {
	tokenRefreshTotal.WithLabelValues(result).Inc()
}

func SetWSConnected(up bool) {
	if up {
		wsConnected.Set(1)
		return
	}
	wsConnected.Set(0)
}

func IncWSReconnect() {
	wsReconnectsTotal.Inc()
}

func IncWSFrame(kind string) {
	wsFramesTotal.WithLabelValues(kind).Inc()
}

func IncEventDropped(kind string) {
	eventsDroppedTotal.WithLabelValues(kind).Inc()
}

func IncSend(kind, result string) {
	sendsTotal.WithLabelValues(kind, result).Inc()
}
