// Package metrics exposes Prometheus instrumentation for WhatsCommerce.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/whatscommerce/whatscommerce/internal/models"
)

var (
	webhookRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "whatscommerce_webhook_requests_total",
		Help: "Inbound webhook requests by HTTP status code.",
	}, []string{"code"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "whatscommerce_http_request_duration_seconds",
		Help:    "HTTP request latency by path.",
		Buckets: prometheus.DefBuckets,
	}, []string{"path"})

	stateTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "whatscommerce_state_transitions_total",
		Help: "Conversation state transitions.",
	}, []string{"from", "to"})

	ordersCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "whatscommerce_orders_created_total",
		Help: "Orders successfully created in the commerce backend.",
	})

	messagesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "whatscommerce_messages_sent_total",
		Help: "Outbound WhatsApp messages by result.",
	}, []string{"result"})

	duplicateMessages = promauto.NewCounter(prometheus.CounterOpts{
		Name: "whatscommerce_duplicate_messages_total",
		Help: "Inbound messages dropped as webhook redeliveries.",
	})
)

// RecordTransition counts a conversation state change.
func RecordTransition(from, to models.StateType) {
	stateTransitions.WithLabelValues(string(from), string(to)).Inc()
}

// RecordOrderCreated counts a successfully created order.
func RecordOrderCreated() {
	ordersCreated.Inc()
}

// RecordMessageSent counts an outbound send attempt.
func RecordMessageSent(ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	messagesSent.WithLabelValues(result).Inc()
}

// RecordDuplicate counts a dropped webhook redelivery.
func RecordDuplicate() {
	duplicateMessages.Inc()
}

// Handler returns the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware instruments an HTTP handler with request counts and latency.
func Middleware(path string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		requestDuration.WithLabelValues(path).Observe(time.Since(start).Seconds())
		webhookRequests.WithLabelValues(strconv.Itoa(rec.status)).Inc()
	})
}
