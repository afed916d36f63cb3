package observability

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lifecycle_http_requests_total",
			Help: "Total number of HTTP requests processed by the lifecycle service.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lifecycle_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	grpcServerHandledTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grpc_server_handled_total",
			Help: "Total number of gRPC requests handled by the server.",
		},
		[]string{"grpc_service", "grpc_method", "grpc_code"},
	)
	timersArmed = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "lifecycle_timers_armed",
			Help: "Number of events with an armed lifecycle timer.",
		},
	)
	timerFiresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lifecycle_timer_fires_total",
			Help: "Total number of lifecycle timer firings.",
		},
		[]string{"kind"},
	)
	processTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lifecycle_process_total",
			Help: "Total number of lifecycle processing runs by outcome.",
		},
		[]string{"outcome"},
	)
	processDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lifecycle_process_duration_seconds",
			Help:    "Lifecycle processing latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)
	notificationsCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lifecycle_notifications_created_total",
			Help: "Total number of review request notifications created.",
		},
	)
	pushDeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lifecycle_push_deliveries_total",
			Help: "Total number of push deliveries by result.",
		},
		[]string{"result"},
	)
	wsActiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "lifecycle_ws_active_connections",
			Help: "Number of active lifecycle websocket subscribers.",
		},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lifecycle_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		grpcServerHandledTotal,
		timersArmed,
		timerFiresTotal,
		processTotal,
		processDuration,
		notificationsCreatedTotal,
		pushDeliveriesTotal,
		wsActiveConnections,
		amqpPublishErrorsTotal,
	)
}

func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func GRPCServerMetricsUnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		resp, err := handler(ctx, req)
		statusInfo := status.Convert(err)
		service, method := splitFullMethod(info.FullMethod)
		grpcServerHandledTotal.WithLabelValues(service, method, statusInfo.Code().String()).Inc()
		return resp, err
	}
}

func splitFullMethod(fullMethod string) (string, string) {
	parts := strings.Split(fullMethod, "/")
	if len(parts) < 3 {
		return "unknown", "unknown"
	}
	return parts[1], parts[2]
}

func SetTimersArmed(n int) {
	timersArmed.Set(float64(n))
}

func IncTimerFire(kind string) {
	timerFiresTotal.WithLabelValues(kind).Inc()
}

// ObserveProcess records one processing run. outcome is one of
// "processed", "not_found" or "error".
func ObserveProcess(outcome string, took time.Duration) {
	processTotal.WithLabelValues(outcome).Inc()
	processDuration.Observe(took.Seconds())
}

func AddNotificationsCreated(n int) {
	notificationsCreatedTotal.Add(float64(n))
}

func AddPushDeliveries(result string, n int) {
	if n <= 0 {
		return
	}
	pushDeliveriesTotal.WithLabelValues(result).Add(float64(n))
}

func IncWSActive() {
	wsActiveConnections.Inc()
}

func DecWSActive() {
	wsActiveConnections.Dec()
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}
