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
			Name: "roomchat_http_requests_total",
			Help: "Total number of HTTP requests processed by the room chat service.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "roomchat_http_request_duration_seconds",
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
	wsActiveConnections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "roomchat_ws_active_connections",
			Help: "Number of active websocket connections.",
		},
		[]string{"kind"},
	)
	wsEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roomchat_ws_events_total",
			Help: "Total number of websocket events.",
		},
		[]string{"kind", "event"},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "roomchat_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
	feedNotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roomchat_feed_notifications_total",
			Help: "Change notifications dispatched by the change feed.",
		},
		[]string{"table", "op"},
	)
	feedSubscribers = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "roomchat_feed_subscribers",
			Help: "Live change feed subscriptions per collection.",
		},
		[]string{"table"},
	)
	streamRefetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roomchat_stream_refetches_total",
			Help: "Full refetches performed by live streams.",
		},
		[]string{"kind", "result"},
	)
	signInsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roomchat_signins_total",
			Help: "Sign-in attempts by method and result.",
		},
		[]string{"method", "result"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		grpcServerHandledTotal,
		wsActiveConnections,
		wsEventsTotal,
		amqpPublishErrorsTotal,
		feedNotificationsTotal,
		feedSubscribers,
		streamRefetchesTotal,
		signInsTotal,
	)
}

func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
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

func IncWSActive(kind string) {
	wsActiveConnections.WithLabelValues(kind).Inc()
}

func DecWSActive(kind string) {
	wsActiveConnections.WithLabelValues(kind).Dec()
}

func IncWSEvent(kind, event string) {
	wsEventsTotal.WithLabelValues(kind, event).Inc()
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}

func IncFeedNotification(table, op string) {
	if table == "" {
		table = "all"
	}
	feedNotificationsTotal.WithLabelValues(table, op).Inc()
}

func SetFeedSubscribers(table string, n int) {
	feedSubscribers.WithLabelValues(table).Set(float64(n))
}

func IncStreamRefetch(kind string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	streamRefetchesTotal.WithLabelValues(kind, result).Inc()
}

func IncSignIn(method, result string) {
	signInsTotal.WithLabelValues(method, result).Inc()
}
