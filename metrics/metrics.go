package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "storefront"

// Metrics holds the service's collectors. A nil *Metrics is valid and
// records nothing, so components can be built without a registry.
type Metrics struct {
	cartOps      *prometheus.CounterVec
	mergedItems  prometheus.Counter
	reapedCarts  prometheus.Counter
	ordersPlaced prometheus.Counter
	requests     *prometheus.CounterVec
	latency      *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		cartOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_operations_total",
			Help:      "Cart engine operations by outcome.",
		}, []string{"op", "result"}),
		mergedItems: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_merged_items_total",
			Help:      "Cart lines transferred from anonymous carts on login.",
		}),
		reapedCarts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_reaped_total",
			Help:      "Expired anonymous carts deleted by the reaper.",
		}),
		ordersPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_placed_total",
			Help:      "Orders confirmed at checkout.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	reg.MustRegister(m.cartOps, m.mergedItems, m.reapedCarts, m.ordersPlaced, m.requests, m.latency)
	return m
}

func (m *Metrics) CartOp(op, result string) {
	if m == nil {
		return
	}
	m.cartOps.WithLabelValues(op, result).Inc()
}

func (m *Metrics) MergedItems(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.mergedItems.Add(float64(n))
}

func (m *Metrics) CartsReaped(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.reapedCarts.Add(float64(n))
}

func (m *Metrics) OrderPlaced() {
	if m == nil {
		return
	}
	m.ordersPlaced.Inc()
}

// Middleware records request counts and latency labelled by route template.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.requests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.latency.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
