package middleware

import (
	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// RedisErrors counts failed Redis commands by command name.
var RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "promptguy_redis_errors_total",
	Help: "Total number of failed Redis commands",
}, []string{"command"})

// RateLimitRejections counts requests rejected by the rate limiter per resource.
var RateLimitRejections = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "promptguy_rate_limit_rejections_total",
	Help: "Total number of requests rejected by the rate limiter",
}, []string{"resource"})

// InitMetrics builds the HTTP request metrics collector for serviceName.
// The collector registers with the default Prometheus registry so /metrics
// exposes HTTP and domain metrics together.
func InitMetrics(serviceName string) *fiberprometheus.FiberPrometheus {
	return fiberprometheus.NewWithDefaultRegistry(serviceName)
}

// MetricsMiddleware records request count, latency and in-flight gauges.
func MetricsMiddleware(prom *fiberprometheus.FiberPrometheus) fiber.Handler {
	if prom == nil {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	return prom.Middleware
}
