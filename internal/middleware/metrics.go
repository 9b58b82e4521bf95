package middleware

import (
	"sync"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// RedisErrors counts failed Redis commands by command name.
var RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "nexify_redis_command_errors_total",
	Help: "Redis command errors by command",
}, []string{"command"})

// RateLimitRejections counts requests answered 429 by rule.
var RateLimitRejections = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "nexify_rate_limit_rejections_total",
	Help: "Requests rejected by a rate limit rule",
}, []string{"rule"})

var (
	promOnce sync.Once
	promInst *fiberprometheus.FiberPrometheus
)

// InitMetrics builds the HTTP metrics collector for the service. Collectors
// register on the default registry, so repeated calls share one instance.
func InitMetrics(serviceName string) *fiberprometheus.FiberPrometheus {
	promOnce.Do(func() {
		promInst = fiberprometheus.New(serviceName)
		promInst.SetSkipPaths([]string{"/metrics", "/health/live", "/health/ready"})
	})
	return promInst
}

// MetricsMiddleware records request counts and latencies.
func MetricsMiddleware(prom *fiberprometheus.FiberPrometheus) fiber.Handler {
	return prom.Middleware
}
