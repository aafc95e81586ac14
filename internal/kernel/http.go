// Package kernel builds the HTTP handler of the query service: the global
// middleware stack, the operational endpoints and the API routes.
package kernel

import (
	"context"
	"net/http"
	"time"

	"github.com/datajunction/djqs/app/routes"
	"github.com/datajunction/djqs/config"
	"github.com/datajunction/djqs/pkg/logger"
	"github.com/datajunction/djqs/pkg/metrics"
	"github.com/datajunction/djqs/pkg/middleware"
	"github.com/datajunction/djqs/pkg/reqid"
	"github.com/datajunction/djqs/pkg/response"
	"github.com/datajunction/djqs/pkg/router"
	"github.com/datajunction/djqs/pkg/ws"
)

type HTTPKernel struct {
	router  *router.Router
	limiter *middleware.Limiter
}

// New wires the middleware stack and registers every route.
func New(deps routes.Deps) *HTTPKernel {
	k := &HTTPKernel{router: router.New()}
	r := k.router

	// Global middleware, outermost first: metrics (total latency), recovery,
	// request id (before anything logs), logger, CORS, rate limiter.
	r.Use(metrics.Middleware())
	r.Use(middleware.Recovery)
	r.Use(reqid.Middleware())
	r.Use(middleware.Logger)
	r.Use(middleware.CORS(middleware.DefaultCORSOptions(config.CORSOrigins())))
	ws.SetCheckOrigin(ws.AllowOrigins(config.CORSOrigins()))
	if limit := config.RateLimit(); limit > 0 {
		k.limiter = middleware.NewLimiter(limit, time.Minute)
		if err := k.limiter.TrustProxies(config.TrustedProxies()); err != nil {
			logger.Warn("X-Forwarded-For ignored", "error", err)
		}
		r.Use(k.limiter.Middleware)
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		response.Error(w, http.StatusNotFound, "Not Found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		response.Error(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	r.Get("/metrics", "metrics", metrics.Handler())
	routes.RegisterAPI(r, deps)

	return k
}

func (k *HTTPKernel) Handler() http.Handler {
	return k.router.Handler()
}

func (k *HTTPKernel) Routes() []router.RouteInfo {
	return k.router.Routes()
}

// Sweep evicts idle rate-limit buckets until ctx ends.
func (k *HTTPKernel) Sweep(ctx context.Context) {
	if k.limiter != nil {
		k.limiter.Sweep(ctx)
	}
}
