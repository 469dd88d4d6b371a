package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/tabtoken/internal/tokens/service"
	"github.com/aussiebroadwan/tabtoken/internal/tokens/store"
	"github.com/aussiebroadwan/tabtoken/internal/tokens/telemetry"
	"github.com/aussiebroadwan/tabtoken/pkg/authn"
	"github.com/aussiebroadwan/tabtoken/pkg/httpx"
	"github.com/aussiebroadwan/tabtoken/pkg/slogx"

	_ "github.com/aussiebroadwan/tabtoken/api/tokens" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// RateLimits are the per-route limiter profiles.
type RateLimits struct {
	Issue      httpx.RateLimitConfig
	Introspect httpx.RateLimitConfig
	Public     httpx.RateLimitConfig
}

// DefaultRateLimits uses the httpx profiles.
func DefaultRateLimits() RateLimits {
	return RateLimits{
		Issue:      httpx.IssueLimit,
		Introspect: httpx.IntrospectLimit,
		Public:     httpx.PublicLimit,
	}
}

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	// Limits may be replaced before ApplyRoutes.
	Limits RateLimits

	issuer       *service.Issuer
	gate         *authn.Authenticator
	store        store.Store
	metrics      *telemetry.Metrics
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
}

func NewRouter(
	issuer *service.Issuer,
	gate *authn.Authenticator,
	st store.Store,
	metrics *telemetry.Metrics,
	buildVersion string,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		Limits:       DefaultRateLimits(),
		issuer:       issuer,
		gate:         gate,
		store:        st,
		metrics:      metrics,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerTokens()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			Tabtoken Token Service API
//	@version		0.1.0
//	@description	Issues and validates HMAC signed access/refresh token pairs for many tenants.
//	@description
//	@description				Each tenant (client_id) has its own algorithm, secret and token lifetimes. Only trusted services may call the /v1 routes.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/tabtoken
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.basic	BasicAuth
//	@description				Service credential. Format: "Basic base64(client_id:secret)".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerTokens() {
	gate := httpx.BasicAuthMiddleware(r.gate)

	// Minting and refreshing share a budget per caller and tenant.
	issueHandler := &TokenHandler{Issuer: r.issuer}
	r.Mux.Handle("POST /v1/tokens",
		httpx.Chain(issueHandler,
			gate,
			httpx.LimitBody(maxBodyBytes),
			httpx.RateLimitByCallerAndField(r.Limits.Issue, "client_id"),
		),
	)

	refreshHandler := &RefreshHandler{Issuer: r.issuer}
	r.Mux.Handle("POST /v1/tokens/refresh",
		httpx.Chain(refreshHandler,
			gate,
			httpx.LimitBody(maxBodyBytes),
			httpx.RateLimitByCallerAndField(r.Limits.Issue, "client_id"),
		),
	)

	introspectHandler := &IntrospectHandler{Issuer: r.issuer}
	r.Mux.Handle("POST /v1/tokens/introspect",
		httpx.Chain(introspectHandler,
			gate,
			httpx.LimitBody(maxBodyBytes),
			httpx.RateLimitByCaller(r.Limits.Introspect),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(r.Limits.Public),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.issuer.Resolver.Strategies),
			httpx.RateLimitByIP(r.Limits.Public),
		),
	)
	if r.metrics != nil {
		r.Mux.Handle("GET /metrics", r.metrics.Handler())
	}
}
