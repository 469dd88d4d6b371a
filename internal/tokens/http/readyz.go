package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/aussiebroadwan/tabtoken/internal/tokens/service"
	"github.com/aussiebroadwan/tabtoken/internal/tokens/store"
	"github.com/aussiebroadwan/tabtoken/pkg/authsdk"
	"github.com/aussiebroadwan/tabtoken/pkg/httpx"
)

// ReadyzHandler godoc
//
//	@Summary		Readiness Check Endpoint
//	@Description	Readiness probe. Checks the policy store (and its cache) and that at least one tenant has a claim strategy.
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	authsdk.HealthResponse	"status, uptime, version, checks"
//	@Failure		503	{object}	authsdk.HealthResponse	"status, uptime, version, checks - service not ready"
//	@Router			/readyz [get].
func ReadyzHandler(
	startTime time.Time,
	version string,
	st store.Store,
	strategies *service.StrategyRegistry,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := &authsdk.HealthChecks{
			Database:   "ok",
			Strategies: "ok",
		}
		overallStatus := "ok"
		statusCode := http.StatusOK

		if err := st.Ping(r.Context()); err != nil {
			checks.Database = "error: " + err.Error()
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		if strategies == nil || len(strategies.Clients()) == 0 {
			checks.Strategies = "error: no tenant has a claim strategy"
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		} else {
			checks.Strategies = "ok: " + strconv.Itoa(len(strategies.Clients())) + " tenants"
		}

		response := authsdk.HealthResponse{
			Status:  overallStatus,
			Uptime:  time.Since(startTime).String(),
			Version: version,
			Checks:  checks,
		}
		httpx.WriteJSON(w, statusCode, response)
	}
}
