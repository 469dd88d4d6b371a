package httpx

import (
	"net/http"

	"github.com/aussiebroadwan/tabtoken/pkg/authn"
	"github.com/aussiebroadwan/tabtoken/pkg/slogx"
)

// Realm is advertised in the WWW-Authenticate challenge.
const Realm = "tabtoken"

// BasicAuthMiddleware admits a request only when its Authorization header
// passes a. Rejected requests get a 401 with a Basic challenge and never
// reach next.
func BasicAuthMiddleware(a *authn.Authenticator) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, err := a.Authenticate(r.Context(), r.Header.Get("Authorization"))
			if err != nil {
				slogx.FromContext(r.Context()).Info("request rejected",
					"path", r.URL.Path,
					"reason", err,
				)
				writeBasicChallenge(w, authn.Reason(err))
				return
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeBasicChallenge(w http.ResponseWriter, desc string) {
	w.Header().Set("WWW-Authenticate", `Basic realm="`+Realm+`", charset="UTF-8"`)
	WriteError(w, http.StatusUnauthorized, "unauthorized", desc)
}
