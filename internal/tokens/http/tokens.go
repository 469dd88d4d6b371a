package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/aussiebroadwan/tabtoken/internal/tokens/domain"
	"github.com/aussiebroadwan/tabtoken/internal/tokens/service"
	"github.com/aussiebroadwan/tabtoken/pkg/authsdk"
	"github.com/aussiebroadwan/tabtoken/pkg/httpx"
	"github.com/aussiebroadwan/tabtoken/pkg/jwtx"
	"github.com/aussiebroadwan/tabtoken/pkg/slogx"
)

// TokenHandler serves POST /v1/tokens.
type TokenHandler struct {
	Issuer *service.Issuer
}

// ServeHTTP godoc
//
//	@Summary		Issue Token Pair
//	@Description	Mints a linked access/refresh token pair for a subject of a tenant, signed with the tenant's own secret and algorithm.
//	@Tags			Tokens
//	@Accept			application/x-www-form-urlencoded
//	@Accept			json
//	@Produce		json
//	@Security		BasicAuth
//	@Param			client_id	formData	string					true	"Tenant the token is for"
//	@Param			subject		formData	string					true	"Username of the subject within the tenant"
//	@Success		200			{object}	authsdk.TokenResponse	"access_token, refresh_token, token_type, jti, expires_in, additional_info"
//	@Failure		400			{object}	authsdk.ErrorResponse	"invalid_request, invalid_client or invalid_grant"
//	@Failure		401			{object}	authsdk.ErrorResponse	"caller failed the basic credential check"
//	@Failure		429			{object}	authsdk.ErrorResponse	"rate limited"
//	@Failure		500			{object}	authsdk.ErrorResponse	"server_error"
//	@Header			200			{string}	Cache-Control			"no-store"
//	@Router			/v1/tokens [post].
func (h *TokenHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	params, perr := readParams(w, r, "client_id", "subject")
	if perr != nil {
		perr.WriteError(w)
		return
	}

	res, err := h.Issuer.Issue(r.Context(), params["client_id"], params["subject"])
	if err != nil {
		writeIssuanceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, tokenResponse(res))
}

// RefreshHandler serves POST /v1/tokens/refresh.
type RefreshHandler struct {
	Issuer *service.Issuer
}

// ServeHTTP godoc
//
//	@Summary		Refresh Token Pair
//	@Description	Verifies a refresh token under the tenant's secret and mints a new pair for the same subject.
//	@Tags			Tokens
//	@Accept			application/x-www-form-urlencoded
//	@Accept			json
//	@Produce		json
//	@Security		BasicAuth
//	@Param			client_id		formData	string					true	"Tenant the refresh token was issued for"
//	@Param			refresh_token	formData	string					true	"Refresh token from an earlier issuance"
//	@Success		200				{object}	authsdk.TokenResponse	"a new token pair"
//	@Failure		400				{object}	authsdk.ErrorResponse	"invalid_request, invalid_client or invalid_grant"
//	@Failure		401				{object}	authsdk.ErrorResponse	"caller failed the basic credential check"
//	@Failure		500				{object}	authsdk.ErrorResponse	"server_error"
//	@Header			200				{string}	Cache-Control			"no-store"
//	@Router			/v1/tokens/refresh [post].
func (h *RefreshHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	params, perr := readParams(w, r, "client_id", "refresh_token")
	if perr != nil {
		perr.WriteError(w)
		return
	}

	res, err := h.Issuer.Refresh(r.Context(), params["client_id"], params["refresh_token"])
	if err != nil {
		writeIssuanceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, tokenResponse(res))
}

// IntrospectHandler serves POST /v1/tokens/introspect.
type IntrospectHandler struct {
	Issuer *service.Issuer
}

// ServeHTTP godoc
//
//	@Summary		Introspect Token
//	@Description	Verifies a token under the tenant's secret. Invalid tokens are reported with active=false and a reason (expired, signature_mismatch, malformed).
//	@Tags			Tokens
//	@Accept			application/x-www-form-urlencoded
//	@Accept			json
//	@Produce		json
//	@Security		BasicAuth
//	@Param			client_id	formData	string							true	"Tenant the token claims to belong to"
//	@Param			token		formData	string							true	"Access or refresh token"
//	@Success		200			{object}	authsdk.IntrospectionResponse	"token status and claims"
//	@Failure		400			{object}	authsdk.ErrorResponse			"invalid_request or invalid_client"
//	@Failure		401			{object}	authsdk.ErrorResponse			"caller failed the basic credential check"
//	@Failure		500			{object}	authsdk.ErrorResponse			"server_error"
//	@Router			/v1/tokens/introspect [post].
func (h *IntrospectHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := slogx.FromContext(r.Context())

	params, perr := readParams(w, r, "client_id", "token")
	if perr != nil {
		perr.WriteError(w)
		return
	}

	in, err := h.Issuer.Introspect(r.Context(), params["client_id"], params["token"])
	if err != nil {
		var reason string
		switch {
		case errors.Is(err, service.ErrUnknownClient):
			authsdk.ErrUnknownClient.WriteError(w)
			return
		case errors.Is(err, jwtx.ErrExpiredToken):
			reason = authsdk.ReasonExpired
		case errors.Is(err, jwtx.ErrSignatureMismatch):
			reason = authsdk.ReasonSignatureMismatch
		case errors.Is(err, jwtx.ErrMalformedToken):
			reason = authsdk.ReasonMalformed
		default:
			log.Error("introspection failed", slog.String("client_id", params["client_id"]), slog.Any("err", err))
			authsdk.ErrServerError.WriteError(w)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, authsdk.IntrospectionResponse{Active: false, Reason: reason})
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.IntrospectionResponse{
		Active:    in.Active,
		Subject:   in.Subject,
		ClientID:  in.ClientID,
		JTI:       in.JWTID,
		IssuedAt:  in.IssuedAt,
		ExpiresAt: in.ExpiresAt,
		Claims:    in.Claims,
	})
}

func tokenResponse(res domain.IssuanceResult) authsdk.TokenResponse {
	return authsdk.TokenResponse{
		AccessToken:    res.AccessToken,
		RefreshToken:   res.RefreshToken,
		TokenType:      res.TokenType,
		JTI:            res.JWTID,
		ExpiresIn:      res.ExpiresIn,
		AdditionalInfo: res.AdditionalInfo,
	}
}

func writeIssuanceError(w http.ResponseWriter, r *http.Request, err error) {
	log := slogx.FromContext(r.Context())

	switch {
	case errors.Is(err, service.ErrUnknownClient):
		authsdk.ErrUnknownClient.WriteError(w)
	case errors.Is(err, service.ErrSubjectNotFound):
		authsdk.ErrUnknownSubject.WriteError(w)
	case errors.Is(err, service.ErrSubjectInactive):
		authsdk.ErrSubjectInactive.WriteError(w)
	case errors.Is(err, service.ErrInvalidRefresh):
		authsdk.ErrInvalidRefresh.WriteError(w)
	default:
		var ierr *service.IssuanceError
		if errors.As(err, &ierr) {
			log.Error("token issuance failed",
				slog.String("client_id", ierr.ClientID),
				slog.String("op", ierr.Op),
				slog.Any("err", ierr.Err),
			)
		} else {
			log.Error("token issuance failed", slog.Any("err", err))
		}
		authsdk.ErrServerError.WriteError(w)
	}
}
