// Package rpc serves the issuer over gRPC. Messages are JSON encoded, so the
// service needs no generated code; callers select the codec with
// grpcx.JSONCallOption.
package rpc

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/aussiebroadwan/tabtoken/internal/tokens/domain"
	"github.com/aussiebroadwan/tabtoken/internal/tokens/service"
	"github.com/aussiebroadwan/tabtoken/pkg/authsdk"
	"github.com/aussiebroadwan/tabtoken/pkg/jwtx"
	"github.com/aussiebroadwan/tabtoken/pkg/slogx"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Server implements TokensServer on top of a service.Issuer.
type Server struct {
	Issuer *service.Issuer
}

var _ TokensServer = (*Server)(nil)

func (s *Server) Issue(ctx context.Context, in *authsdk.TokenRequest) (*authsdk.TokenResponse, error) {
	clientID, subject := strings.TrimSpace(in.ClientID), strings.TrimSpace(in.Subject)
	if clientID == "" || subject == "" {
		return nil, status.Error(codes.InvalidArgument, "client_id and subject are required")
	}

	res, err := s.Issuer.Issue(ctx, clientID, subject)
	if err != nil {
		return nil, issuanceStatus(ctx, err)
	}
	return tokenResponse(res), nil
}

func (s *Server) Refresh(ctx context.Context, in *authsdk.RefreshRequest) (*authsdk.TokenResponse, error) {
	clientID, token := strings.TrimSpace(in.ClientID), strings.TrimSpace(in.RefreshToken)
	if clientID == "" || token == "" {
		return nil, status.Error(codes.InvalidArgument, "client_id and refresh_token are required")
	}

	res, err := s.Issuer.Refresh(ctx, clientID, token)
	if err != nil {
		return nil, issuanceStatus(ctx, err)
	}
	return tokenResponse(res), nil
}

func (s *Server) Introspect(ctx context.Context, in *authsdk.IntrospectRequest) (*authsdk.IntrospectionResponse, error) {
	clientID, token := strings.TrimSpace(in.ClientID), strings.TrimSpace(in.Token)
	if clientID == "" || token == "" {
		return nil, status.Error(codes.InvalidArgument, "client_id and token are required")
	}

	info, err := s.Issuer.Introspect(ctx, clientID, token)
	switch {
	case err == nil:
		return &authsdk.IntrospectionResponse{
			Active:    info.Active,
			Subject:   info.Subject,
			ClientID:  info.ClientID,
			JTI:       info.JWTID,
			IssuedAt:  info.IssuedAt,
			ExpiresAt: info.ExpiresAt,
			Claims:    info.Claims,
		}, nil
	case errors.Is(err, service.ErrUnknownClient):
		return nil, status.Error(codes.InvalidArgument, authsdk.ErrUnknownClient.Description)
	case errors.Is(err, jwtx.ErrExpiredToken):
		return &authsdk.IntrospectionResponse{Reason: authsdk.ReasonExpired}, nil
	case errors.Is(err, jwtx.ErrSignatureMismatch):
		return &authsdk.IntrospectionResponse{Reason: authsdk.ReasonSignatureMismatch}, nil
	case errors.Is(err, jwtx.ErrMalformedToken):
		return &authsdk.IntrospectionResponse{Reason: authsdk.ReasonMalformed}, nil
	default:
		slogx.FromContext(ctx).Error("introspection failed", slog.String("client_id", clientID), slog.Any("err", err))
		return nil, status.Error(codes.Internal, authsdk.ErrServerError.Description)
	}
}

func issuanceStatus(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrUnknownClient):
		return status.Error(codes.InvalidArgument, authsdk.ErrUnknownClient.Description)
	case errors.Is(err, service.ErrSubjectNotFound):
		return status.Error(codes.NotFound, authsdk.ErrUnknownSubject.Description)
	case errors.Is(err, service.ErrSubjectInactive):
		return status.Error(codes.FailedPrecondition, authsdk.ErrSubjectInactive.Description)
	case errors.Is(err, service.ErrInvalidRefresh):
		return status.Error(codes.InvalidArgument, authsdk.ErrInvalidRefresh.Description)
	default:
		slogx.FromContext(ctx).Error("token issuance failed", slog.Any("err", err))
		return status.Error(codes.Internal, authsdk.ErrServerError.Description)
	}
}

func tokenResponse(res domain.IssuanceResult) *authsdk.TokenResponse {
	return &authsdk.TokenResponse{
		AccessToken:    res.AccessToken,
		RefreshToken:   res.RefreshToken,
		TokenType:      res.TokenType,
		JTI:            res.JWTID,
		ExpiresIn:      res.ExpiresIn,
		AdditionalInfo: res.AdditionalInfo,
	}
}
