package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aussiebroadwan/tabtoken/internal/tokens/domain"
	"github.com/aussiebroadwan/tabtoken/internal/tokens/store"
)

// PolicyFinder is the read side of store.Policies.
type PolicyFinder interface {
	GetPolicy(ctx context.Context, clientID string) (domain.ClientPolicy, error)
}

// Resolver answers "how does this tenant want its tokens": the signing
// policy from the store and the claim strategy from the registry. Both
// lookups are pure reads.
type Resolver struct {
	Policies   PolicyFinder
	Strategies *StrategyRegistry
}

func (r *Resolver) Resolve(ctx context.Context, clientID string) (domain.ClientPolicy, error) {
	if strings.TrimSpace(clientID) == "" {
		return domain.ClientPolicy{}, ErrUnknownClient
	}

	p, err := r.Policies.GetPolicy(ctx, clientID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.ClientPolicy{}, fmt.Errorf("%w: %s", ErrUnknownClient, clientID)
		}
		return domain.ClientPolicy{}, fmt.Errorf("resolve policy: %w", err)
	}
	return p, nil
}

func (r *Resolver) ResolveClaimStrategy(clientID string) (ClaimStrategy, error) {
	if r.Strategies != nil {
		if s, ok := r.Strategies.Lookup(clientID); ok {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%w: %s has no claim strategy", ErrUnknownClient, clientID)
}
