package service

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"

	"github.com/aussiebroadwan/tabtoken/internal/tokens/domain"
	"github.com/aussiebroadwan/tabtoken/internal/tokens/store"
	"github.com/aussiebroadwan/tabtoken/pkg/jwtx"
)

// Strategy names accepted by NewStrategy and ParseStrategies.
const (
	StrategyStandard = "standard"
	StrategyCompact  = "compact"
)

// Claim keys produced by the built-in strategies.
const (
	ClaimUsername = "username"
	ClaimName     = "name"
)

// ClaimStrategy turns a subject of one tenant into the raw claim maps an
// issuance needs. Tenants with different user models get different
// strategies; the issuer never looks inside.
type ClaimStrategy interface {
	Name() string
	Claims(ctx context.Context, clientID, subject string) (domain.RawClaims, error)
}

// SubjectFinder is the read side of store.Subjects.
type SubjectFinder interface {
	FindSubjectAttributes(ctx context.Context, clientID, username string) (domain.Subject, error)
}

// StandardStrategy exposes the subject's display name in the access token and
// hands the authorities back to the caller alongside the tokens.
type StandardStrategy struct {
	Subjects SubjectFinder
	RolesKey string
}

func (s StandardStrategy) Name() string { return StrategyStandard }

func (s StandardStrategy) Claims(ctx context.Context, clientID, subject string) (domain.RawClaims, error) {
	sub, err := lookupSubject(ctx, s.Subjects, clientID, subject)
	if err != nil {
		return domain.RawClaims{}, err
	}
	roles := rolesKey(s.RolesKey)

	return domain.RawClaims{
		Access: newClaims().
			set(ClaimUsername, sub.Username).
			set(ClaimName, sub.Name).
			set(roles, authorities(sub)).
			build(),
		Refresh: newClaims().
			set(ClaimUsername, sub.Username).
			build(),
		Additional: newClaims().
			set(ClaimUsername, sub.Username).
			set(roles, authorities(sub)).
			build(),
	}, nil
}

// CompactStrategy keeps tokens small: no display name, and only the
// username is returned to the caller.
type CompactStrategy struct {
	Subjects SubjectFinder
	RolesKey string
}

func (s CompactStrategy) Name() string { return StrategyCompact }

func (s CompactStrategy) Claims(ctx context.Context, clientID, subject string) (domain.RawClaims, error) {
	sub, err := lookupSubject(ctx, s.Subjects, clientID, subject)
	if err != nil {
		return domain.RawClaims{}, err
	}

	return domain.RawClaims{
		Access: newClaims().
			set(ClaimUsername, sub.Username).
			set(rolesKey(s.RolesKey), authorities(sub)).
			build(),
		Refresh: newClaims().
			set(ClaimUsername, sub.Username).
			build(),
		Additional: newClaims().
			set(ClaimUsername, sub.Username).
			build(),
	}, nil
}

func lookupSubject(ctx context.Context, subjects SubjectFinder, clientID, username string) (domain.Subject, error) {
	if strings.TrimSpace(username) == "" {
		return domain.Subject{}, ErrSubjectNotFound
	}

	sub, err := subjects.FindSubjectAttributes(ctx, clientID, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Subject{}, fmt.Errorf("%w: %s/%s", ErrSubjectNotFound, clientID, username)
		}
		return domain.Subject{}, fmt.Errorf("find subject: %w", err)
	}
	if !sub.Active {
		return domain.Subject{}, fmt.Errorf("%w: %s/%s", ErrSubjectInactive, clientID, username)
	}
	return sub, nil
}

func authorities(sub domain.Subject) []string {
	if sub.Authorities == nil {
		return []string{}
	}
	return slices.Clone(sub.Authorities)
}

func rolesKey(key string) string {
	if key == "" {
		return jwtx.DefaultRolesKey
	}
	return key
}

// claimBuilder assembles a claim map one key at a time.
type claimBuilder struct {
	m map[string]any
}

func newClaims() *claimBuilder {
	return &claimBuilder{m: make(map[string]any)}
}

func (b *claimBuilder) set(key string, value any) *claimBuilder {
	b.m[key] = value
	return b
}

func (b *claimBuilder) merge(other map[string]any) *claimBuilder {
	maps.Copy(b.m, other)
	return b
}

func (b *claimBuilder) build() map[string]any { return b.m }

// NewStrategy builds the named strategy.
func NewStrategy(name string, subjects SubjectFinder, rolesKey string) (ClaimStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case StrategyStandard:
		return StandardStrategy{Subjects: subjects, RolesKey: rolesKey}, nil
	case StrategyCompact:
		return CompactStrategy{Subjects: subjects, RolesKey: rolesKey}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
}

// StrategyRegistry maps client ids to their claim strategy. It is filled at
// startup and only read afterwards.
type StrategyRegistry struct {
	byClient map[string]ClaimStrategy
}

func NewStrategyRegistry() *StrategyRegistry {
	return &StrategyRegistry{byClient: make(map[string]ClaimStrategy)}
}

// Register binds clientID to s, replacing any earlier binding.
func (r *StrategyRegistry) Register(clientID string, s ClaimStrategy) {
	r.byClient[clientID] = s
}

func (r *StrategyRegistry) Lookup(clientID string) (ClaimStrategy, bool) {
	s, ok := r.byClient[clientID]
	return s, ok
}

// Clients returns the registered client ids, sorted.
func (r *StrategyRegistry) Clients() []string {
	ids := make([]string, 0, len(r.byClient))
	for id := range r.byClient {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ParseStrategies reads a "clientA=standard,clientB=compact" list.
// Whitespace around entries is ignored; an empty list gives an empty registry.
func ParseStrategies(list string, subjects SubjectFinder, rolesKey string) (*StrategyRegistry, error) {
	reg := NewStrategyRegistry()

	for entry := range strings.SplitSeq(list, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		clientID, name, ok := strings.Cut(entry, "=")
		clientID = strings.TrimSpace(clientID)
		if !ok || clientID == "" {
			return nil, fmt.Errorf("claim strategies: malformed entry %q", entry)
		}

		s, err := NewStrategy(name, subjects, rolesKey)
		if err != nil {
			return nil, fmt.Errorf("claim strategies: client %s: %w", clientID, err)
		}
		reg.Register(clientID, s)
	}
	return reg, nil
}
