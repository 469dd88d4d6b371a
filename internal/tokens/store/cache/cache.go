// Package cache puts a Redis read-through cache in front of a store's
// policy lookups. Policies change rarely and are read on every issuance.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/aussiebroadwan/tabtoken/internal/tokens/domain"
	"github.com/aussiebroadwan/tabtoken/internal/tokens/store"
	"github.com/aussiebroadwan/tabtoken/pkg/jwtx"
	"github.com/aussiebroadwan/tabtoken/pkg/slogx"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix  = "tabtoken:policy:"
	DefaultTTL = 5 * time.Minute
)

// Store wraps another store.Store. Only Policies is cached; everything else
// passes straight through.
type Store struct {
	store.Store

	rdb redis.UniversalClient
	ttl time.Duration
}

// Wrap returns inner with cached policy reads. A non-positive ttl means
// DefaultTTL.
func Wrap(inner store.Store, rdb redis.UniversalClient, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{Store: inner, rdb: rdb, ttl: ttl}
}

func (s *Store) Policies() store.Policies {
	return &policies{inner: s.Store.Policies(), rdb: s.rdb, ttl: s.ttl}
}

// Ping checks both the database and Redis.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.Store.Ping(ctx); err != nil {
		return err
	}
	return s.rdb.Ping(ctx).Err()
}

// WithTx invalidates the cached policies touched inside the transaction once
// it commits.
func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	var touched []string
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		return fn(&trackingTx{Tx: tx, touched: &touched})
	})
	if err == nil && len(touched) > 0 {
		evict(ctx, s.rdb, touched...)
	}
	return err
}

type trackingTx struct {
	store.Tx
	touched *[]string
}

func (t *trackingTx) Policies() store.Policies {
	return &trackingPolicies{Policies: t.Tx.Policies(), touched: t.touched}
}

type trackingPolicies struct {
	store.Policies
	touched *[]string
}

func (p *trackingPolicies) UpsertPolicy(ctx context.Context, pol domain.ClientPolicy) error {
	*p.touched = append(*p.touched, pol.ClientID)
	return p.Policies.UpsertPolicy(ctx, pol)
}

func (p *trackingPolicies) DeletePolicy(ctx context.Context, clientID string) error {
	*p.touched = append(*p.touched, clientID)
	return p.Policies.DeletePolicy(ctx, clientID)
}

// cachedPolicy is the Redis representation. Unlike domain.ClientPolicy's JSON
// form it keeps the encrypted secret.
type cachedPolicy struct {
	ClientID        string        `json:"client_id"`
	Algorithm       string        `json:"alg"`
	EncryptedSecret string        `json:"secret"`
	AccessTokenTTL  time.Duration `json:"access_ttl"`
	RefreshTokenTTL time.Duration `json:"refresh_ttl"`
	TokenType       string        `json:"token_type"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

func toCached(p domain.ClientPolicy) cachedPolicy {
	return cachedPolicy{
		ClientID:        p.ClientID,
		Algorithm:       p.Algorithm.String(),
		EncryptedSecret: p.EncryptedSecret,
		AccessTokenTTL:  p.AccessTokenTTL,
		RefreshTokenTTL: p.RefreshTokenTTL,
		TokenType:       p.TokenType,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
}

func (c cachedPolicy) policy() domain.ClientPolicy {
	return domain.ClientPolicy{
		ClientID:        c.ClientID,
		Algorithm:       jwtx.Algorithm(c.Algorithm),
		EncryptedSecret: c.EncryptedSecret,
		AccessTokenTTL:  c.AccessTokenTTL,
		RefreshTokenTTL: c.RefreshTokenTTL,
		TokenType:       c.TokenType,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
}

type policies struct {
	inner store.Policies
	rdb   redis.UniversalClient
	ttl   time.Duration
}

// GetPolicy serves from Redis when it can. Redis being down is not an error
// for the caller; the lookup falls through to the database.
func (p *policies) GetPolicy(ctx context.Context, clientID string) (domain.ClientPolicy, error) {
	log := slogx.FromContext(ctx)

	raw, err := p.rdb.Get(ctx, keyPrefix+clientID).Bytes()
	switch {
	case err == nil:
		var c cachedPolicy
		if jerr := json.Unmarshal(raw, &c); jerr == nil {
			return c.policy(), nil
		}
		log.Warn("policy cache: dropping undecodable entry", "client_id", clientID)
	case !errors.Is(err, redis.Nil):
		log.Warn("policy cache: read failed", "client_id", clientID, "err", err)
	}

	pol, err := p.inner.GetPolicy(ctx, clientID)
	if err != nil {
		return domain.ClientPolicy{}, err
	}

	if data, err := json.Marshal(toCached(pol)); err == nil {
		if err := p.rdb.Set(ctx, keyPrefix+clientID, data, p.ttl).Err(); err != nil {
			log.Warn("policy cache: write failed", "client_id", clientID, "err", err)
		}
	}
	return pol, nil
}

func (p *policies) ListPolicies(ctx context.Context) ([]domain.ClientPolicy, error) {
	return p.inner.ListPolicies(ctx)
}

func (p *policies) UpsertPolicy(ctx context.Context, pol domain.ClientPolicy) error {
	if err := p.inner.UpsertPolicy(ctx, pol); err != nil {
		return err
	}
	evict(ctx, p.rdb, pol.ClientID)
	return nil
}

func (p *policies) DeletePolicy(ctx context.Context, clientID string) error {
	if err := p.inner.DeletePolicy(ctx, clientID); err != nil {
		return err
	}
	evict(ctx, p.rdb, clientID)
	return nil
}

func evict(ctx context.Context, rdb redis.UniversalClient, clientIDs ...string) {
	keys := make([]string, len(clientIDs))
	for i, id := range clientIDs {
		keys[i] = keyPrefix + id
	}
	if err := rdb.Del(ctx, keys...).Err(); err != nil {
		slogx.FromContext(ctx).Warn("policy cache: evict failed", "clients", clientIDs, "err", err)
	}
}
