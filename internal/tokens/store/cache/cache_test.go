package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aussiebroadwan/tabtoken/internal/tokens/domain"
	"github.com/aussiebroadwan/tabtoken/internal/tokens/store"
	"github.com/aussiebroadwan/tabtoken/internal/tokens/store/cache"
	"github.com/aussiebroadwan/tabtoken/internal/tokens/store/drivers/sqlite"
	"github.com/aussiebroadwan/tabtoken/pkg/jwtx"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*miniredis.Miniredis, *sqlite.Store, *cache.Store) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	db, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.ApplyMigrations())
	t.Cleanup(func() { _ = db.Close() })

	return mr, db, cache.Wrap(db, rdb, time.Minute)
}

func policy(id string, ttl time.Duration) domain.ClientPolicy {
	return domain.ClientPolicy{
		ClientID:        id,
		Algorithm:       jwtx.HS384,
		EncryptedSecret: "{cipher}blob-" + id,
		AccessTokenTTL:  ttl,
		RefreshTokenTTL: time.Hour,
		TokenType:       "bearer",
	}
}

func TestReadThrough(t *testing.T) {
	ctx := context.Background()
	mr, db, cached := setup(t)

	require.NoError(t, db.Policies().UpsertPolicy(ctx, policy("tenantA", 15*time.Minute)))

	got, err := cached.Policies().GetPolicy(ctx, "tenantA")
	require.NoError(t, err)
	require.Equal(t, "{cipher}blob-tenantA", got.EncryptedSecret)
	require.True(t, mr.Exists("tabtoken:policy:tenantA"))
	require.Equal(t, time.Minute, mr.TTL("tabtoken:policy:tenantA"))

	// Change behind the cache's back; the cached copy still wins.
	require.NoError(t, db.Policies().UpsertPolicy(ctx, policy("tenantA", time.Minute)))

	got, err = cached.Policies().GetPolicy(ctx, "tenantA")
	require.NoError(t, err)
	require.Equal(t, 15*time.Minute, got.AccessTokenTTL)
	require.Equal(t, jwtx.HS384, got.Algorithm)
}

func TestNotFoundIsNotCached(t *testing.T) {
	ctx := context.Background()
	mr, _, cached := setup(t)

	_, err := cached.Policies().GetPolicy(ctx, "ghost")
	require.ErrorIs(t, err, store.ErrNotFound)
	require.False(t, mr.Exists("tabtoken:policy:ghost"))
}

func TestWritesEvict(t *testing.T) {
	ctx := context.Background()
	mr, _, cached := setup(t)

	require.NoError(t, cached.Policies().UpsertPolicy(ctx, policy("tenantA", time.Minute)))
	_, err := cached.Policies().GetPolicy(ctx, "tenantA")
	require.NoError(t, err)
	require.True(t, mr.Exists("tabtoken:policy:tenantA"))

	require.NoError(t, cached.Policies().UpsertPolicy(ctx, policy("tenantA", 2*time.Minute)))
	require.False(t, mr.Exists("tabtoken:policy:tenantA"))

	got, err := cached.Policies().GetPolicy(ctx, "tenantA")
	require.NoError(t, err)
	require.Equal(t, 2*time.Minute, got.AccessTokenTTL)

	require.NoError(t, cached.Policies().DeletePolicy(ctx, "tenantA"))
	require.False(t, mr.Exists("tabtoken:policy:tenantA"))
	_, err = cached.Policies().GetPolicy(ctx, "tenantA")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestTxEvictsOnCommit(t *testing.T) {
	ctx := context.Background()
	mr, _, cached := setup(t)

	require.NoError(t, cached.Policies().UpsertPolicy(ctx, policy("tenantA", time.Minute)))
	_, err := cached.Policies().GetPolicy(ctx, "tenantA")
	require.NoError(t, err)

	err = cached.WithTx(ctx, func(tx store.Tx) error {
		return tx.Policies().UpsertPolicy(ctx, policy("tenantA", 3*time.Minute))
	})
	require.NoError(t, err)
	require.False(t, mr.Exists("tabtoken:policy:tenantA"))
}

func TestRedisDownFallsThrough(t *testing.T) {
	ctx := context.Background()
	mr, db, cached := setup(t)
	require.NoError(t, db.Policies().UpsertPolicy(ctx, policy("tenantA", time.Minute)))

	mr.SetError("ERR server is down")

	got, err := cached.Policies().GetPolicy(ctx, "tenantA")
	require.NoError(t, err)
	require.Equal(t, "tenantA", got.ClientID)
	require.Error(t, cached.Ping(ctx))
}
