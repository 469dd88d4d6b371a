package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/tabtoken/internal/tokens/domain"
	"github.com/aussiebroadwan/tabtoken/pkg/jwtx"
)

const policyColumns = `client_id, algorithm, encrypted_secret, access_ttl_sec, refresh_ttl_sec, token_type, created_at, updated_at`

type policiesRepo struct {
	q dbtx
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPolicy(row scanner) (domain.ClientPolicy, error) {
	var (
		p          domain.ClientPolicy
		alg        string
		accessSec  int64
		refreshSec int64
	)
	err := row.Scan(&p.ClientID, &alg, &p.EncryptedSecret, &accessSec, &refreshSec,
		&p.TokenType, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return domain.ClientPolicy{}, err
	}

	p.Algorithm = jwtx.Algorithm(alg)
	p.AccessTokenTTL = time.Duration(accessSec) * time.Second
	p.RefreshTokenTTL = time.Duration(refreshSec) * time.Second
	return p, nil
}

func (r *policiesRepo) GetPolicy(ctx context.Context, clientID string) (domain.ClientPolicy, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+policyColumns+` FROM client_policies WHERE client_id = ?`, clientID)

	p, err := scanPolicy(row)
	if err != nil {
		return domain.ClientPolicy{}, mapNotFound(err)
	}
	return p, nil
}

func (r *policiesRepo) ListPolicies(ctx context.Context) ([]domain.ClientPolicy, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+policyColumns+` FROM client_policies ORDER BY client_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ClientPolicy
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *policiesRepo) UpsertPolicy(ctx context.Context, p domain.ClientPolicy) error {
	if err := p.Validate(); err != nil {
		return err
	}

	now := time.Now().UTC()
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO client_policies (`+policyColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (client_id) DO UPDATE SET
			algorithm = excluded.algorithm,
			encrypted_secret = excluded.encrypted_secret,
			access_ttl_sec = excluded.access_ttl_sec,
			refresh_ttl_sec = excluded.refresh_ttl_sec,
			token_type = excluded.token_type,
			updated_at = excluded.updated_at`,
		p.ClientID,
		p.Algorithm.String(),
		p.EncryptedSecret,
		int64(p.AccessTokenTTL/time.Second),
		int64(p.RefreshTokenTTL/time.Second),
		p.TokenTypeLabel(),
		now,
		now,
	)
	return err
}

func (r *policiesRepo) DeletePolicy(ctx context.Context, clientID string) error {
	return mustAffect(r.q.ExecContext(ctx,
		`DELETE FROM client_policies WHERE client_id = ?`, clientID))
}
