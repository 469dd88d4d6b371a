package sqlite

import (
	"context"
	"strings"
	"time"

	"github.com/aussiebroadwan/tabtoken/internal/tokens/domain"
	"github.com/aussiebroadwan/tabtoken/pkg/idx"
)

type subjectsRepo struct {
	q dbtx
}

func (r *subjectsRepo) FindSubjectAttributes(ctx context.Context, clientID, username string) (domain.Subject, error) {
	var (
		s           domain.Subject
		authorities string
	)
	err := r.q.QueryRowContext(ctx, `
		SELECT id, client_id, username, name, authorities, active, created_at, updated_at
		FROM subjects
		WHERE client_id = ? AND username = ?`, clientID, username).
		Scan(&s.ID, &s.ClientID, &s.Username, &s.Name, &authorities, &s.Active, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return domain.Subject{}, mapNotFound(err)
	}

	s.Authorities = strings.Fields(authorities)
	return s, nil
}

func (r *subjectsRepo) CreateSubject(ctx context.Context, s domain.Subject) error {
	if s.ID == "" {
		s.ID = idx.New().String()
	}
	now := time.Now().UTC()

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO subjects (id, client_id, username, name, authorities, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.ClientID, s.Username, s.Name, strings.Join(s.Authorities, " "), s.Active, now, now,
	)
	return mapConflict(err)
}

func (r *subjectsRepo) SetSubjectActive(ctx context.Context, clientID, username string, active bool) error {
	return mustAffect(r.q.ExecContext(ctx, `
		UPDATE subjects SET active = ?, updated_at = ?
		WHERE client_id = ? AND username = ?`,
		active, time.Now().UTC(), clientID, username))
}
