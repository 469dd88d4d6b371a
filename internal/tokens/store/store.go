package store

import (
	"context"
	"errors"

	"github.com/aussiebroadwan/tabtoken/internal/tokens/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Issuance only ever reads through
// it; the write methods exist for seeding and administration.
type Store interface {
	Policies() Policies
	Subjects() Subjects

	ApplyMigrations() error

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise it is committed.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error

	// Ping verifies the backing database is reachable.
	Ping(ctx context.Context) error
}

// Tx is the transaction-scoped view handed to WithTx callbacks.
type Tx interface {
	Policies() Policies
	Subjects() Subjects
}

type Policies interface {
	// GetPolicy returns the policy registered for clientID.
	GetPolicy(ctx context.Context, clientID string) (domain.ClientPolicy, error)

	// ListPolicies returns every policy ordered by client id.
	ListPolicies(ctx context.Context) ([]domain.ClientPolicy, error)

	// UpsertPolicy creates or replaces the policy for p.ClientID.
	UpsertPolicy(ctx context.Context, p domain.ClientPolicy) error

	// DeletePolicy removes a policy and, through the schema, its subjects.
	DeletePolicy(ctx context.Context, clientID string) error
}

type Subjects interface {
	// FindSubjectAttributes returns the subject known to clientID as username.
	FindSubjectAttributes(ctx context.Context, clientID, username string) (domain.Subject, error)

	// CreateSubject inserts a subject. A duplicate (client, username) pair is
	// ErrAlreadyExists.
	CreateSubject(ctx context.Context, s domain.Subject) error

	// SetSubjectActive enables or disables a subject.
	SetSubjectActive(ctx context.Context, clientID, username string, active bool) error
}
