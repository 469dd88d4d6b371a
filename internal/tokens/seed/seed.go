// Package seed loads tenant policies and subjects from a YAML file into a
// store. It is how a fresh deployment gets its first tenants.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/aussiebroadwan/tabtoken/internal/tokens/domain"
	"github.com/aussiebroadwan/tabtoken/internal/tokens/store"
	"github.com/aussiebroadwan/tabtoken/pkg/cryptox"
	"github.com/aussiebroadwan/tabtoken/pkg/jwtx"
	"github.com/aussiebroadwan/tabtoken/pkg/slogx"
	"gopkg.in/yaml.v3"
)

// File is the document layout:
//
//	policies:
//	  - client_id: tenantA
//	    algorithm: HS256
//	    secret: "{cipher}..."   # or plaintext, or omitted to generate one
//	    access_token_ttl: 15m
//	    refresh_token_ttl: 24h
//	    subjects:
//	      - username: alice
//	        authorities: [ROLE_USER]
type File struct {
	Policies []Policy `yaml:"policies"`
}

type Policy struct {
	ClientID        string        `yaml:"client_id"`
	Algorithm       string        `yaml:"algorithm"`
	Secret          string        `yaml:"secret"`
	AccessTokenTTL  time.Duration `yaml:"access_token_ttl"`
	RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl"`
	TokenType       string        `yaml:"token_type"`
	Subjects        []Subject     `yaml:"subjects"`
}

type Subject struct {
	Username    string   `yaml:"username"`
	Name        string   `yaml:"name"`
	Authorities []string `yaml:"authorities"`
	// Active defaults to true when omitted.
	Active *bool `yaml:"active"`
}

// Generated records a secret the seeder created because the file left it
// blank. It is the only time the plaintext is visible.
type Generated struct {
	ClientID string
	Secret   string
}

// Report summarises what Apply wrote.
type Report struct {
	Policies  int
	Subjects  int
	Generated []Generated
}

var ErrInvalidSeed = errors.New("seed: invalid file")

// Load reads and decodes path. Unknown keys are rejected.
func Load(path string) (File, error) {
	f, err := os.Open(path)
	if err != nil {
		return File{}, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()

	var file File
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return File{}, fmt.Errorf("%w: %w", ErrInvalidSeed, err)
	}
	return file, nil
}

// Parse decodes an in-memory document.
func Parse(data []byte) (File, error) {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return File{}, fmt.Errorf("%w: %w", ErrInvalidSeed, err)
	}
	return file, nil
}

// Apply upserts every policy and creates every subject in one transaction.
// Subjects that already exist only have their active flag updated. Secrets
// are stored protected by secrets; blobs already carrying the cipher prefix
// are checked and stored as given. A policy without a secret keeps the one on
// record, or gets a generated one if the tenant is new.
func Apply(ctx context.Context, st store.Store, secrets *cryptox.SecretCodec, file File) (Report, error) {
	log := slogx.FromContext(ctx)
	var report Report

	err := st.WithTx(ctx, func(tx store.Tx) error {
		report = Report{}
		for _, p := range file.Policies {
			stored, err := storedSecret(ctx, tx, p.ClientID)
			if err != nil {
				return err
			}
			policy, generated, err := buildPolicy(secrets, p, stored)
			if err != nil {
				return err
			}
			if err := tx.Policies().UpsertPolicy(ctx, policy); err != nil {
				return fmt.Errorf("upsert policy %s: %w", p.ClientID, err)
			}
			report.Policies++
			if generated != "" {
				report.Generated = append(report.Generated, Generated{ClientID: p.ClientID, Secret: generated})
			}

			for _, s := range p.Subjects {
				if err := applySubject(ctx, tx, p.ClientID, s); err != nil {
					return err
				}
				report.Subjects++
			}
		}
		return nil
	})
	if err != nil {
		return Report{}, err
	}

	log.Info("seed applied",
		slog.Int("policies", report.Policies),
		slog.Int("subjects", report.Subjects),
		slog.Int("generated_secrets", len(report.Generated)),
	)
	return report, nil
}

// storedSecret returns the protected secret already on record for clientID,
// or "" for a tenant the store has not seen.
func storedSecret(ctx context.Context, tx store.Tx, clientID string) (string, error) {
	existing, err := tx.Policies().GetPolicy(ctx, strings.TrimSpace(clientID))
	switch {
	case err == nil:
		return existing.EncryptedSecret, nil
	case errors.Is(err, store.ErrNotFound):
		return "", nil
	default:
		return "", fmt.Errorf("look up policy %s: %w", clientID, err)
	}
}

// buildPolicy turns a seed entry into a policy. A blank secret keeps stored
// when there is one, so re-seeding never rotates a tenant's key; only new
// tenants get a generated secret.
func buildPolicy(secrets *cryptox.SecretCodec, p Policy, stored string) (domain.ClientPolicy, string, error) {
	clientID := strings.TrimSpace(p.ClientID)
	if clientID == "" {
		return domain.ClientPolicy{}, "", fmt.Errorf("%w: policy without client_id", ErrInvalidSeed)
	}

	alg, err := jwtx.ParseAlgorithm(p.Algorithm)
	if err != nil {
		return domain.ClientPolicy{}, "", fmt.Errorf("%w: %s: %w", ErrInvalidSeed, clientID, err)
	}

	var blob, generated string
	switch {
	case p.Secret == "" && stored != "":
		blob = stored
	case strings.HasPrefix(p.Secret, cryptox.CipherPrefix):
		if _, err := secrets.Reveal(p.Secret); err != nil {
			return domain.ClientPolicy{}, "", fmt.Errorf("%w: %s secret does not open with this master key: %w",
				ErrInvalidSeed, clientID, err)
		}
		blob = p.Secret
	default:
		plain := p.Secret
		if plain == "" {
			if plain, err = cryptox.GenerateSecret(cryptox.SecretSize256); err != nil {
				return domain.ClientPolicy{}, "", err
			}
			generated = plain
		}
		if blob, err = secrets.Protect(plain); err != nil {
			return domain.ClientPolicy{}, "", fmt.Errorf("protect %s secret: %w", clientID, err)
		}
	}

	return domain.ClientPolicy{
		ClientID:        clientID,
		Algorithm:       alg,
		EncryptedSecret: blob,
		AccessTokenTTL:  p.AccessTokenTTL,
		RefreshTokenTTL: p.RefreshTokenTTL,
		TokenType:       p.TokenType,
	}, generated, nil
}

func applySubject(ctx context.Context, tx store.Tx, clientID string, s Subject) error {
	active := s.Active == nil || *s.Active

	err := tx.Subjects().CreateSubject(ctx, domain.Subject{
		ClientID:    clientID,
		Username:    s.Username,
		Name:        s.Name,
		Authorities: s.Authorities,
		Active:      active,
	})
	if errors.Is(err, store.ErrAlreadyExists) {
		err = tx.Subjects().SetSubjectActive(ctx, clientID, s.Username, active)
	}
	if err != nil {
		return fmt.Errorf("subject %s/%s: %w", clientID, s.Username, err)
	}
	return nil
}
