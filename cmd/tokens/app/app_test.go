package app

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aussiebroadwan/tabtoken/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

const masterKey = "cli test master key"

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestProtect(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv(cryptox.MasterKeyEnv, masterKey)

	out, err := execute(t, "protect", "tenant-secret")
	require.NoError(t, err)

	blob := strings.TrimSpace(out)
	require.True(t, strings.HasPrefix(blob, cryptox.CipherPrefix))

	codec, err := cryptox.NewSecretCodec([]byte(masterKey))
	require.NoError(t, err)
	plain, err := codec.Reveal(blob)
	require.NoError(t, err)
	require.Equal(t, "tenant-secret", plain)
}

func TestProtectGenerate(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv(cryptox.MasterKeyEnv, masterKey)

	out, err := execute(t, "protect", "--generate")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	require.True(t, strings.HasPrefix(lines[0], "secret: "))
	require.True(t, strings.HasPrefix(lines[1], cryptox.CipherPrefix))
}

func TestProtectArgs(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv(cryptox.MasterKeyEnv, masterKey)

	_, err := execute(t, "protect")
	require.Error(t, err)
	_, err = execute(t, "protect", "--generate", "also-a-secret")
	require.Error(t, err)
}

func TestSeed(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv(cryptox.MasterKeyEnv, masterKey)
	t.Setenv("AUTH_DATABASE_FILE", filepath.Join(dir, "tokens.db"))
	t.Setenv("LOG_LEVEL", "error")

	path := filepath.Join(dir, "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
policies:
  - client_id: tenantA
    algorithm: HS256
    access_token_ttl: 15m
    refresh_token_ttl: 1h
    subjects:
      - username: alice
`), 0o600))

	out, err := execute(t, "seed", "--file", path)
	require.NoError(t, err)
	require.Contains(t, out, "seeded 1 policies and 1 subjects")
	require.Contains(t, out, "generated secret for tenantA: ")
}
