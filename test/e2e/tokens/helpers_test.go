package tokens_test

import (
	"context"
	"fmt"
	"maps"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/aussiebroadwan/tabtoken/pkg/authsdk"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

/*
 * Common constants and helper functions for token service end-to-end tests.
 * This includes container setup and assertions.
 */

const (
	testImageName = "tabtoken-test:latest"

	gatewayID     = "svc-gateway"
	gatewaySecret = "e2e-gateway-secret"
	masterKey     = "e2e-master-key-material"

	tenantASecret = "e2e-tenant-a-signing-secret"
)

// TestMain builds the Docker image once before all tests and removes it
// afterwards. Without a docker binary the suite is skipped.
func TestMain(m *testing.M) {
	if _, err := exec.LookPath("docker"); err != nil {
		fmt.Fprintln(os.Stdout, "docker not found, skipping token service e2e tests")
		os.Exit(0)
	}

	fmt.Fprintf(os.Stdout, "Building token service Docker image...")
	if err := buildDockerImage(); err != nil {
		fmt.Fprintf(os.Stderr, "\nFailed to build Docker image: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stdout, " done\n")

	exitCode := m.Run()

	fmt.Fprintf(os.Stdout, "Cleaning up token service Docker image...")
	cleanupDockerImage()
	fmt.Fprintf(os.Stdout, " done\n")

	os.Exit(exitCode)
}

func buildDockerImage() error {
	cmd := exec.CommandContext(context.Background(), "docker", "build",
		"-t", testImageName,
		"-f", "../../../cmd/tokens/Dockerfile",
		"../../../")
	cmd.Stdout = os.Stdout
	return cmd.Run()
}

func cleanupDockerImage() {
	cmd := exec.CommandContext(context.Background(), "docker", "rmi", "-f", testImageName)
	_ = cmd.Run() // image might not exist
}

// setupTokenContainer starts the service seeded from testdata/seed.yaml with
// generous rate limits and returns its base URL.
func setupTokenContainer(t *testing.T) (string, func()) {
	return setupTokenContainerWithEnv(t, map[string]string{
		"RATELIMIT_ISSUE_REQUESTS":      "1000",
		"RATELIMIT_ISSUE_BURST":         "1000",
		"RATELIMIT_INTROSPECT_REQUESTS": "1000",
		"RATELIMIT_INTROSPECT_BURST":    "1000",
	})
}

func setupTokenContainerWithEnv(t *testing.T, extra map[string]string) (string, func()) {
	t.Helper()
	ctx := context.Background()

	env := map[string]string{
		"AUTH_DATABASE_FILE":       "/data/tokens.db",
		"AUTH_MASTER_KEY":          masterKey,
		"AUTH_BASIC_CLIENT_ID":     gatewayID,
		"AUTH_BASIC_CLIENT_SECRET": gatewaySecret,
		"AUTH_CLIENT_STRATEGIES":   "tenantA=standard,tenantB=compact",
		"AUTH_SEED_FILE":           "/etc/tabtoken/seed.yaml",
		"GRPC_PORT":                "0",
		"ENV":                      "test",
		"LOG_LEVEL":                "info",
		"LOG_FORMAT":               "json",
	}
	maps.Copy(env, extra)

	req := testcontainers.ContainerRequest{
		Image:        testImageName,
		ExposedPorts: []string{"8080/tcp"},
		Env:          env,
		Files: []testcontainers.ContainerFile{{
			HostFilePath:      "testdata/seed.yaml",
			ContainerFilePath: "/etc/tabtoken/seed.yaml",
			FileMode:          0o644,
		}},
		WaitingFor: wait.ForHTTP("/livez").
			WithPort("8080/tcp").
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	mappedPort, err := container.MappedPort(ctx, "8080")
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	baseURL := fmt.Sprintf("http://%s:%s", host, mappedPort.Port())

	cleanup := func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}

	return baseURL, cleanup
}

func newClient(baseURL string) *authsdk.Client {
	return authsdk.NewClient(baseURL, gatewayID, gatewaySecret)
}

func assertHealthy(t *testing.T, health *authsdk.HealthResponse, err error) {
	t.Helper()
	require.NoError(t, err)
	require.NotNil(t, health)
	require.Equal(t, "ok", health.Status)
	require.NotEmpty(t, health.Version)
}
