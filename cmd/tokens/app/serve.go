package app

import (
	"github.com/spf13/cobra"

	tokensapp "github.com/aussiebroadwan/tabtoken/internal/tokens/app"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP and gRPC token APIs",
		RunE:  runServe,
	}
	addServeFlags(cmd)
	return cmd
}

func addServeFlags(cmd *cobra.Command) {
	cmd.Flags().Int("port", 0, "HTTP port (overrides PORT)")
	cmd.Flags().Int("grpc-port", -1, "gRPC port, 0 disables (overrides GRPC_PORT)")
	cmd.Flags().String("seed", "", "YAML seed applied at startup (overrides AUTH_SEED_FILE)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := tokensapp.LoadConfig()

	if port, _ := cmd.Flags().GetInt("port"); port > 0 {
		cfg.Port = port
	}
	if port, _ := cmd.Flags().GetInt("grpc-port"); port >= 0 {
		cfg.GRPCPort = port
	}
	if path, _ := cmd.Flags().GetString("seed"); path != "" {
		cfg.SeedFile = path
	}

	application, err := tokensapp.New(cfg)
	if err != nil {
		return err
	}
	return application.Run()
}
