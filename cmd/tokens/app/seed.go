package app

import (
	"fmt"

	"github.com/spf13/cobra"

	tokensapp "github.com/aussiebroadwan/tabtoken/internal/tokens/app"
	"github.com/aussiebroadwan/tabtoken/internal/tokens/seed"
	"github.com/aussiebroadwan/tabtoken/pkg/slogx"
)

func newSeedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load tenant policies and subjects from a YAML file",
		Long: `seed upserts every policy in the file and creates its subjects, in one
transaction. Secrets left blank are generated and printed once.`,
		RunE: runSeed,
	}
	cmd.Flags().StringP("file", "f", "", "seed file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func runSeed(cmd *cobra.Command, _ []string) error {
	cfg := tokensapp.LoadConfig()
	path, _ := cmd.Flags().GetString("file")

	file, err := seed.Load(path)
	if err != nil {
		return err
	}

	secrets, err := tokensapp.OpenSecrets(cfg)
	if err != nil {
		return err
	}

	db, err := tokensapp.OpenStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := slogx.WithContext(cmd.Context(), tokensapp.NewLogger(cfg))
	report, err := seed.Apply(ctx, db, secrets, file)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "seeded %d policies and %d subjects\n", report.Policies, report.Subjects)
	for _, g := range report.Generated {
		fmt.Fprintf(out, "generated secret for %s: %s\n", g.ClientID, g.Secret)
	}
	return nil
}
