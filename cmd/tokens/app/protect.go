package app

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	tokensapp "github.com/aussiebroadwan/tabtoken/internal/tokens/app"
	"github.com/aussiebroadwan/tabtoken/pkg/cryptox"
)

func newProtectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "protect [secret]",
		Short: "Encrypt a tenant signing secret with the master key",
		Long: `protect prints the {cipher} blob for a signing secret, ready to be pasted
into a seed file. With --generate a fresh random secret is created first and
printed alongside its blob.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runProtect,
	}
	cmd.Flags().Bool("generate", false, "generate a random secret instead of reading one")
	cmd.Flags().Int("size", cryptox.SecretSize256, "generated secret size in bytes")
	return cmd
}

func runProtect(cmd *cobra.Command, args []string) error {
	generate, _ := cmd.Flags().GetBool("generate")

	var plain string
	switch {
	case generate && len(args) > 0:
		return errors.New("pass either a secret or --generate, not both")
	case generate:
		size, _ := cmd.Flags().GetInt("size")
		var err error
		if plain, err = cryptox.GenerateSecret(size); err != nil {
			return err
		}
	case len(args) == 1:
		plain = args[0]
	default:
		return errors.New("a secret argument or --generate is required")
	}

	secrets, err := tokensapp.OpenSecrets(tokensapp.LoadConfig())
	if err != nil {
		return err
	}
	blob, err := secrets.Protect(plain)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if generate {
		fmt.Fprintf(out, "secret: %s\n", plain)
	}
	fmt.Fprintln(out, blob)
	return nil
}
