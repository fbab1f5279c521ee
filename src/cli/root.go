// Package cli wires the cobra command tree: the HTTP server plus owner and
// key administration against the configured store.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/assafrot/api-keys-app/src/config"
	"github.com/assafrot/api-keys-app/src/logging"
)

// rootOptions is shared by every subcommand
type rootOptions struct {
	configFile string
	memory     bool

	cfg       *config.Config
	openStore func(ctx context.Context, cfg *config.Config) (*backend, error)
}

// Execute builds the command tree and runs it
func Execute(version string) error {
	return newRootCmd(version, &rootOptions{openStore: openBackend}).Execute()
}

func newRootCmd(version string, opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "api-keys",
		Short: "Issue and validate rot- API keys",
		Long: `api-keys issues API keys with monthly request limits, validates them over
POST /api/protected and streams key changes to signed-in owners.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "YAML config file (overrides CONFIG_FILE)")
	cmd.PersistentFlags().BoolVar(&opts.memory, "memory", false, "use the in-memory store instead of Postgres")

	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newOwnerCmd(opts))
	cmd.AddCommand(newKeysCmd(opts))

	return cmd
}

// load resolves configuration and sets up logging on stderr so stdout stays
// clean for command output
func (o *rootOptions) load(cmd *cobra.Command) error {
	if o.configFile != "" {
		if err := os.Setenv("CONFIG_FILE", o.configFile); err != nil {
			return err
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if o.memory {
		cfg.Store = config.StoreMemory
	}
	logging.Setup(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Output: cmd.ErrOrStderr(),
	})
	o.cfg = cfg
	return nil
}

// ignoreCanceled treats a context ended by the user as a clean exit
func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
