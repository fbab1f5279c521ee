package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/assafrot/api-keys-app/src/services"
)

func newOwnerCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "owner",
		Short: "Manage dashboard owners",
	}

	cmd.AddCommand(newOwnerCreateCmd(opts))

	return cmd
}

func newOwnerCreateCmd(opts *rootOptions) *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:     "create",
		Short:   "Create an owner account",
		Example: `  api-keys owner create --username alice --password 'correct horse battery'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := opts.openStore(ctx, opts.cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			owner, err := services.NewOwnerService(store).Create(ctx, username, password)
			if errors.Is(err, services.ErrOwnerExists) {
				return fmt.Errorf("owner %q already exists", username)
			}
			if err != nil {
				return fmt.Errorf("create owner: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Owner created: %s (%s)\n", owner.Username, owner.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "owner username (required)")
	cmd.Flags().StringVar(&password, "password", "", "owner password, at least 8 characters (required)")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}
