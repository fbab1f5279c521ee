package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/assafrot/api-keys-app/src/models"
	"github.com/assafrot/api-keys-app/src/realtime"
	"github.com/assafrot/api-keys-app/src/repositories"
	"github.com/assafrot/api-keys-app/src/services"
)

func newKeysCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "keys",
		Aliases: []string{"key"},
		Short:   "Manage API keys",
		Long:    "List, issue, validate and watch API keys directly against the configured store.",
	}

	cmd.AddCommand(newKeysListCmd(opts))
	cmd.AddCommand(newKeysCreateCmd(opts))
	cmd.AddCommand(newKeysValidateCmd(opts))
	cmd.AddCommand(newKeysWatchCmd(opts))

	return cmd
}

// resolveOwner maps a username onto the owner id keys are scoped by
func resolveOwner(ctx context.Context, store repositories.OwnerStore, username string) (string, error) {
	owner, err := store.GetOwnerByUsername(ctx, username)
	if errors.Is(err, repositories.ErrNotFound) {
		return "", fmt.Errorf("owner %q not found", username)
	}
	if err != nil {
		return "", fmt.Errorf("look up owner: %w", err)
	}
	return owner.ID.String(), nil
}

// ---------- keys list ----------

func newKeysListCmd(opts *rootOptions) *cobra.Command {
	var (
		owner      string
		jsonOutput bool
		reveal     bool
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List an owner's keys, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := opts.openStore(ctx, opts.cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			ownerID, err := resolveOwner(ctx, store, owner)
			if err != nil {
				return err
			}
			keys, err := services.NewKeyService(store).List(ctx, ownerID)
			if err != nil {
				return fmt.Errorf("list keys: %w", err)
			}

			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), keys)
			}
			renderKeys(cmd.OutOrStdout(), keys, reveal)
			return nil
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "owner username (required)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	cmd.Flags().BoolVar(&reveal, "reveal", false, "show full key values")
	_ = cmd.MarkFlagRequired("owner")

	return cmd
}

// ---------- keys create ----------

func newKeysCreateCmd(opts *rootOptions) *cobra.Command {
	var (
		owner      string
		name       string
		limit      string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Issue a new API key",
		Example: `  api-keys keys create --owner alice --name production
  api-keys keys create --owner alice --name staging --limit 5000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := opts.openStore(ctx, opts.cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			ownerID, err := resolveOwner(ctx, store, owner)
			if err != nil {
				return err
			}

			var rawLimit interface{}
			if limit != "" {
				rawLimit = limit
			}
			key, err := services.NewKeyService(store).
				WithDefaultLimit(opts.cfg.DefaultMonthlyLimit).
				Create(ctx, ownerID, name, rawLimit)
			if err != nil {
				return fmt.Errorf("create key: %w", err)
			}

			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), key)
			}
			renderKeys(cmd.OutOrStdout(), []models.APIKey{*key}, true)
			return nil
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "owner username (required)")
	cmd.Flags().StringVar(&name, "name", "", "key name, unique per owner (required)")
	cmd.Flags().StringVar(&limit, "limit", "", "monthly request limit (default from DEFAULT_MONTHLY_LIMIT)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	_ = cmd.MarkFlagRequired("owner")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

// ---------- keys validate ----------

func newKeysValidateCmd(opts *rootOptions) *cobra.Command {
	var (
		record     bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "validate <key>",
		Short: "Check a key the way POST /api/protected does",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := opts.openStore(ctx, opts.cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			keys := services.NewKeyService(store)
			verdict := services.NewValidationService(keys).Validate(ctx, args[0])
			if verdict.Valid() && record {
				if err := keys.RecordUsage(ctx, verdict.KeyID); err != nil {
					return fmt.Errorf("record usage: %w", err)
				}
			}

			if jsonOutput {
				if err := writeJSON(cmd.OutOrStdout(), map[string]interface{}{
					"outcome":   verdict.Outcome.String(),
					"keyId":     verdict.KeyID,
					"keyName":   verdict.KeyName,
					"usage":     verdict.Usage,
					"limit":     verdict.MonthlyLimit,
					"remaining": verdict.Remaining,
				}); err != nil {
					return err
				}
			} else {
				renderVerdict(cmd.OutOrStdout(), verdict)
			}

			if !verdict.Valid() {
				return fmt.Errorf("key rejected: %w", verdict.Err())
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&record, "record", false, "count this check against the key's usage")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	return cmd
}

// ---------- keys watch ----------

func newKeysWatchCmd(opts *rootOptions) *cobra.Command {
	var owner string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream changes to an owner's keys until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			store, err := opts.openStore(ctx, opts.cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			ownerID, err := resolveOwner(ctx, store, owner)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			dash := services.NewDashboard(services.NewKeyService(store), ownerID)
			err = dash.Watch(ctx, func(ev models.ChangeEvent) {
				if realtime.Visible(ev, ownerID) {
					renderChange(out, ev, dash.TotalUsage())
				}
			})
			return ignoreCanceled(err)
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "owner username (required)")
	_ = cmd.MarkFlagRequired("owner")

	return cmd
}
