package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"mcpgate/internal/app"
	"mcpgate/internal/config"
	"mcpgate/internal/credstore"
)

var credentialsConfigPath string

// newCredentialsCmd creates the operator commands for stored credentials.
func newCredentialsCmd() *cobra.Command {
	credentialsCmd := &cobra.Command{
		Use:   "credentials",
		Short: "Inspect and revoke stored user credentials",
		Long: `Operates directly on the credential database under STORAGE_ROOT.

Revoking a user deletes the stored upstream credential and every access
token issued to that user; the user has to authorize again.`,
	}
	credentialsCmd.PersistentFlags().StringVar(&credentialsConfigPath, "config-path", "", "Configuration directory containing config.yaml")

	credentialsCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List users with a stored credential",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openCredentialStore()
			if err != nil {
				return err
			}
			defer store.Close()

			summaries, err := store.ListCredentials(cmd.Context())
			if err != nil {
				return fmt.Errorf("list credentials: %w", err)
			}
			renderCredentials(cmd.OutOrStdout(), summaries)
			return nil
		},
	})

	credentialsCmd.AddCommand(&cobra.Command{
		Use:   "revoke <user-id>",
		Short: "Delete a user's credential and access tokens",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openCredentialStore()
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.DeleteCredential(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("revoke %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Revoked credentials for %s\n", args[0])
			return nil
		},
	})

	return credentialsCmd
}

func openCredentialStore() (*credstore.Store, error) {
	cfg, err := config.LoadConfig(credentialsConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	store, err := app.OpenCredentialStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("open credential store: %w", err)
	}
	return store, nil
}

func renderCredentials(out io.Writer, summaries []credstore.CredentialSummary) {
	if len(summaries) == 0 {
		fmt.Fprintln(out, text.FgHiBlack.Sprint("No stored credentials"))
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"User", "Updated", "Access tokens"})
	for _, s := range summaries {
		t.AppendRow(table.Row{s.UserID, s.UpdatedAt.UTC().Format(time.RFC3339), s.AccessCount})
	}
	t.Render()
}
