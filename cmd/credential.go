package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kozaktomas/face-enroll/internal/config"
	"github.com/spf13/cobra"
)

var credentialCmd = &cobra.Command{
	Use:   "credential",
	Short: "Inspect or remove the stored face credential",
}

var credentialShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the stored credential",
	RunE:  runCredentialShow,
}

var credentialResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete the stored credential and the registered flag",
	RunE:  runCredentialReset,
}

func init() {
	rootCmd.AddCommand(credentialCmd)
	credentialCmd.AddCommand(credentialShowCmd)
	credentialCmd.AddCommand(credentialResetCmd)

	credentialShowCmd.Flags().Bool("json", false, "Output as JSON, including the embedding")
	credentialResetCmd.Flags().Bool("yes", false, "Confirm deletion")
}

func runCredentialShow(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	cfg := config.Load()

	store, kv, err := openCredentialStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer kv.Close()

	cred, err := store.Load(ctx)
	if err != nil {
		return err
	}
	registered, err := store.Registered(ctx)
	if err != nil {
		return err
	}

	if mustGetBool(cmd, "json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"already_registered": registered,
			"credential":         cred,
		})
	}

	fmt.Printf("Backend:     %s\n", cfg.Database.Backend)
	fmt.Printf("Registered:  %t\n", registered)
	if cred == nil {
		fmt.Println("Credential:  none")
		return nil
	}
	fmt.Printf("Credential:  %d dimensions, format v%d\n", len(cred.Embedding), cred.Version)
	if !cred.CreatedAt.IsZero() {
		fmt.Printf("Created:     %s\n", cred.CreatedAt.Local().Format(time.RFC3339))
	}
	return nil
}

func runCredentialReset(cmd *cobra.Command, args []string) error {
	if !mustGetBool(cmd, "yes") {
		return errors.New("refusing to delete the credential without --yes")
	}

	ctx := context.Background()
	cfg := config.Load()

	store, kv, err := openCredentialStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer kv.Close()

	if err := store.Reset(ctx); err != nil {
		return fmt.Errorf("failed to reset credential: %w", err)
	}
	fmt.Println("Credential removed")
	return nil
}
