package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/kozaktomas/face-enroll/internal/credential"
	"github.com/kozaktomas/face-enroll/internal/matcher"
	"github.com/kozaktomas/face-enroll/internal/session"
	"github.com/spf13/cobra"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll",
	Short: "Capture a face and store it as the credential",
	Long: `Capture diverse face samples, average them and store the result as the
face credential. Refuses to replace an existing credential unless --force
is given.

Examples:
  # Enroll from a webcam (Linux)
  face-enroll enroll --input /dev/video0 --input-format v4l2

  # Enroll from a directory of still images
  face-enroll enroll --dir ./frames

  # Replace the stored credential
  face-enroll enroll --input /dev/video0 --input-format v4l2 --force`,
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)
	addCaptureFlags(enrollCmd)
	enrollCmd.Flags().Bool("force", false, "Replace an existing credential")
}

func runEnroll(cmd *cobra.Command, args []string) error {
	ctx, cancel := captureContext(cmd)
	defer cancel()

	cfg, sc, err := captureConfig(cmd)
	if err != nil {
		return err
	}

	store, kv, err := openCredentialStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer kv.Close()

	existing, err := store.Load(ctx)
	if err != nil {
		return err
	}
	replacing := existing != nil
	if replacing {
		if !mustGetBool(cmd, "force") {
			return errors.New("a credential is already enrolled; run verify, or enroll --force to replace it")
		}
		// The old credential stays until the new capture completes.
		sc.Policy = matcher.PolicyAlways
	}

	source, err := openFrameSource(ctx, cmd)
	if err != nil {
		return err
	}
	defer source.Close()

	s, err := newCLISession(cfg, sc, store)
	if err != nil {
		return err
	}

	snap, runErr := runCaptureCycle(ctx, cmd, cfg, sc, s, source)
	if runErr == nil && replacing {
		if err := finishReplace(ctx, store, snap); err != nil {
			return err
		}
	}
	return reportCapture(cmd, snap, runErr)
}

// finishReplace clears the registration flag when the replacement capture
// did not match the credential it replaced.
func finishReplace(ctx context.Context, store *credential.Store, snap session.Snapshot) error {
	if snap.Status != session.StatusCompleted || snap.Result == nil || snap.Result.Decision.Match {
		return nil
	}
	if err := store.SetRegistered(ctx, false); err != nil {
		return fmt.Errorf("failed to clear registration flag: %w", err)
	}
	return nil
}
