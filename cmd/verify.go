package cmd

import (
	"errors"

	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Capture a face and compare it with the stored credential",
	Long: `Capture diverse face samples, average them and compare the result with the
stored credential. Confidence above 70% is a strong match, 50-70% a possible
match and below 50% a new face. Whether the stored credential is replaced
afterwards follows the overwrite policy (--policy).

Exits non-zero when no credential is enrolled or the capture does not finish.`,
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
	addCaptureFlags(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
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
	if existing == nil {
		return errors.New("no credential enrolled; run enroll first")
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
	return reportCapture(cmd, snap, runErr)
}
