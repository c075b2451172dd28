package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/google/uuid"
	"github.com/kozaktomas/face-enroll/internal/config"
	"github.com/kozaktomas/face-enroll/internal/credential"
	"github.com/kozaktomas/face-enroll/internal/matcher"
	"github.com/kozaktomas/face-enroll/internal/oracle"
	"github.com/kozaktomas/face-enroll/internal/session"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

// addCaptureFlags registers the flags shared by enroll and verify.
func addCaptureFlags(c *cobra.Command) {
	c.Flags().String("dir", "", "Directory of frame images, read in name order")
	c.Flags().String("input", "", "ffmpeg input to read frames from (e.g. /dev/video0 or a video file)")
	c.Flags().String("input-format", "", "ffmpeg input format for --input (e.g. v4l2, avfoundation)")
	c.Flags().Float64("threshold", 0, "Match distance threshold (0 = FACE_MATCH_THRESHOLD)")
	c.Flags().String("policy", "", "Overwrite policy: always, on-match, enroll-only (default from FACE_OVERWRITE_POLICY)")
	c.Flags().Duration("timeout", 0, "Give up after this long (0 = no limit)")
	c.Flags().Bool("json", false, "Output the final session snapshot as JSON")
}

// captureConfig loads the config and applies command-line overrides.
func captureConfig(cmd *cobra.Command) (*config.Config, session.Config, error) {
	cfg := config.Load()
	if t := mustGetFloat64(cmd, "threshold"); t > 0 {
		cfg.Matching.Threshold = t
	}
	if p := mustGetString(cmd, "policy"); p != "" {
		cfg.Matching.OverwritePolicy = p
	}
	sc, err := session.ConfigFrom(cfg)
	if err != nil {
		return nil, session.Config{}, err
	}
	return cfg, sc, nil
}

// openFrameSource opens exactly one of --dir or --input.
func openFrameSource(ctx context.Context, cmd *cobra.Command) (oracle.FrameSource, error) {
	dir := mustGetString(cmd, "dir")
	input := mustGetString(cmd, "input")

	switch {
	case dir != "" && input != "":
		return nil, errors.New("use either --dir or --input, not both")
	case dir != "":
		src, err := oracle.NewDirSource(dir)
		if err != nil {
			return nil, err
		}
		if src.Len() == 0 {
			return nil, fmt.Errorf("no images found in %s", dir)
		}
		return src, nil
	case input != "":
		var opts []string
		if format := mustGetString(cmd, "input-format"); format != "" {
			opts = append(opts, "-f", format)
		}
		src, err := oracle.NewFFmpegSource(ctx, input, opts...)
		if err != nil {
			return nil, err
		}
		return src, nil
	default:
		return nil, errors.New("a frame source is required: --dir or --input")
	}
}

// captureContext returns a context cancelled on Ctrl+C, SIGTERM or the --timeout.
func captureContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	timeout, err := cmd.Flags().GetDuration("timeout")
	if err != nil || timeout <= 0 {
		return ctx, stop
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

// runCaptureCycle drives one capture cycle from source and renders progress.
func runCaptureCycle(ctx context.Context, cmd *cobra.Command, cfg *config.Config, sc session.Config, s *session.Session, source oracle.FrameSource) (session.Snapshot, error) {
	jsonOutput := mustGetBool(cmd, "json")

	var wg sync.WaitGroup
	if !jsonOutput {
		bar := newCaptureBar(sc.Capture.SampleCount)
		events := s.AddListener()
		wg.Add(1)
		go func() {
			defer wg.Done()
			followEvents(events, bar)
		}()
	}

	fmt.Fprintf(os.Stderr, "Polling %s every %s...\n", oracleName(cfg), sc.TickInterval)
	snap, err := s.Run(ctx, source)

	s.Close()
	wg.Wait()
	return snap, err
}

func oracleName(cfg *config.Config) string {
	if cfg.Oracle.URL == "" {
		return "embedding server"
	}
	return cfg.Oracle.URL
}

func newCaptureBar(samples int) *progressbar.ProgressBar {
	return progressbar.NewOptions(100,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(fmt.Sprintf("Capturing %d samples", samples)),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionFullWidth(),
		progressbar.OptionClearOnFinish(),
	)
}

// followEvents renders session events until the session closes its listeners.
func followEvents(events <-chan session.Event, bar *progressbar.ProgressBar) {
	for event := range events {
		switch event.Type {
		case session.EventGuidance:
			bar.Describe(event.Message)
		case session.EventProgress, session.EventResult:
			if snap, ok := event.Data.(session.Snapshot); ok {
				_ = bar.Set(snap.Progress)
			}
		case session.EventStalled, session.EventFatal, session.EventAborted:
			_ = bar.Clear()
		}
	}
	_ = bar.Finish()
}

// newCLISession creates a session polling the configured embedding server.
func newCLISession(cfg *config.Config, sc session.Config, store *credential.Store) (*session.Session, error) {
	detector := oracle.NewHTTPDetector(cfg.Oracle.URL, cfg.Oracle.Timeout, oracle.WithMaxFrameSide(cfg.Oracle.MaxFrameSide))
	return session.New(uuid.NewString(), detector, store, sc)
}

// reportCapture prints the outcome of a finished cycle.
func reportCapture(cmd *cobra.Command, snap session.Snapshot, runErr error) error {
	if mustGetBool(cmd, "json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(snap); err != nil {
			return err
		}
		return runErr
	}

	switch {
	case errors.Is(runErr, session.ErrStalled):
		fmt.Printf("Capture stalled after %d frames: %s\n", snap.Attempts, snap.Guidance.Message)
		return runErr
	case errors.Is(runErr, session.ErrSourceExhausted):
		fmt.Printf("Ran out of frames before %d diverse samples were collected\n", snap.Target)
		return runErr
	case runErr != nil:
		return fmt.Errorf("capture failed: %w", runErr)
	case snap.Result == nil:
		return errors.New("capture finished without a result")
	}

	printOutcome(snap.Result)
	return nil
}

func printOutcome(o *matcher.Outcome) {
	d := o.Decision
	switch d.Kind {
	case matcher.KindEnrollment:
		fmt.Println("Enrolled: face credential stored")
	case matcher.KindMatch:
		fmt.Printf("Match: %d%% confidence (%s, distance %.3f)\n", d.Confidence, d.Band, d.Distance)
	case matcher.KindNoMatch:
		if d.HasConfidence {
			fmt.Printf("No match: %d%% confidence (%s, distance %.3f)\n", d.Confidence, d.Band, d.Distance)
		} else {
			fmt.Println("No match: stored credential is incompatible")
		}
	}
	if o.Persisted && d.Kind != matcher.KindEnrollment {
		fmt.Println("Stored credential replaced with this capture")
	}
}
