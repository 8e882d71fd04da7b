package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/audiolibrelab/memocapture/internal/capture"
	"github.com/audiolibrelab/memocapture/internal/service"

	"github.com/spf13/cobra"
)

var recordDuration time.Duration

var recordCmd = &cobra.Command{
	Use:   "record [name]",
	Short: "Record a new voice memo",
	Long: `Record a voice memo from the configured microphone source.

Recording runs until Ctrl+C or until --duration elapses. Send SIGUSR1 to
toggle pause; paused time does not count toward the memo's duration.
When a name is given the memo is renamed after capture; otherwise it
keeps its default "Recording N" name.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}
		defer svc.Close()

		if err := svc.StartCapture(cmd.Context()); err != nil {
			return fmt.Errorf("failed to start recording: %w", err)
		}

		slog.Info("Recording... Ctrl+C to stop, SIGUSR1 to pause/resume")

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGUSR1)
		defer signal.Stop(sigChan)

		var deadline <-chan time.Time
		if recordDuration > 0 {
			deadline = time.After(recordDuration)
		}

		display := time.NewTicker(capture.DefaultTickInterval)
		defer display.Stop()

	loop:
		for {
			select {
			case <-display.C:
				fmt.Fprintf(os.Stderr, "\r%s ", capture.FormatElapsed(svc.CaptureElapsed()))
			case sig := <-sigChan:
				if sig == syscall.SIGUSR1 {
					togglePause(svc)
					continue
				}
				break loop
			case <-deadline:
				break loop
			}
		}
		fmt.Fprintln(os.Stderr)

		rec, err := svc.StopCapture(cmd.Context())
		if err != nil {
			svc.ResetCapture()
			return fmt.Errorf("failed to stop recording: %w", err)
		}

		if len(args) == 1 {
			kind, kerr := selectedKind()
			if kerr != nil {
				return kerr
			}
			if svc.Rename(kind, rec.ID, args[0]) {
				rec.Name = args[0]
			}
		}

		fmt.Printf("Saved %q (%s) id=%s\n", rec.Name, rec.DurationLabel, rec.ID)
		return nil
	},
}

func togglePause(svc service.Service) {
	switch svc.CaptureState() {
	case capture.StateRecording:
		if err := svc.PauseCapture(); err == nil {
			slog.Info("Recording paused")
		}
	case capture.StatePaused:
		if err := svc.ResumeCapture(); err == nil {
			slog.Info("Recording resumed")
		}
	}
}

func init() {
	recordCmd.Flags().DurationVarP(&recordDuration, "duration", "d", 0, "stop automatically after this duration (e.g. 30s)")
}
