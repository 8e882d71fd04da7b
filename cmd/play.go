package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/audiolibrelab/memocapture/internal/playback"

	"github.com/spf13/cobra"
)

var seekFraction float64

var playCmd = &cobra.Command{
	Use:   "play <id>",
	Short: "Play a recording",
	Long: `Play a recording through the system media player.

--seek positions playback at a fraction of the duration (0.5 is the
middle). Seeks requested before the player is ready are applied as soon
as it becomes ready.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if seekFraction < 0 || seekFraction > 1 {
			return fmt.Errorf("--seek must be between 0 and 1, got %v", seekFraction)
		}

		kind, err := selectedKind()
		if err != nil {
			return err
		}

		svc, err := newService()
		if err != nil {
			return err
		}
		defer svc.Close()

		if err := svc.Play(kind, args[0]); err != nil {
			return fmt.Errorf("failed to play recording: %w", err)
		}
		if seekFraction > 0 {
			svc.SeekFraction(seekFraction)
		}

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		// Poll until the session ends or Ctrl+C tears it down.
		ticker := time.NewTicker(playback.DefaultProgressInterval)
		defer ticker.Stop()

		for {
			select {
			case <-sigChan:
				svc.StopPlayback()
				fmt.Fprintln(os.Stderr)
				return nil
			case <-ticker.C:
				p := svc.PlaybackProgress()
				if p.Unavailable {
					fmt.Fprintln(os.Stderr)
					return fmt.Errorf("recording is unavailable: %s", svc.GetLastError())
				}
				if !p.Playing {
					fmt.Fprintln(os.Stderr)
					return nil
				}
				fmt.Fprintf(os.Stderr, "\r%5.1f%%  %6.1fs / %.1fs ", p.Percent, p.Position, p.Duration)
			}
		}
	},
}

func init() {
	playCmd.Flags().Float64VarP(&seekFraction, "seek", "s", 0, "start position as a fraction of duration (0 to 1)")
}
