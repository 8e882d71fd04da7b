package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/audiolibrelab/memocapture/internal/config"
	"github.com/audiolibrelab/memocapture/internal/library"
	"github.com/audiolibrelab/memocapture/internal/service"

	"github.com/spf13/cobra"
)

var (
	cfg          *config.Config
	cfgFile      string
	kindFlag     string
	verboseLevel int
)

var rootCmd = &cobra.Command{
	Use:   "memocapture",
	Short: "Voice memo capture and playback tool",
	Long: `MemoCapture records voice memos from the microphone, keeps them in a
local library grouped by day, and plays them back with seeking.

Recordings can be paused and resumed; paused time never counts toward
the memo's duration.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Configure slog based on verbose level
		setupLogging(verboseLevel)

		// Use default config path if not specified
		if cfgFile == "" {
			defaultPath := os.ExpandEnv("$HOME/.config/memocapture.yaml")
			if _, err := os.Stat(defaultPath); err == nil {
				cfgFile = defaultPath
			}
		}

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/memocapture.yaml)")
	rootCmd.PersistentFlags().StringVarP(&kindFlag, "kind", "k", string(library.KindRaw), "recording kind: raw or aiImproved")
	rootCmd.PersistentFlags().IntVarP(&verboseLevel, "verbose", "v", 0, "verbose level: 0=info, 1=debug, 2=ffmpeg output")

	// Add subcommands
	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(renameCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(prefsCmd)
	rootCmd.AddCommand(configCmd)
}

// newService wires a service instance from the loaded configuration.
func newService() (service.Service, error) {
	svc, err := service.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize service: %w", err)
	}
	return svc, nil
}

// selectedKind resolves the --kind flag to a recording kind.
func selectedKind() (library.Kind, error) {
	for _, k := range library.Kinds {
		if string(k) == kindFlag {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown recording kind: %q (valid: raw, aiImproved)", kindFlag)
}

// setupLogging configures slog based on the verbose level
func setupLogging(level int) {
	var slogLevel slog.Level
	switch level {
	case 0:
		slogLevel = slog.LevelInfo
	case 1, 2:
		// Level 2 additionally surfaces ffmpeg output, which is logged at
		// debug level by the capture device.
		slogLevel = slog.LevelDebug
	default:
		slogLevel = slog.LevelInfo
	}

	// Configure text handler for clean terminal output
	opts := &slog.HandlerOptions{
		Level: slogLevel,
	}
	handler := slog.NewTextHandler(os.Stderr, opts)
	logger := slog.New(handler)
	slog.SetDefault(logger)
}
