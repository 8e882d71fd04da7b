package cmd

import (
	"fmt"

	"github.com/audiolibrelab/memocapture/internal/library"
	"github.com/audiolibrelab/memocapture/internal/service"

	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export <id>",
	Short: "Copy a recording to the export directory",
	Long: `Copy a recording's audio file into the configured export directory,
named after the recording.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := selectedKind()
		if err != nil {
			return err
		}

		svc, err := newService()
		if err != nil {
			return err
		}
		defer svc.Close()

		rec, ok := findRecording(svc, kind, args[0])
		if !ok {
			return fmt.Errorf("recording not found: %s", args[0])
		}
		if err := svc.Export(kind, args[0]); err != nil {
			return fmt.Errorf("failed to export recording: %w", err)
		}
		fmt.Printf("Exported %q to %s\n", rec.Name, cfg.Output.ExportDirectory)
		return nil
	},
}

// findRecording looks a recording up by id in the kind's sequence.
func findRecording(svc service.Service, kind library.Kind, id string) (library.Recording, bool) {
	for _, rec := range svc.Recordings(kind) {
		if rec.ID == id {
			return rec, true
		}
	}
	return library.Recording{}, false
}
