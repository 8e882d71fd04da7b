package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a recording",
	Args:  cobra.ExactArgs(1),
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

		if _, ok := findRecording(svc, kind, args[0]); !ok {
			return fmt.Errorf("recording not found: %s", args[0])
		}
		svc.Delete(kind, args[0])
		fmt.Printf("Deleted %s\n", args[0])
		return nil
	},
}
