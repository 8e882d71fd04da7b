package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List recordings grouped by day",
	Args:  cobra.NoArgs,
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

		groups := svc.RecordingsByDate(kind)
		if len(groups) == 0 {
			fmt.Println("No recordings.")
			return nil
		}

		for _, group := range groups {
			fmt.Println(group.Label)
			for _, rec := range group.Recordings {
				fmt.Printf("  %-36s  %-7s  %s\n", rec.ID, rec.DurationLabel, rec.Name)
			}
		}
		return nil
	},
}
