package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var renameCmd = &cobra.Command{
	Use:   "rename <id> <name>",
	Short: "Rename a recording",
	Args:  cobra.ExactArgs(2),
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

		if !svc.Rename(kind, args[0], args[1]) {
			return fmt.Errorf("nothing renamed: unknown id, empty name or unchanged name")
		}
		fmt.Printf("Renamed %s to %q\n", args[0], args[1])
		return nil
	},
}
