package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var prefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "Read or change preferences",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var darkModeCmd = &cobra.Command{
	Use:   "dark-mode [on|off]",
	Short: "Show or set the dark-mode preference",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}
		defer svc.Close()

		if len(args) == 0 {
			if svc.DarkMode() {
				fmt.Println("on")
			} else {
				fmt.Println("off")
			}
			return nil
		}

		switch args[0] {
		case "on":
			svc.SetDarkMode(true)
		case "off":
			svc.SetDarkMode(false)
		default:
			return fmt.Errorf("expected 'on' or 'off', got %q", args[0])
		}
		fmt.Printf("dark-mode set to %s\n", args[0])
		return nil
	},
}

func init() {
	prefsCmd.AddCommand(darkModeCmd)
}
