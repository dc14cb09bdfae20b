package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newVersionCmd prints detailed version information.
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("cachet %s\n", displayVersion())
			if appDate != "" && appDate != "unknown" {
				fmt.Printf("built %s\n", appDate)
			}
		},
	}
}

// displayVersion returns a formatted version string, e.g. "v0.1.0 (abc1234)".
func displayVersion() string {
	v := "v" + appVersion
	if appCommit != "" && appCommit != "none" {
		v += " (" + appCommit + ")"
	}
	return v
}
