package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is overridden at build time via -ldflags.
var Version = "dev"

func init() {
	version := &cobra.Command{
		Use:   "version",
		Short: "Print the protodeps version",
		Run: func(*cobra.Command, []string) {
			fmt.Println(Version)
		},
	}

	RootCommand.AddCommand(version)
}
