package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	ext_config "github.com/nenorbot/protodeps/config"
)

func init() {
	schema := &cobra.Command{
		Use:   "schema",
		Short: "Print the configuration file JSON schema",
		RunE: func(*cobra.Command, []string) error {
			fmt.Println(string(ext_config.Schema()))
			return nil
		},
	}

	RootCommand.AddCommand(schema)
}
