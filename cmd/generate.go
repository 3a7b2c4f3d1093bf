package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/nenorbot/protodeps/internal/service"
)

func init() {
	var retainWorkspace bool
	var parallelism int

	generate := &cobra.Command{
		Use:   "generate",
		Short: "Resolve repositories and compile the configured proto dependencies",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			worker := service.NewGenerateWorker(cfg, newLogger()).
				WithRetainWorkspace(retainWorkspace).
				WithParallelism(parallelism).
				WithProgressOutput(os.Stderr)

			return worker.Run(cmd.Context())
		},
	}

	generate.Flags().BoolVar(&retainWorkspace, "retain-workspace", false, "keep the temporary workspace after the run")
	generate.Flags().IntVar(&parallelism, "parallelism", 1, "maximum concurrent compiler invocations")

	RootCommand.AddCommand(generate)
}
