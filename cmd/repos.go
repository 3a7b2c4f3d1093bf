package cmd

import (
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/nenorbot/protodeps/internal/config"
)

func init() {
	repos := &cobra.Command{
		Use:   "repos",
		Short: "List the configured repositories",
		RunE: func(*cobra.Command, []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.Header("Name", "Kind", "Location", "Revision", "Proto Paths")

			for _, repo := range cfg.SortedRepos() {
				location, revision := locate(repo)
				if err := table.Append([]string{repo.Name, repo.Kind(), location, revision, strings.Join(repo.ProtoPaths, ", ")}); err != nil {
					return err
				}
			}

			return table.Render()
		},
	}

	RootCommand.AddCommand(repos)
}

func locate(repo *config.Repo) (string, string) {
	if repo.Git != nil {
		rev, _, ok := repo.Git.Revision()
		if !ok {
			rev = "<missing>"
		}
		return repo.Git.Repo, rev
	}
	return repo.Filesystem.Path, "-"
}
