// Package cmd implements the protodeps command line interface.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/thediveo/enumflag/v2"

	"github.com/nenorbot/protodeps/internal/config"
	"github.com/nenorbot/protodeps/internal/logging"
)

var (
	configFile string
	logLevel   = logging.LevelInfo
	logFormat  = logging.FormatPretty
)

var logLevelIDs = map[logging.Level][]string{
	logging.LevelDebug: {"debug"},
	logging.LevelInfo:  {"info"},
	logging.LevelWarn:  {"warn", "warning"},
	logging.LevelError: {"error"},
}

var RootCommand = &cobra.Command{
	Use:           "protodeps",
	Short:         "Resolve and compile protobuf schemas across repositories",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	flags := RootCommand.PersistentFlags()
	flags.StringVarP(&configFile, "config", "c", "protodeps.yaml", "path to the configuration file")
	flags.Var(enumflag.New(&logLevel, "level", logLevelIDs, enumflag.EnumCaseInsensitive),
		"log-level", "log level (debug, info, warn, error)")
	flags.StringVar(&logFormat, "log-format", logging.FormatPretty, "log format (pretty, json)")
}

func newLogger() *logging.Logger {
	return logging.NewLogger(logging.Config{Level: logLevel, Format: logFormat})
}

func loadConfig() (*config.Root, error) {
	bs, err := os.ReadFile(configFile)
	if err != nil {
		return nil, err
	}

	root, err := config.Parse(bs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", configFile, err)
	}
	return root, nil
}
