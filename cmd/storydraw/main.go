package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JustinTDCT/StoryDraw/internal/config"
	"github.com/JustinTDCT/StoryDraw/internal/logging"
	"github.com/JustinTDCT/StoryDraw/internal/version"
)

var (
	logLevel    string
	versionFile string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:           "storydraw",
	Short:         "Article-read lottery service",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	RunE: func(cmd *cobra.Command, _ []string) error {
		info, _ := version.Load(versionFile)
		fmt.Fprintln(cmd.OutOrStdout(), info.Version)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (overrides LOG_LEVEL)")
	rootCmd.PersistentFlags().StringVar(&versionFile, "version-file", "version.json", "path to version.json")
	rootCmd.AddCommand(serveCmd, workerCmd, migrateCmd, hashPasswordCmd, versionCmd)
}

// setup loads config and builds the logger shared by every command.
func setup() (*config.Config, *zap.Logger, error) {
	cfg := config.Load()
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
