package cmd

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sevadaan/perfmon/internal/config"
	"github.com/sevadaan/perfmon/internal/environ"
)

var (
	logLevel   string
	configPath string

	// cfg holds the configuration file, or the defaults when none is given
	cfg = config.Default()
)

var rootCmd = &cobra.Command{
	Use:   "perfmon",
	Short: "Client performance telemetry service",
	Long: `perfmon records web performance entries into bounded per-metric buffers,
reports them to an analytics collector and checks them against budgets.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configPath != "" {
			loaded, err := config.Load(configPath)
			if err != nil {
				return err
			}
			cfg = loaded
			if err := overlay(cmd.Flags(), map[string]string{"log-level": cfg.LogLevel}); err != nil {
				return err
			}
		}

		logLvl, err := log.ParseLevel(logLevel)
		if err != nil {
			return fmt.Errorf("invalid log level: %w", err)
		}
		log.SetLevel(logLvl)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel,
		"log-level",
		environ.GetString("LOG_LEVEL", "info"),
		"Log level. One of trace, debug, info, warn, error, fatal, panic.",
	)
	rootCmd.PersistentFlags().StringVar(&configPath,
		"config",
		environ.GetString("CONFIG", ""),
		"Configuration file (.toml, .yaml or .yml). Flags and environment variables take precedence.",
	)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
