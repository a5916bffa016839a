package cmd

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sevadaan/perfmon/internal/environ"
	"github.com/sevadaan/perfmon/pkg/reportexporter"
)

var concurrentDeleteJobs int

var deleteCmd = &cobra.Command{
	Use:   "delete <bucket> <name>",
	Short: "Deletes exported archives from external storage",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if configPath != "" {
			if err := overlay(cmd.Flags(), map[string]string{"provider": cfg.Export.Provider}); err != nil {
				return err
			}
		}

		bucket, name := args[0], args[1]
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		exporter, err := reportexporter.FromProvider(ctx, reportexporter.Provider(provider))
		if err != nil {
			return err
		}

		start := time.Now()
		err = exporter.Delete(ctx, bucket, name,
			reportexporter.WithConcurrentDeleteJobs(concurrentDeleteJobs),
		)
		if err != nil {
			return err
		}
		log.WithField("time-elapsed", time.Since(start)).Info("delete successful")
		return nil
	},
}

func init() {
	deleteCmd.Flags().IntVar(&concurrentDeleteJobs, "concurrent-jobs",
		environ.GetInt("CONCURRENT_JOBS", reportexporter.DefaultConcurrentJobs),
		"Number of concurrent jobs",
	)

	rootCmd.AddCommand(deleteCmd)
}
