package cmd

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"emperror.dev/errors"
	"github.com/c2h5oh/datasize"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sevadaan/perfmon/internal/environ"
	"github.com/sevadaan/perfmon/pkg/monitorserver"
	"github.com/sevadaan/perfmon/pkg/reportexporter"
)

const reportFileName = "report.json"

var provider string

var exportFlags struct {
	reportURL    string
	chunkSize    datasize.ByteSize
	sizeLimit    datasize.ByteSize
	bufferSize   datasize.ByteSize
	reportPeriod time.Duration
}

var exportCmd = &cobra.Command{
	Use:   "export <dir> <bucket> <name>",
	Short: "Archives a directory of reports to external storage",
	Long: `Archives <dir> as <name>.tar.gz into <bucket>. With --report-url the current
report of a running monitor is saved into <dir> first.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		if configPath != "" {
			err := overlay(cmd.Flags(), map[string]string{
				"provider":    cfg.Export.Provider,
				"chunk-size":  cfg.Export.ChunkSize,
				"size-limit":  cfg.Export.SizeLimit,
				"buffer-size": cfg.Export.BufferSize,
			})
			if err != nil {
				return err
			}
		}

		dir, bucket, name := args[0], args[1], args[2]
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		if exportFlags.reportURL != "" {
			if err := saveReport(ctx, exportFlags.reportURL, dir); err != nil {
				return err
			}
		}

		exporter, err := reportexporter.FromProvider(ctx, reportexporter.Provider(provider))
		if err != nil {
			return err
		}

		start := time.Now()
		err = exporter.Upload(ctx, dir, bucket, name,
			reportexporter.WithChunkSize(exportFlags.chunkSize),
			reportexporter.WithSizeLimit(exportFlags.sizeLimit),
			reportexporter.WithBufferSize(exportFlags.bufferSize),
			reportexporter.WithReportPeriod(exportFlags.reportPeriod),
		)
		if err != nil {
			return err
		}
		log.WithField("time-elapsed", time.Since(start)).Info("export successful")
		return nil
	},
}

// saveReport writes the report of the monitor at url into dir.
func saveReport(ctx context.Context, url, dir string) error {
	report, err := monitorserver.NewClient(url).Report(ctx)
	if err != nil {
		return errors.WrapIf(err, "failed to fetch report")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	path := filepath.Join(dir, reportFileName)
	if err := os.WriteFile(path, report, 0644); err != nil {
		return err
	}
	log.WithFields(map[string]interface{}{
		"path": path,
		"size": datasize.ByteSize(len(report)).HR(),
	}).Info("saved report")
	return nil
}

func init() {
	flags := exportCmd.Flags()

	flags.StringVar(&exportFlags.reportURL, "report-url",
		environ.GetString("REPORT_URL", ""),
		"base URL of a running monitor whose report is saved before archiving",
	)
	byteSizeVar(flags, &exportFlags.chunkSize, "chunk-size",
		environ.GetByteSize("CHUNK_SIZE", datasize.MustParseString(reportexporter.DefaultChunkSize)),
		"chunk size of resumable uploads",
	)
	byteSizeVar(flags, &exportFlags.sizeLimit, "size-limit",
		environ.GetByteSize("SIZE_LIMIT", datasize.MustParseString(reportexporter.DefaultSizeLimit)),
		"largest directory that can be exported",
	)
	byteSizeVar(flags, &exportFlags.bufferSize, "buffer-size",
		environ.GetByteSize("EXPORT_BUFFER_SIZE", datasize.MustParseString(reportexporter.DefaultBufferSize)),
		"buffer size on upload",
	)
	durationVar(flags, &exportFlags.reportPeriod, "report-period",
		environ.GetDuration("REPORT_PERIOD", reportexporter.DefaultReportPeriod),
		"period for progress reporting",
	)

	bindEnv(flags, "buffer-size", "EXPORT_BUFFER_SIZE")

	for _, c := range []*cobra.Command{exportCmd, deleteCmd} {
		c.Flags().StringVar(&provider, "provider",
			environ.GetString("PROVIDER", string(reportexporter.Local)),
			"storage provider, one of gcs or local",
		)
	}

	rootCmd.AddCommand(exportCmd)
}
