package cmd

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"emperror.dev/errors"
	"github.com/c2h5oh/datasize"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sevadaan/perfmon/internal/environ"
	"github.com/sevadaan/perfmon/pkg/analytics"
)

var collectFlags struct {
	host        string
	port        int
	historySize int
	maxBodySize datasize.ByteSize
	output      string
}

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Runs the analytics collector receiving performance reports",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if configPath != "" {
			err := overlay(cmd.Flags(), map[string]string{
				"host":          cfg.Collector.Host,
				"port":          strconv.Itoa(cfg.Collector.Port),
				"history-size":  strconv.Itoa(cfg.Collector.HistorySize),
				"max-body-size": cfg.Collector.MaxBodySize,
				"output":        cfg.Collector.Output,
			})
			if err != nil {
				return err
			}
		}
		return collect()
	},
}

func collect() error {
	f := collectFlags
	opts := []analytics.Option{
		analytics.WithHistorySize(f.historySize),
		analytics.WithMaxBodySize(f.maxBodySize),
	}

	if f.output != "" {
		var out io.WriteCloser
		if f.output == "-" {
			out = os.Stdout
		} else {
			file, err := os.OpenFile(f.output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
			if err != nil {
				return errors.WrapIfWithDetails(err, "failed to open output", "path", f.output)
			}
			defer file.Close()
			out = file
		}
		opts = append(opts, analytics.WithOutput(out))
	}

	sink := analytics.NewSink(opts...)
	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", f.host, f.port),
		Handler:           sink.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Infof("received signal: %v", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Errorf("failed to stop collector: %v", err)
		}
	}()

	log.Infof("collector listening on %s:%d ...", f.host, f.port)
	err := server.ListenAndServe()
	log.WithField("reports", sink.Total()).Info("collector stopped")
	if err == nil || errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func init() {
	flags := collectCmd.Flags()

	flags.StringVar(&collectFlags.host, "host",
		environ.GetString("COLLECTOR_HOST", "0.0.0.0"),
		"the host at which the collector will be listening to",
	)
	flags.IntVar(&collectFlags.port, "port",
		environ.GetInt("COLLECTOR_PORT", 8001),
		"the port at which the collector will be listening to",
	)
	flags.IntVar(&collectFlags.historySize, "history-size",
		environ.GetInt("HISTORY_SIZE", analytics.DefaultHistorySize),
		"reports kept in memory per metric",
	)
	byteSizeVar(flags, &collectFlags.maxBodySize, "max-body-size",
		environ.GetByteSize("COLLECTOR_MAX_BODY_SIZE", analytics.DefaultMaxBodySize),
		"largest accepted report",
	)
	flags.StringVar(&collectFlags.output, "output",
		environ.GetString("OUTPUT", ""),
		"file to append reports to as JSON lines, - for stdout",
	)

	bindEnv(flags, "host", "COLLECTOR_HOST")
	bindEnv(flags, "port", "COLLECTOR_PORT")
	bindEnv(flags, "max-body-size", "COLLECTOR_MAX_BODY_SIZE")

	rootCmd.AddCommand(collectCmd)
}
