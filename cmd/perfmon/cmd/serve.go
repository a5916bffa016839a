package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/c2h5oh/datasize"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sevadaan/perfmon/internal/environ"
	"github.com/sevadaan/perfmon/pkg/analytics"
	"github.com/sevadaan/perfmon/pkg/entrystream"
	"github.com/sevadaan/perfmon/pkg/monitorserver"
	"github.com/sevadaan/perfmon/pkg/perfmon"
	"github.com/sevadaan/perfmon/pkg/sessionstore"
)

var serveFlags struct {
	host            string
	port            int
	maxBodySize     datasize.ByteSize
	ingestRate      float64
	ingestBurst     int
	processInterval time.Duration

	bufferSize     int
	throttleWindow time.Duration
	sendTimeout    time.Duration
	sessionTimeout time.Duration
	analyticsURL   string
	entryStream    string
	createFifo     bool
	budgets        map[string]string
	pageURL        string
	userAgent      string
	recordLogs     bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Runs the performance monitor HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if configPath != "" {
			if err := overlay(cmd.Flags(), serveConfigValues()); err != nil {
				return err
			}
		}
		return serve()
	},
}

func serveConfigValues() map[string]string {
	values := map[string]string{
		"host":             cfg.Server.Host,
		"port":             strconv.Itoa(cfg.Server.Port),
		"max-body-size":    cfg.Server.MaxBodySize,
		"ingest-rate":      strconv.FormatFloat(cfg.Server.IngestRate, 'f', -1, 64),
		"ingest-burst":     strconv.Itoa(cfg.Server.IngestBurst),
		"process-interval": cfg.Server.ProcessInterval,
		"buffer-size":      strconv.Itoa(cfg.Monitor.BufferSize),
		"throttle-window":  cfg.Monitor.ThrottleWindow,
		"send-timeout":     cfg.Monitor.SendTimeout,
		"session-timeout":  cfg.Monitor.SessionTimeout,
		"analytics-url":    cfg.Monitor.AnalyticsURL,
		"entry-stream":     cfg.Monitor.EntryStream,
	}
	if cfg.Monitor.CreateFifo {
		values["create-fifo"] = "true"
	}
	return values
}

// parseBudgets merges command line budgets over the configuration file ones.
func parseBudgets(fromFile map[string]float64, raw map[string]string) (perfmon.Budgets, error) {
	budgets := perfmon.Budgets{}
	for name, v := range fromFile {
		budgets[perfmon.MetricName(name)] = v
	}
	for name, v := range raw {
		threshold, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid budget for %s: %w", name, err)
		}
		budgets[perfmon.MetricName(name)] = threshold
	}
	return budgets, nil
}

func serve() error {
	f := serveFlags

	budgets, err := parseBudgets(cfg.Monitor.Budgets, f.budgets)
	if err != nil {
		return err
	}

	store := sessionstore.NewMemoryStore(f.sessionTimeout)
	env := perfmon.NewHostEnvironment(f.pageURL, f.userAgent)
	dispatcher := perfmon.NewDispatcher()

	opts := []perfmon.Option{
		perfmon.WithBufferSize(f.bufferSize),
		perfmon.WithThrottleWindow(f.throttleWindow),
		perfmon.WithSendTimeout(f.sendTimeout),
		perfmon.WithBudgets(budgets),
		perfmon.WithStore(store),
		perfmon.WithEnvironment(env),
	}
	if f.analyticsURL != "" {
		opts = append(opts, perfmon.WithSender(analytics.NewClient(f.analyticsURL)))
	}
	monitor := perfmon.New(dispatcher, opts...)
	if f.recordLogs {
		log.AddHook(perfmon.NewLogHook(monitor))
	}

	server, err := monitorserver.New(monitor, dispatcher, env,
		monitorserver.WithHost(f.host),
		monitorserver.WithPort(f.port),
		monitorserver.WithMaxBodySize(f.maxBodySize),
		monitorserver.WithIngestLimit(f.ingestRate, f.ingestBurst),
		monitorserver.WithProcessInterval(f.processInterval),
	)
	if err != nil {
		return err
	}

	if f.entryStream != "" {
		stream, err := entrystream.Open(f.entryStream, f.createFifo)
		if err != nil {
			return err
		}
		go stream.Start()
		go func() {
			n := stream.Feed(dispatcher, env)
			log.WithField("batches", n).Info("entry stream closed")
		}()
		defer func() {
			if err := stream.Stop(); err != nil {
				log.Errorf("failed to stop entry stream: %v", err)
			}
		}()
		log.WithField("path", f.entryStream).Info("following entry stream")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Infof("received signal: %v", sig)
		if err := server.Stop(); err != nil {
			log.Errorf("failed to stop server: %v", err)
		}
	}()

	return server.Start()
}

func init() {
	flags := serveCmd.Flags()

	flags.StringVar(&serveFlags.host, "host",
		environ.GetString("HOST", monitorserver.DefaultHost),
		"the host at which this server will be listening to",
	)
	flags.IntVar(&serveFlags.port, "port",
		environ.GetInt("PORT", monitorserver.DefaultPort),
		"the port at which this server will be listening to",
	)
	byteSizeVar(flags, &serveFlags.maxBodySize, "max-body-size",
		environ.GetByteSize("MAX_BODY_SIZE", datasize.MB),
		"largest accepted request body",
	)
	flags.Float64Var(&serveFlags.ingestRate, "ingest-rate",
		environ.GetFloat("INGEST_RATE", 50),
		"entry batches accepted per second, 0 for no limit",
	)
	flags.IntVar(&serveFlags.ingestBurst, "ingest-burst",
		environ.GetInt("INGEST_BURST", 100),
		"entry batches accepted in a burst",
	)
	durationVar(flags, &serveFlags.processInterval, "process-interval",
		environ.GetDuration("PROCESS_INTERVAL", 0),
		"interval between self process samples, 0 disables sampling",
	)

	flags.IntVar(&serveFlags.bufferSize, "buffer-size",
		environ.GetInt("BUFFER_SIZE", perfmon.DefaultBufferSize),
		"samples retained per metric",
	)
	durationVar(flags, &serveFlags.throttleWindow, "throttle-window",
		environ.GetDuration("THROTTLE_WINDOW", perfmon.DefaultThrottleWindow),
		"minimum time between two analytics reports of the same metric",
	)
	durationVar(flags, &serveFlags.sendTimeout, "send-timeout",
		environ.GetDuration("SEND_TIMEOUT", perfmon.DefaultSendTimeout),
		"timeout of one analytics report",
	)
	durationVar(flags, &serveFlags.sessionTimeout, "session-timeout",
		environ.GetDuration("SESSION_TIMEOUT", sessionstore.DefaultIdleTimeout),
		"idle time after which the session and its throttle state are dropped, 0 keeps them forever",
	)
	flags.StringVar(&serveFlags.analyticsURL, "analytics-url",
		environ.GetString("ANALYTICS_URL", ""),
		"base URL of the analytics collector, reporting is disabled when empty",
	)
	flags.StringVar(&serveFlags.entryStream, "entry-stream",
		environ.GetString("ENTRY_STREAM", ""),
		"file or fifo to follow for entry batches",
	)
	flags.BoolVar(&serveFlags.createFifo, "create-fifo",
		environ.GetBool("CREATE_FIFO", false),
		"create the entry stream as a fifo",
	)
	flags.StringToStringVar(&serveFlags.budgets, "budget", nil,
		"budget override as METRIC=THRESHOLD, may be repeated",
	)
	flags.StringVar(&serveFlags.pageURL, "page-url",
		environ.GetString("PAGE_URL", ""),
		"page URL stamped on samples until an entry batch reports one",
	)
	flags.StringVar(&serveFlags.userAgent, "user-agent",
		environ.GetString("USER_AGENT", ""),
		"user agent stamped on samples until an entry batch reports one",
	)
	flags.BoolVar(&serveFlags.recordLogs, "record-log-errors",
		environ.GetBool("RECORD_LOG_ERRORS", true),
		"record error level log entries of this process as Error samples",
	)

	rootCmd.AddCommand(serveCmd)
}
