// Package monitorserver exposes a perfmon Monitor over HTTP: entry ingest,
// tracking calls, summaries, budget checks and a Prometheus endpoint.
package monitorserver

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"emperror.dev/errors"
	"github.com/gorilla/mux"
	"github.com/shirou/gopsutil/process"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/sevadaan/perfmon/pkg/perfmon"
	"github.com/sevadaan/perfmon/pkg/procstats"
)

// processHistory is the number of process samples kept for averages.
const processHistory = 360

type Server struct {
	server     *http.Server
	router     *mux.Router
	cfg        *Options
	monitor    *perfmon.Monitor
	dispatcher *perfmon.Dispatcher
	env        *perfmon.HostEnvironment
	limiter    *rate.Limiter

	stats   *procstats.Collector
	process *process.Process
	cancel  context.CancelFunc

	ingested atomic.Int64
	rejected atomic.Int64
	routes   sync.Once
}

// New creates a server around monitor. Entry batches are dispatched through
// dispatcher and their page context is written to env, which may be nil.
func New(monitor *perfmon.Monitor, dispatcher *perfmon.Dispatcher, env *perfmon.HostEnvironment, opts ...Option) (*Server, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	limit := rate.Inf
	if options.IngestRate > 0 {
		limit = rate.Limit(options.IngestRate)
	}

	s := &Server{
		cfg:        options,
		router:     mux.NewRouter(),
		monitor:    monitor,
		dispatcher: dispatcher,
		env:        env,
		limiter:    rate.NewLimiter(limit, options.IngestBurst),
	}

	if options.ProcessInterval > 0 {
		proc, err := procstats.Self()
		if err != nil {
			return nil, errors.WrapIf(err, "failed to open own process")
		}
		s.process = proc
		s.stats = procstats.NewCollector(processHistory, monitor.Clock())
	}
	return s, nil
}

// Handler returns the router with every route registered.
func (s *Server) Handler() http.Handler {
	s.routes.Do(s.registerRoutes)
	return s.router
}

// Start serves until Stop is called.
func (s *Server) Start() error {
	handler := s.Handler()

	if s.stats != nil {
		ctx, cancel := context.WithCancel(context.Background())
		s.cancel = cancel
		go procstats.Run(ctx, s.process, s.stats, s.cfg.ProcessInterval)
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Infof("server started listening on %s:%d ...", s.cfg.Host, s.cfg.Port)
	err := s.server.ListenAndServe()
	if err == nil || errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop shuts the server down and waits for in-flight analytics sends.
func (s *Server) Stop() error {
	log.Info("stopping server")
	if s.server == nil {
		return fmt.Errorf("server was not started")
	}
	if s.cancel != nil {
		s.cancel()
	}

	log.Debug("shutting down http server")
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	err := s.server.Shutdown(ctx)

	log.Debug("flushing analytics")
	s.monitor.Flush()
	return err
}
