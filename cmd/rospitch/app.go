package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gamma-programme/rospitch/binding"
	"github.com/gamma-programme/rospitch/bridge"
	"github.com/gamma-programme/rospitch/config"
	"github.com/gamma-programme/rospitch/federation"
	"github.com/gamma-programme/rospitch/federation/natsrti"
	"github.com/gamma-programme/rospitch/health"
	"github.com/gamma-programme/rospitch/ingest"
	"github.com/gamma-programme/rospitch/ingest/natssource"
	"github.com/gamma-programme/rospitch/ingest/rosbridge"
	"github.com/gamma-programme/rospitch/metric"
	"github.com/gamma-programme/rospitch/natsclient"
	"github.com/gamma-programme/rospitch/pkg/tlsutil"
	"github.com/gamma-programme/rospitch/timecoord"
	"github.com/gamma-programme/rospitch/translate"
)

// app holds the wired bridge process.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	monitor *health.Monitor

	nats      *natsclient.Client
	manager   *bridge.Manager
	metrics   *metric.Server
	natsSrc   *natssource.Source
	rosbridge *rosbridge.Client
}

func newApp(cfg *config.Config, table *binding.Table, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger, monitor: health.NewMonitor()}
	registry := metric.NewMetricsRegistry()

	engine, err := translate.NewEngine(table,
		translate.WithLogger(logger.With("component", "translate")),
		translate.WithMetrics(registry))
	if err != nil {
		return nil, fmt.Errorf("create translation engine: %w", err)
	}

	coord, err := timecoord.New(cfg.TimeMode(), cfg.Time.Lookahead, registry,
		timecoord.WithLogger(logger.With("component", "timecoord")))
	if err != nil {
		return nil, fmt.Errorf("create time coordinator: %w", err)
	}

	// The gateway ambassador is created right after the client and before
	// Connect, so the disconnect callback always sees it.
	var gateway *natsrti.Ambassador
	if cfg.NeedsNATS() {
		a.nats, err = newNATSClient(cfg, registry, logger, func(err error) {
			if gateway != nil {
				gateway.HandleDisconnect(err)
			}
		})
		if err != nil {
			return nil, err
		}
		a.monitor.Register("nats", natsProbe(a.nats))
	}

	var amb federation.Ambassador
	switch cfg.Pitch.Ambassador {
	case config.AmbassadorNATS:
		gateway, err = natsrti.New(a.nats, cfg.Pitch.GatewayPrefix, logger.With("component", "natsrti"))
		if err != nil {
			return nil, fmt.Errorf("create gateway ambassador: %w", err)
		}
		amb = gateway
	default:
		logger.Warn("Using the in-memory ambassador, federation calls are logged only")
		amb = federation.NewMemoryAmbassador(logger.With("component", "memory-rti"))
	}

	a.manager, err = bridge.New(cfg.BridgeSettings(), amb, engine, coord,
		bridge.WithLogger(logger.With("component", "bridge")),
		bridge.WithMetrics(registry))
	if err != nil {
		return nil, fmt.Errorf("create connection manager: %w", err)
	}
	a.monitor.Register("bridge", a.manager.Health)

	if err := a.setupSources(registry); err != nil {
		return nil, err
	}

	if cfg.Metrics.Enabled {
		a.metrics = metric.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, registry, func() (any, bool) {
			return a.monitor.Check(appName)
		})
	}
	return a, nil
}

func newNATSClient(cfg *config.Config, registry *metric.MetricsRegistry, logger *slog.Logger,
	onDisconnect func(error)) (*natsclient.Client, error) {
	opts := []natsclient.ClientOption{
		natsclient.WithName(cfg.FederateName()),
		natsclient.WithLogger(logger.With("component", "nats")),
		natsclient.WithMetrics(registry),
		natsclient.WithMaxReconnects(cfg.NATS.MaxReconnects),
		natsclient.WithDisconnectCallback(onDisconnect),
	}
	if cfg.NATS.ReconnectWait > 0 {
		opts = append(opts, natsclient.WithReconnectWait(cfg.NATS.ReconnectWait))
	}
	if cfg.NATS.Timeout > 0 {
		opts = append(opts, natsclient.WithTimeout(cfg.NATS.Timeout))
	}
	if cfg.NATS.Username != "" && cfg.NATS.Password != "" {
		opts = append(opts, natsclient.WithCredentials(cfg.NATS.Username, cfg.NATS.Password))
	}
	if cfg.NATS.Token != "" {
		opts = append(opts, natsclient.WithToken(cfg.NATS.Token))
	}
	tlsConfig, err := tlsutil.LoadClientTLSConfig(cfg.NATS.TLS)
	if err != nil {
		return nil, fmt.Errorf("load NATS TLS config: %w", err)
	}
	if tlsConfig != nil {
		opts = append(opts, natsclient.WithTLSConfig(tlsConfig))
	}

	client, err := natsclient.NewClient(strings.Join(cfg.NATS.URLs, ","), opts...)
	if err != nil {
		return nil, fmt.Errorf("create NATS client: %w", err)
	}
	return client, nil
}

func natsProbe(client *natsclient.Client) health.Probe {
	return func() health.Status {
		st := client.GetStatus()
		switch {
		case client.IsHealthy():
			return health.NewHealthy("nats", "connected")
		case st.Status == natsclient.StatusReconnecting || st.Status == natsclient.StatusConnecting:
			return health.NewDegraded("nats", st.Status.String())
		default:
			return health.NewUnhealthy("nats", st.Status.String())
		}
	}
}

func (a *app) setupSources(registry *metric.MetricsRegistry) error {
	diag, err := ingest.NewDiagnostics(a.logger.With("component", "ingest"), registry)
	if err != nil {
		return fmt.Errorf("create ingest diagnostics: %w", err)
	}

	if src := a.cfg.Sources.NATS; src.Enabled {
		codec, err := ingest.ParseCodec(src.Codec)
		if err != nil {
			return err
		}
		handlers := ingest.Handlers(codec, a.manager, diag, nil)
		a.natsSrc = natssource.New(a.nats, handlers, src.Subjects, a.logger.With("component", "natssource"))
	}

	if a.cfg.Sources.Rosbridge.Enabled {
		// rosbridge frames carry JSON messages
		handlers := ingest.Handlers(ingest.JSON{}, a.manager, diag, nil)
		settings := a.cfg.RosbridgeSettings()
		settings.TLS, err = tlsutil.LoadClientTLSConfig(a.cfg.Sources.Rosbridge.TLS)
		if err != nil {
			return fmt.Errorf("load rosbridge TLS config: %w", err)
		}
		a.rosbridge, err = rosbridge.NewClient(settings, handlers,
			a.logger.With("component", "rosbridge"), registry, rosbridge.WithDiagnostics(diag))
		if err != nil {
			return fmt.Errorf("create rosbridge client: %w", err)
		}
		client := a.rosbridge
		a.monitor.Register("rosbridge", func() health.Status {
			if client.Connected() {
				return health.NewHealthy("rosbridge", "subscribed")
			}
			return health.NewDegraded("rosbridge", "dialling "+health.Sanitize(a.cfg.Sources.Rosbridge.URL))
		})
	}
	return nil
}

// run starts every component, connects to the federation and blocks until
// ctx is cancelled or the bridge stops with a fatal error.
func (a *app) run(ctx context.Context, shutdownTimeout time.Duration) error {
	if a.metrics != nil {
		if err := a.metrics.Start(); err != nil {
			return err
		}
		a.logger.Info("Metrics server started", "address", a.metrics.Address())
	}
	defer a.stopMetrics(shutdownTimeout)

	if a.nats != nil {
		if err := a.connectNATS(ctx); err != nil {
			return err
		}
		defer a.closeNATS(shutdownTimeout)
	}

	// The manager outlives ctx so that shutdown can resign cleanly.
	managerCtx, cancelManager := context.WithCancel(context.Background())
	defer cancelManager()
	errc := make(chan error, 1)
	go func() { errc <- a.manager.Run(managerCtx) }()

	creds := federation.Credentials{Username: a.cfg.Pitch.Username, Password: a.cfg.Pitch.Password}
	if err := a.manager.Connect(a.cfg.Pitch.URI, creds); err != nil {
		cancelManager()
		<-errc
		return err
	}

	sourceCtx, cancelSources := context.WithCancel(ctx)
	sources, sourceCtx := errgroup.WithContext(sourceCtx)
	defer func() {
		cancelSources()
		if err := sources.Wait(); err != nil && !stderrors.Is(err, context.Canceled) {
			a.logger.Error("Telemetry source stopped", "error", err)
		}
	}()

	if a.natsSrc != nil {
		if err := a.natsSrc.Start(sourceCtx); err != nil {
			a.manager.Shutdown()
			<-errc
			return err
		}
		a.logger.Info("NATS source started", "subjects", a.natsSrc.Subjects())
	}
	if a.rosbridge != nil {
		sources.Go(func() error {
			if err := a.rosbridge.Run(sourceCtx); err != nil {
				a.logger.Error("Rosbridge source stopped", "error", err)
				return err
			}
			return nil
		})
	}

	a.logger.Info("rospitch started", "endpoint", a.cfg.Pitch.URI, "federate", a.cfg.FederateName())

	select {
	case err := <-errc:
		// Run only returns on its own after a fatal error
		return err
	case <-ctx.Done():
	}

	a.logger.Info("Received shutdown signal")
	cancelSources()
	a.manager.Shutdown()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	case <-time.After(shutdownTimeout):
		a.logger.Warn("Shutdown timeout reached, abandoning federation", "timeout", shutdownTimeout)
		cancelManager()
		<-errc
	}

	a.logger.Info("rospitch shutdown complete")
	return nil
}

// connectNATS establishes the NATS connection and waits for it to be ready
func (a *app) connectNATS(ctx context.Context) error {
	a.logger.Info("Connecting to NATS", "url", a.nats.URL())
	if err := a.nats.Connect(ctx); err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}

	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := a.nats.WaitForConnection(connCtx); err != nil {
		return fmt.Errorf("NATS connection timeout: %w", err)
	}
	return nil
}

func (a *app) closeNATS(timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := a.nats.Close(ctx); err != nil {
		a.logger.Warn("NATS close failed", "error", err)
	}
}

func (a *app) stopMetrics(timeout time.Duration) {
	if a.metrics == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := a.metrics.Stop(ctx); err != nil {
		a.logger.Warn("Metrics server stop failed", "error", err)
	}
}
