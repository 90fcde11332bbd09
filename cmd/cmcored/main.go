// Command cmcored is the Connection Manager Core daemon: it loads the
// configured datalink catalog and policy rulesets, serves the north-bound
// client protocol and the three south-bound DLM transports, and exposes an
// operator dashboard in place of a SIGUSR1 stats dump. The Application
// struct mirrors the teacher's own daemon wiring pattern: construct every
// component up front, Start them, block on a shutdown signal, Stop in
// reverse order.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arinc839/cmcore/internal/adminweb"
	"github.com/arinc839/cmcore/internal/audit"
	"github.com/arinc839/cmcore/internal/auth"
	"github.com/arinc839/cmcore/internal/config"
	"github.com/arinc839/cmcore/internal/dictionary"
	"github.com/arinc839/cmcore/internal/health"
	"github.com/arinc839/cmcore/internal/linkregistry"
	"github.com/arinc839/cmcore/internal/logger"
	"github.com/arinc839/cmcore/internal/northbound"
	"github.com/arinc839/cmcore/internal/pushengine"
	"github.com/arinc839/cmcore/internal/sessionregistry"
	"github.com/arinc839/cmcore/internal/southbound"
)

const appName = "cmcored"

var (
	configPath = flag.String("config", "/etc/cmcore/cmcored.yaml", "path to the cmcored configuration file")
	version    = flag.Bool("version", false, "print version and exit")
)

const appVersion = "1.0.0"

// Application owns every long-lived component cmcored runs and the order
// they start/stop in.
type Application struct {
	config   *config.Config
	sessions *sessionregistry.Registry
	links    *linkregistry.Registry
	push     *pushengine.Engine
	auditSink *audit.Sink
	health   *health.Monitor

	nbDispatcher *northbound.Dispatcher
	nbTransport  *northbound.Transport

	sbDispatcher *southbound.Dispatcher
	streamTransport *southbound.StreamTransport
	datagramTransport *southbound.DatagramTransport
	heartbeatTransport *southbound.HeartbeatTransport

	authSvc *auth.Service
	admin   *adminweb.Server

	stopCh chan struct{}
}

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("%s version %s\n", appName, appVersion)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(logger.Config{
		Path:       cfg.Logging.Path,
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	app, err := NewApplication(cfg)
	if err != nil {
		logger.Fatal("failed to initialize application", err)
	}

	if err := app.Start(); err != nil {
		logger.Fatal("failed to start application", err)
	}

	logger.Info(appName+" started", "north_bound_addr", cfg.Server.NorthBoundAddr, "admin_web_addr", cfg.Server.AdminWebAddr)

	app.WaitForShutdown()

	if err := app.Stop(); err != nil {
		logger.Error("error during shutdown", err)
		os.Exit(1)
	}
	logger.Info(appName + " stopped gracefully")
}

// NewApplication builds every component and wires their dependencies, but
// starts nothing — Start launches the listener goroutines and background loops.
func NewApplication(cfg *config.Config) (*Application, error) {
	app := &Application{config: cfg, stopCh: make(chan struct{})}

	app.health = health.NewMonitor(30 * time.Second)
	app.health.Touch()

	app.sessions = sessionregistry.NewRegistry(cfg.Server.MaxSessions)
	app.links = linkregistry.NewRegistry(
		cfg.Server.MaxBearersPerLink,
		time.Duration(cfg.Liveness.HeartbeatTimeoutSec)*time.Second,
		time.Duration(cfg.Liveness.ScanIntervalSec)*time.Second,
	)

	for _, dl := range cfg.Datalinks {
		linkType, ok := dictionary.ParseLinkType(dl.LinkType)
		if !ok {
			return nil, fmt.Errorf("unknown link_type %q for datalink %q", dl.LinkType, dl.LinkName)
		}
		if err := app.links.Register(dl.LinkName, linkType, dl.MaxBandwidthKbps, dl.TypicalLatencyMs, dl.SecurityLevel); err != nil {
			return nil, fmt.Errorf("register catalog datalink %q: %w", dl.LinkName, err)
		}
	}

	if cfg.Audit.JSONLPath != "" {
		sink, err := audit.NewSink(cfg.Audit)
		if err != nil {
			return nil, fmt.Errorf("initialize audit sink: %w", err)
		}
		app.auditSink = sink
	}

	// North-bound transport is constructed before its dispatcher exists
	// because the push engine needs Transport's MNTRSender, and
	// the dispatcher in turn needs the push engine; Transport.SetDispatcher
	// closes the loop once everything else is built.
	app.nbTransport = northbound.NewTransport(cfg.Server.NorthBoundAddr, nil)

	app.push = pushengine.NewEngine(
		app.sessions,
		app.nbTransport.MNTRSender(),
		float64(cfg.Push.MinIntervalSec),
		cfg.Push.ChangeThresholdPct,
		time.Duration(cfg.Push.MNTRAckTimeoutSec)*time.Second,
	)

	app.nbDispatcher = northbound.NewDispatcher(cfg, app.sessions, app.links, app.push)
	app.nbDispatcher.SetAuditSink(app.auditSink)
	app.nbTransport.SetDispatcher(app.nbDispatcher)

	app.sbDispatcher = southbound.NewDispatcher(app.links)
	app.sbDispatcher.SetAuditSink(app.auditSink)
	app.streamTransport = southbound.NewStreamTransport(cfg.Server.StreamSocketPath, app.sbDispatcher)
	app.datagramTransport = southbound.NewDatagramTransport(cfg.Server.DatagramSocketPath, app.sbDispatcher)
	app.heartbeatTransport = southbound.NewHeartbeatTransport(cfg.Server.HeartbeatUDPAddr, app.sbDispatcher)

	app.authSvc = auth.NewService(cfg.Security, cfg.Operators)
	app.admin = adminweb.New(cfg.Server.AdminWebAddr, app.authSvc, app.links, app.sessions, app.health)

	return app, nil
}

// Start launches every listener goroutine and background loop. Individual
// listen errors are logged, not fatal — one transport failing to bind
// (e.g. a stale Unix socket) shouldn't prevent the others from serving.
func (a *Application) Start() error {
	a.links.StartLivenessMonitor()
	a.push.StartAckTimeoutLoop(5*time.Second, a.stopCh)
	go a.relayLinkEventsToPush()
	go a.watchdogLoop()

	serve := func(name string, fn func() error) {
		a.health.UpdateComponent(name, true, "")
		go func() {
			if err := fn(); err != nil {
				logger.Error(name+" listener exited with error", err)
				a.health.UpdateComponent(name, false, err.Error())
				a.health.RecordError(err)
			}
		}()
	}

	serve("north-bound", a.nbTransport.ListenAndServe)
	serve("south-bound stream", a.streamTransport.ListenAndServe)
	serve("south-bound datagram", a.datagramTransport.ListenAndServe)
	serve("south-bound heartbeat", a.heartbeatTransport.ListenAndServe)
	serve("admin dashboard", a.admin.ListenAndServe)

	return nil
}

// relayLinkEventsToPush subscribes to the Link Registry's event stream and
// drives the push engine's link-status-change notifications and the audit
// sink's link-transition records — the same "snapshot under lock, notify
// after unlock" consumer shape the registry's own doc comment describes,
// applied at the daemon's wiring layer rather than inside the registry.
func (a *Application) relayLinkEventsToPush() {
	events := a.links.Subscribe(32)
	for ev := range events {
		switch ev.Kind {
		case linkregistry.EventLinkUp:
			a.push.OnLinkStatusChange(ev.LinkName, true, ev.Link.MaxBandwidthKbps, ev.Link.MaxBandwidthKbps)
			if a.auditSink != nil {
				a.auditSink.RecordLinkTransition(ev.LinkName, "DOWN", "UP")
			}
		case linkregistry.EventLinkDown:
			a.push.OnLinkStatusChange(ev.LinkName, false, 0, 0)
			if a.auditSink != nil {
				a.auditSink.RecordLinkTransition(ev.LinkName, "UP", "DOWN")
			}
		}
	}
}

// watchdogLoop touches the health monitor on a steady cadence so the
// watchdog component only goes unhealthy if the daemon's own goroutines
// actually stop scheduling, not as a proxy for any single transport's state.
func (a *Application) watchdogLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-a.stopCh:
			return
		case <-ticker.C:
			a.health.Touch()
		}
	}
}

// Stop shuts every component down in roughly reverse start order, logging
// (not failing outright on) individual component errors so a slow admin
// dashboard shutdown can't block releasing the south-bound sockets.
func (a *Application) Stop() error {
	close(a.stopCh)
	a.links.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.admin.Stop(ctx); err != nil {
		logger.Error("admin dashboard shutdown error", err)
	}

	if err := a.nbTransport.Close(); err != nil {
		logger.Error("north-bound transport close error", err)
	}
	if err := a.streamTransport.Close(); err != nil {
		logger.Error("south-bound stream transport close error", err)
	}
	if err := a.datagramTransport.Close(); err != nil {
		logger.Error("south-bound datagram transport close error", err)
	}
	if err := a.heartbeatTransport.Close(); err != nil {
		logger.Error("south-bound heartbeat transport close error", err)
	}

	if a.auditSink != nil {
		if err := a.auditSink.Close(); err != nil {
			logger.Error("audit sink close error", err)
		}
	}

	a.health.Stop()

	return nil
}

// WaitForShutdown blocks until SIGINT or SIGTERM.
func (a *Application) WaitForShutdown() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("received shutdown signal", "signal", sig.String())
}
