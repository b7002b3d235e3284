package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mattjoyce/enginehost/internal/api"
	"github.com/mattjoyce/enginehost/internal/auth"
	"github.com/mattjoyce/enginehost/internal/command"
	"github.com/mattjoyce/enginehost/internal/config"
	"github.com/mattjoyce/enginehost/internal/engine"
	"github.com/mattjoyce/enginehost/internal/events"
	"github.com/mattjoyce/enginehost/internal/host"
	"github.com/mattjoyce/enginehost/internal/lock"
	"github.com/mattjoyce/enginehost/internal/log"
	"github.com/mattjoyce/enginehost/internal/output"
	"github.com/mattjoyce/enginehost/internal/storage"
	"github.com/mattjoyce/enginehost/internal/tui"
	"github.com/mattjoyce/enginehost/internal/uci"
)

// drainTimeout bounds how long we wait for the worker to reach Shutdown and
// release the engines.
const drainTimeout = 15 * time.Second

// runtime is everything one enginehost process owns.
type runtime struct {
	cfg      *config.Config
	logger   *slog.Logger
	host     *host.Host
	searcher *uci.Searcher
	journal  *storage.Journal
	hub      *events.Hub
	lock     *lock.Instance
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		discovered, err := config.DiscoverConfigPath()
		if err != nil {
			return nil, err
		}
		path = discovered
	}
	return config.Load(path)
}

func bootstrap(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*runtime, error) {
	rt := &runtime{cfg: cfg, logger: logger, hub: events.NewHub(1024)}

	if lockPath := instanceLockPath(cfg); lockPath != "" {
		l, err := lock.Acquire(lockPath)
		if err != nil {
			return nil, err
		}
		rt.lock = l
		logger.Info("acquired instance lock", "path", lockPath)
	}

	hcfg := host.Config{
		Classical: engineFactory(command.Classical, cfg.Engines.Classical),
		Neural:    engineFactory(command.Neural, cfg.Engines.Neural),
		Events:    rt.hub,
		Logger:    log.WithComponent("host"),
	}
	if cfg.Journal.Path != "" {
		j, err := storage.OpenJournal(ctx, cfg.Journal.Path)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("open journal: %w", err)
		}
		rt.journal = j
		hcfg.Journal = j
		logger.Info("journal opened", "path", cfg.Journal.Path)
	}

	h, err := host.New(hcfg)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.host = h
	rt.searcher = uci.NewSearcher(h)
	h.OnOutput(rt.searcher.Observe)
	return rt, nil
}

func instanceLockPath(cfg *config.Config) string {
	if cfg.Journal.Path != "" {
		return lock.PathFor(cfg.Journal.Path)
	}
	if n := cfg.Engines.Neural; n.Path != "" && n.WeightsDir != "" {
		return filepath.Join(n.WeightsDir, ".enginehost.lock")
	}
	return ""
}

// engineFactory maps one engine slot of the config to an adapter constructor.
func engineFactory(id command.Engine, ec config.EngineConfig) host.EngineFactory {
	if !ec.Enabled() {
		return nil
	}
	logger := log.WithEngine(string(id))
	name := "fish"
	if id == command.Neural {
		name = "zero"
	}

	if ec.Builtin == config.BuiltinLoopback {
		return func(out *output.Channel) (engine.Adapter, error) {
			if id == command.Neural {
				return engine.NewLoopbackNeural(out, name), nil
			}
			return engine.NewLoopback(out, name), nil
		}
	}

	pc := engine.ProcessConfig{
		Path:      ec.Path,
		Args:      ec.Args,
		Dir:       ec.Dir,
		Init:      ec.Init,
		QuitGrace: ec.QuitGrace,
	}
	return func(out *output.Channel) (engine.Adapter, error) {
		if id == command.Neural {
			store, err := engine.NewWeightsStore(ec.WeightsDir)
			if err != nil {
				return nil, err
			}
			n, err := engine.StartNeural(pc, store, out, logger)
			if err != nil {
				return nil, err
			}
			return n, nil
		}
		c, err := engine.StartClassical(pc, out, logger)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

// preloadWeights queues the configured weights file, if any.
func (rt *runtime) preloadWeights() error {
	path := rt.cfg.Engines.Neural.Weights
	if path == "" {
		return nil
	}
	buf, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read weights: %w", err)
	}
	if err := rt.searcher.LoadWeights(buf); err != nil {
		return fmt.Errorf("queue weights: %w", err)
	}
	rt.logger.Info("weights queued", "path", path, "bytes", len(buf), "digest", engine.Digest(buf)[:12])
	return nil
}

// drain requests shutdown if nobody has yet and waits for the worker.
func (rt *runtime) drain() error {
	if err := rt.host.RequestShutdown(); err != nil && !errors.Is(err, host.ErrShuttingDown) {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	return rt.host.Wait(ctx)
}

func (rt *runtime) Close() {
	if err := rt.journal.Close(); err != nil && !errors.Is(err, storage.ErrJournalClosed) {
		rt.logger.Warn("journal close failed", "error", err)
	}
	if err := rt.lock.Release(); err != nil {
		rt.logger.Warn("lock release failed", "error", err)
	}
}

func (rt *runtime) startAPI(ctx context.Context, listen string, errCh chan<- error) {
	tokens := make([]auth.TokenConfig, 0, len(rt.cfg.API.Auth.Tokens))
	for _, t := range rt.cfg.API.Auth.Tokens {
		tokens = append(tokens, auth.TokenConfig{Token: t.Token, Scopes: t.Scopes})
	}
	apiConfig := api.Config{
		Listen:         listen,
		APIKey:         rt.cfg.API.Auth.APIKey,
		Tokens:         tokens,
		MaxSyncTimeout: rt.cfg.API.MaxSyncTimeout,
	}

	var journal api.JournalReader
	if rt.journal != nil {
		journal = rt.journal
	}
	server := api.New(apiConfig, rt.host, rt.searcher, journal, rt.hub, log.WithComponent("api"))
	go func() {
		if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("api: %w", err)
		}
	}()
	rt.logger.Info("API server enabled", "listen", listen)
}

func runInteractive(args []string) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	// The terminal belongs to the UI; logs go to a file or nowhere.
	var logWriter io.Writer = io.Discard
	if cfg.Service.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Service.LogFile), 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create log directory: %v\n", err)
			return 1
		}
		f, err := os.OpenFile(cfg.Service.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
			return 1
		}
		defer f.Close()
		logWriter = f
	}
	log.SetupWithOptions(log.Options{Level: cfg.Service.LogLevel, Format: cfg.Service.LogFormat, Writer: logWriter})
	logger := log.WithComponent("main")
	logger.Info("enginehost starting", "version", version, "mode", "run", "config", cfg.SourcePath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt, err := bootstrap(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Startup failed: %v\n", err)
		return 1
	}
	defer rt.Close()

	model := tui.New(rt.host, rt.searcher, tui.Options{
		Name:         cfg.Service.Name,
		TickInterval: cfg.Service.TickInterval,
	})
	rt.host.OnOutput(model.Deliver)

	if err := rt.host.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Startup failed: %v\n", err)
		return 1
	}
	if err := rt.preloadWeights(); err != nil {
		logger.Error("weights preload failed", "error", err)
	}

	errCh := make(chan error, 1)
	if cfg.API.Enabled {
		rt.startAPI(ctx, cfg.API.Listen, errCh)
	}

	exit := 0
	if _, err := tea.NewProgram(model).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Terminal UI failed: %v\n", err)
		exit = 1
	}
	select {
	case err := <-errCh:
		fmt.Fprintf(os.Stderr, "%v\n", err)
		exit = 1
	default:
	}

	if err := rt.drain(); err != nil {
		logger.Error("engines did not stop cleanly", "error", err)
		exit = 1
	}
	logger.Info("enginehost stopped")
	return exit
}

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	listen := fs.String("listen", "", "HTTP listen address (enables the API)")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}
	if *listen != "" {
		cfg.API.Enabled = true
		cfg.API.Listen = *listen
	}

	log.SetupWithOptions(log.Options{Level: cfg.Service.LogLevel, Format: cfg.Service.LogFormat})
	logger := log.WithComponent("main")
	logger.Info("enginehost starting", "version", version, "mode", "serve", "config", cfg.SourcePath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt, err := bootstrap(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		return 1
	}
	defer rt.Close()

	outLogger := log.WithComponent("output")
	rt.host.OnOutput(func(e command.Engine, batch string) {
		outLogger.Debug("engine output", "engine", e, "text", batch)
	})

	if err := rt.host.Start(); err != nil {
		logger.Error("startup failed", "error", err)
		return 1
	}
	if err := rt.preloadWeights(); err != nil {
		logger.Error("weights preload failed", "error", err)
	}
	rt.host.Scheduler().Start(ctx, cfg.Service.TickInterval)
	defer rt.host.Scheduler().Stop()

	errCh := make(chan error, 1)
	if cfg.API.Enabled {
		rt.startAPI(ctx, cfg.API.Listen, errCh)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	logger.Info("enginehost running (press Ctrl+C to stop)")

	exit := 0
	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
	case <-rt.host.Done():
		logger.Info("worker stopped")
	case err := <-errCh:
		logger.Error("component failed", "error", err)
		exit = 1
	}

	if err := rt.drain(); err != nil {
		logger.Error("engines did not stop cleanly", "error", err)
		exit = 1
	}
	cancel()
	logger.Info("enginehost stopped")
	return exit
}
