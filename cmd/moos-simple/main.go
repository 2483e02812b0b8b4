// moos-simple runs the example application on a community engine. It
// publishes an incrementing "Double" and prints its report on the
// <APP>_STATUS topic.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"moos-bridge/internal/bridge"
	"moos-bridge/internal/config"
	"moos-bridge/internal/core/network"
	"moos-bridge/internal/engine/community"
	xlog "moos-bridge/internal/log"
	"moos-bridge/internal/mailbox"
	"moos-bridge/internal/simpleapp"
	"moos-bridge/internal/statusapi"
)

func main() {
	if err := run(); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath string
		name       string
		mission    string
		statusAddr string
		transport  string
		logLevel   string
		pace       time.Duration
	)
	flags := pflag.NewFlagSet("moos-simple", pflag.ContinueOnError)
	flags.StringVar(&configPath, "config", "", "path to a YAML config file")
	flags.StringVar(&name, "name", "", "application name (overrides app.name)")
	flags.StringVar(&mission, "mission", "", "mission file path (overrides app.mission)")
	flags.StringVar(&statusAddr, "status-addr", "", "operator console listen address (overrides status.listen_addr)")
	flags.StringVar(&transport, "transport", "", "memory or libp2p (overrides engine.transport)")
	flags.StringVar(&logLevel, "log-level", "", "log level (overrides log.level)")
	flags.DurationVar(&pace, "pace", simpleapp.DefaultPace, "interval between published values")
	if err := flags.Parse(os.Args[1:]); err != nil {
		return err
	}
	if args := flags.Args(); len(args) > 0 && mission == "" {
		mission = args[0]
	}

	cfg, err := resolveConfig(configPath, overrides{
		name:       name,
		mission:    mission,
		statusAddr: statusAddr,
		transport:  transport,
		logLevel:   logLevel,
	})
	if err != nil {
		return err
	}
	xlog.Configure(xlog.Config{Level: cfg.Log.Level, Service: "moos-simple"})
	logger := xlog.WithComponent("main")
	logger.Debug().Interface("config", cfg).Msg("configuration resolved")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ps, err := openTransport(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open transport: %w", err)
	}
	defer func() {
		if err := ps.Close(); err != nil {
			logger.Warn().Err(err).Msg("transport close failed")
		}
	}()

	eng, err := community.New(community.Options{
		Transport:   ps,
		AppTick:     cfg.Engine.AppTick,
		ReportEvery: cfg.Engine.ReportEvery,
		TopicPrefix: cfg.Engine.TopicPrefix,
		Logger:      xlog.WithComponent("engine"),
	})
	if err != nil {
		return err
	}

	mb := mailbox.New()
	app := simpleapp.New(mb, pace, xlog.WithComponent("app"))
	hostLogger := xlog.WithComponent("bridge")
	host, err := bridge.New(eng, app, bridge.Options{
		Name:            cfg.App.Name,
		Mission:         cfg.App.Mission,
		Subscriptions:   cfg.App.Subscriptions,
		RefreshInterval: cfg.App.RefreshInterval,
		Mailbox:         mb,
		Logger:          &hostLogger,
	})
	if err != nil {
		return err
	}
	defer func() { _ = host.Close() }()

	logger.Info().
		Str("app", cfg.App.Name).
		Str("transport", cfg.Engine.Transport).
		Strs("subscriptions", cfg.App.Subscriptions).
		Uint64("session", uint64(host.Session())).
		Msg("starting")

	g, gctx := errgroup.WithContext(ctx)
	if cfg.Status.ListenAddr != "" {
		mux := http.NewServeMux()
		statusapi.NewServer(host, ps, cfg.Engine.TopicPrefix, xlog.WithComponent("statusapi")).Register(mux)
		srv := &http.Server{Addr: cfg.Status.ListenAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			logger.Info().Str("addr", srv.Addr).Msg("operator console listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}
	g.Go(func() error {
		return host.Start(gctx)
	})

	err = g.Wait()
	if report, ok := host.LastReport(); ok {
		logger.Info().Str("report", report).Msg("final report")
	}
	return err
}

// overrides holds the command-line values; empty fields leave the config untouched.
type overrides struct {
	name       string
	mission    string
	statusAddr string
	transport  string
	logLevel   string
}

// resolveConfig layers the file (or defaults), the environment and then the
// flags. It runs before the logger exists so LOG_LEVEL can still pick the level.
func resolveConfig(path string, o overrides) (config.Config, error) {
	cfg := config.Default()
	if path != "" {
		loaded, err := config.LoadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}
	config.ApplyEnv(&cfg, zerolog.Nop())

	if o.name != "" {
		cfg.App.Name = o.name
	}
	if o.mission != "" {
		cfg.App.Mission = o.mission
	}
	if o.statusAddr != "" {
		cfg.Status.ListenAddr = o.statusAddr
	}
	if o.transport != "" {
		cfg.Engine.Transport = o.transport
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if len(cfg.App.Subscriptions) == 0 {
		cfg.App.Subscriptions = []string{simpleapp.DoubleName, simpleapp.StringName}
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func openTransport(ctx context.Context, cfg config.Config) (network.PubSub, error) {
	switch cfg.Engine.Transport {
	case config.TransportLibp2p:
		p := cfg.Engine.Libp2p
		logger := xlog.WithComponent("libp2p")
		node, err := network.NewLibp2pPubSub(ctx, network.Libp2pOptions{
			ListenAddrs:     p.ListenAddrs,
			Bootstrap:       p.Bootstrap,
			Rendezvous:      p.Rendezvous,
			EnableMDNS:      p.MDNS,
			IdentityKeyFile: p.IdentityKeyFile,
			RequirePeers:    p.RequirePeers,
			Logger:          logger,
		})
		if err != nil {
			return nil, err
		}
		logger.Info().Str("peer_id", node.PeerID()).Strs("addrs", node.ListenAddrs()).Msg("libp2p node up")
		return node, nil
	default:
		return network.NewMemoryPubSub(), nil
	}
}
