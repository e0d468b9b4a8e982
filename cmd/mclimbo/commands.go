package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gstoney/mclimbo/admin"
	"github.com/gstoney/mclimbo/config"
	"github.com/gstoney/mclimbo/packet"
	"github.com/gstoney/mclimbo/server"
	"github.com/gstoney/mclimbo/wake"
	"github.com/gstoney/mclimbo/world"
)

func serveCmd() *cobra.Command {
	var (
		configPath string
		noConsole  bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the limbo server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			log, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer log.Sync()

			return run(cmd.Context(), cfg, log, !noConsole)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to the TOML config file")
	cmd.Flags().BoolVar(&noConsole, "no-console", false, "Do not read commands from stdin")
	return cmd
}

func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the default configuration as TOML",
		RunE: func(cmd *cobra.Command, args []string) error {
			return config.Default().Write(cmd.OutOrStdout())
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "mclimbo %s (%s), %s %s/%s\n",
				version, commit, runtime.Version(), runtime.GOOS, runtime.GOARCH)
			lo, hi := packet.MinVersion, packet.MaxVersion
			fmt.Fprintf(cmd.OutOrStdout(), "protocols %d (%s) to %d (%s)\n", lo, lo, hi, hi)
		},
	}
}

// run wires the server and its optional surfaces and blocks until a
// signal, the console or the admin endpoint asks it to stop.
func run(parent context.Context, cfg *config.Config, log *zap.SugaredLogger, console bool) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	dim, err := world.ParseDimension(cfg.World.Dimension)
	if err != nil {
		return err
	}
	builtin, err := world.NewBuiltin(dim)
	if err != nil {
		return err
	}
	var provider world.Provider = builtin
	if cfg.World.Dir != "" {
		dir, err := world.NewDir(cfg.World.Dir, dim, builtin)
		if err != nil {
			return err
		}
		log.Infow("loaded registry codecs", "dir", cfg.World.Dir, "versions", dir.Loaded())
		provider = dir
	}

	reg, err := packet.NewRegistry()
	if err != nil {
		return fmt.Errorf("building packet registry: %w", err)
	}

	metrics := prometheus.NewRegistry()
	metrics.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	opts := []server.Option{
		server.WithLogger(log),
		server.WithMetrics(metrics),
	}
	if cfg.Wake.Enabled {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Wake.Region))
		if err != nil {
			return fmt.Errorf("loading AWS config: %w", err)
		}
		w := wake.NewEC2Waker(awsCfg, wake.EC2Options{
			InstanceID: cfg.Wake.InstanceID,
			Cooldown:   cfg.Wake.Cooldown.Duration,
			StatusTTL:  cfg.Wake.StatusTTL.Duration,
		}, log.Named("wake"))
		opts = append(opts, server.WithWaker(w))
		log.Infow("backend waking enabled", "instance", cfg.Wake.InstanceID)
	}

	srv := server.New(cfg, reg, provider, opts...)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(gctx)
	})
	if cfg.Admin.Addr != "" {
		h := admin.NewHandler(admin.Options{
			Connections: srv.Connections(),
			Gatherer:    metrics,
			Stop:        cancel,
			Log:         log.Named("admin"),
		})
		g.Go(func() error {
			return admin.ListenAndServe(gctx, cfg.Admin.Addr, h, log.Named("admin"))
		})
	}
	if console {
		c := newConsole(os.Stdin, os.Stdout, srv, cancel)
		go c.run(gctx)
	}

	log.Infow("mclimbo started",
		"bind", cfg.Bind,
		"versions", fmt.Sprintf("%s-%s", packet.Version(cfg.MinProtocol), packet.Version(cfg.MaxProtocol)),
		"max_players", cfg.MaxPlayers,
	)
	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	return err
}
