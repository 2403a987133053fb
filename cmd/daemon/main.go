package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/genricoloni/eddy/internal/config"
	"github.com/genricoloni/eddy/internal/domain"
	"github.com/genricoloni/eddy/internal/engine"
	"github.com/genricoloni/eddy/internal/fetcher"
	"github.com/genricoloni/eddy/internal/frontend"
	"github.com/genricoloni/eddy/internal/monitor"
	"github.com/genricoloni/eddy/internal/playback"
	"github.com/genricoloni/eddy/internal/processor"
	"github.com/genricoloni/eddy/internal/server"
	"github.com/joho/godotenv"
	"github.com/samber/lo"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// AppOptions wires the daemon. It expects a *viper.Viper to be supplied.
var AppOptions = fx.Options(
	fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
		return &fxevent.ZapLogger{Logger: log}
	}),

	fx.Provide(
		newLogger,
		config.NewAppConfig,
		fx.Annotate(playback.NewStore, fx.As(new(domain.PlaybackStore))),
		fx.Annotate(fetcher.NewHTTPFetcher, fx.As(new(domain.Fetcher))),
		fx.Annotate(processor.NewThumbnailProcessor, fx.As(new(domain.ImageProcessor))),
		fx.Annotate(frontend.NewLoader, fx.As(new(server.Populator))),
		fx.Annotate(monitor.NewMprisMonitor, fx.As(new(domain.Monitor))),
		engine.NewEngine,
		server.NewArtHandler,
		server.NewService,
	),

	fx.Invoke(registerHooks),
)

func main() {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd(afero.NewOsFs()).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// newRootCmd builds the eddy command; flags override environment and config file values
func newRootCmd(fs afero.Fs) *cobra.Command {
	v := config.NewViper(fs)
	var configPath string

	cmd := &cobra.Command{
		Use:          "eddy",
		Short:        "Serve the currently playing track to the Eddy viewer",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.ReadConfigFile(v, configPath); err != nil {
				return err
			}
			return run(cmd.Context(), v)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&configPath, "config", "", "config file (default $XDG_CONFIG_HOME/eddy/eddy.toml)")
	flags.Int("port", config.Defaults[config.KeyServerPort].(int), "HTTP listen port")
	flags.Bool("secure", false, "require an Authorization: Bearer <api-key> header")
	flags.String("api-key", "", "API key for secure mode")
	flags.Bool("frontend", true, "cache and serve the viewer frontend")
	flags.String("frontend-url", config.Defaults[config.KeyFrontendBaseURL].(string), "origin of the viewer frontend")
	flags.String("player", "", "only follow MPRIS players whose bus name contains this value")
	flags.String("log-level", config.Defaults[config.KeyLogLevel].(string), "log level (debug, info, warn, error)")

	lo.Must0(v.BindPFlag(config.KeyServerPort, flags.Lookup("port")))
	lo.Must0(v.BindPFlag(config.KeyServerSecure, flags.Lookup("secure")))
	lo.Must0(v.BindPFlag(config.KeyServerAPIKey, flags.Lookup("api-key")))
	lo.Must0(v.BindPFlag(config.KeyFrontendEnabled, flags.Lookup("frontend")))
	lo.Must0(v.BindPFlag(config.KeyFrontendBaseURL, flags.Lookup("frontend-url")))
	lo.Must0(v.BindPFlag(config.KeyMonitorPlayer, flags.Lookup("player")))
	lo.Must0(v.BindPFlag(config.KeyLogLevel, flags.Lookup("log-level")))

	return cmd
}

// run starts the application and blocks until ctx is cancelled
func run(ctx context.Context, v *viper.Viper) error {
	app := fx.New(AppOptions, fx.Supply(v))

	if err := app.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), app.StopTimeout())
	defer cancel()
	return app.Stop(stopCtx)
}

// newLogger creates a production zap logger at the configured level
func newLogger(v *viper.Viper) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(v.GetString(config.KeyLogLevel))
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = level
	return cfg.Build()
}

// registerHooks sets up application lifecycle hooks
func registerHooks(
	lc fx.Lifecycle,
	logger *zap.Logger,
	cfg *config.AppConfig,
	eng *engine.Engine,
	svc *server.Service,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := svc.Start(ctx, cfg.Server); err != nil {
				return err
			}
			if err := eng.Start(ctx); err != nil {
				return err
			}
			logger.Info("Eddy Daemon Started", zap.String("addr", svc.Addr()))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Shutting down")
			err := eng.Stop(ctx)
			if serr := svc.Stop(ctx); serr != nil && !errors.Is(serr, server.ErrNotRunning) {
				err = multierr.Append(err, serr)
			}
			return err
		},
	})
}
