package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/Aryan-cloud-arch/LOGGING-ALL-THE-CHATS/pkg/config"
	"github.com/Aryan-cloud-arch/LOGGING-ALL-THE-CHATS/pkg/media"
	"github.com/Aryan-cloud-arch/LOGGING-ALL-THE-CHATS/pkg/mirror"
	"github.com/Aryan-cloud-arch/LOGGING-ALL-THE-CHATS/pkg/telegram"
)

var runCommand = &cli.Command{
	Name:   "run",
	Usage:  "Catch up on missed messages, then mirror live events until interrupted",
	Before: requiresValidConfig,
	Action: cmdRun,
}

func cmdRun(ctx *cli.Context) error {
	cfg := getConfig(ctx)
	log := *getLogger(ctx)
	config.ApplyLogLevel(cfg)

	runCtx, stop := signal.NotifyContext(ctx.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(runCtx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	var metrics *mirror.Metrics
	if cfg.Metrics.Enabled {
		metrics = mirror.NewMetrics(prometheus.DefaultRegisterer)
		go serveMetrics(runCtx, cfg.Metrics.Listen, log)
	}

	processor := media.NewProcessor(cfg.Media.TempDir, cfg.Media.MaxImageDimension, cfg.Media.JPEGQuality, log)
	dispatcher, err := connectBots(runCtx, cfg, processor, log)
	if err != nil {
		return err
	}
	source, err := telegram.NewSource(cfg.Source, log)
	if err != nil {
		return err
	}

	engine := mirror.NewEngine(store, source, dispatcher, log, mirror.EngineOptions{
		Retry:           cfg.Mirror.Retry.Policy(),
		BackfillReplies: cfg.Mirror.BackfillReplies,
		MediaDir:        cfg.Media.Dir,
		TempDir:         cfg.Media.TempDir,
		Preparer:        processor,
		Metrics:         metrics,
	})
	var catchUp *mirror.CatchUp
	if cfg.CatchUp.Enabled {
		catchUp = mirror.NewCatchUp(engine, store, source, log, cfg.CatchUp.Options(metrics))
	}
	monitor := mirror.NewMonitor(engine, catchUp, source, log, metrics)

	janitor := media.NewJanitor(cfg.Media.TempDir, cfg.Media.TempMaxAge, cfg.Media.CleanupSchedule, log)
	go func() {
		if err := janitor.Run(runCtx); err != nil {
			log.Err(err).Msg("Temp media janitor stopped")
		}
	}()
	go func() {
		if err := config.Watch(runCtx, cfg.Path, log, config.ApplyLogLevel); err != nil {
			log.Warn().Err(err).Msg("Config file watcher stopped")
		}
	}()

	log.Info().
		Int64("partner_id", cfg.Source.PartnerUserID).
		Int64("group_id", cfg.Destination.GroupID).
		Msg("Starting mirror")
	err = source.Run(runCtx, monitor.Run)
	if err != nil {
		log.Err(err).Msg("Mirror stopped with error")
		return err
	}
	log.Info().Msg("Mirror stopped")
	return nil
}

func connectBots(ctx context.Context, cfg *config.Config, thumbs telegram.Thumbnailer, log zerolog.Logger) (*mirror.Dispatcher, error) {
	selfBot, err := telegram.NewBot(cfg.Destination.Self, cfg.Destination.GroupID, thumbs, log)
	if err != nil {
		return nil, err
	}
	peerBot, err := telegram.NewBot(cfg.Destination.Peer, cfg.Destination.GroupID, thumbs, log)
	if err != nil {
		return nil, err
	}
	if cfg.Destination.VerifyMembership {
		var problems []string
		for _, bot := range []*telegram.Bot{selfBot, peerBot} {
			var ce *mirror.ConfigurationError
			if err = bot.VerifyMembership(ctx); errors.As(err, &ce) {
				problems = append(problems, ce.Problems...)
			} else if err != nil {
				return nil, err
			}
		}
		if len(problems) > 0 {
			return nil, &mirror.ConfigurationError{Problems: problems}
		}
	}
	return mirror.NewDispatcher(selfBot, peerBot)
}

func serveMetrics(ctx context.Context, addr string, log zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	log.Info().Str("listen", addr).Msg("Serving metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Err(err).Msg("Metrics server failed")
	}
}
