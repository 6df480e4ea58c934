package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/vbridge-io/vbridge/internal/adapters/http"
	wsignal "github.com/vbridge-io/vbridge/internal/adapters/signal"
	"github.com/vbridge-io/vbridge/internal/app"
	"github.com/vbridge-io/vbridge/internal/config"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Error().Err(err).Msg("failed to load config")
	}

	confs := app.NewConferenceManager()
	bridge := app.NewBridge(confs, cfg.ChannelLifetime)
	policy := app.SimplePolicy{}
	limiter := wsignal.NewRequestRateLimiter(cfg.RequestLimit, cfg.RequestInterval)

	ctl := wsignal.NewSignalWSController(bridge, policy, limiter)
	ctl.ReadLimit = cfg.ReadLimit
	ctl.PingPeriod = cfg.PingPeriod
	bridge.SetNotifier(ctl)

	h := router.NewConferenceHandler(bridge)
	r := router.SetupRouter(ctx, cfg, h, ctl)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		ticker := time.NewTicker(cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				bridge.Sweep(now)
			}
		}
	}()

	go func() {
		log.Info().Str("addr", addr).Msg("vbridge server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
