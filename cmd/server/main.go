package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jackmoore7/coles-web-app/internal/cache"
	"github.com/jackmoore7/coles-web-app/internal/config"
	"github.com/jackmoore7/coles-web-app/internal/gate"
	"github.com/jackmoore7/coles-web-app/internal/logging"
	"github.com/jackmoore7/coles-web-app/internal/prices"
	"github.com/jackmoore7/coles-web-app/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to process environment config")
	}
	env := cfg.Environment()
	logging.Init(env.IsProduction())

	// graceful shutdown coordination
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, err := store.Connect(ctx, cfg.DB)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to connect to database")
	}
	logging.Info().Msg("connected to postgres")

	// One-time origin list fetch; falls back to the embedded ranges.
	networks := gate.FetchCloudflareNetworks(ctx)
	bans := gate.NewBanList(cfg.BanMaxNotFound, cfg.BanDuration())
	g := gate.New(networks, bans, env.IsProduction())

	snapshots := cache.New(repo, cfg.CacheCutoffHour)
	h := prices.NewHandler(repo, snapshots, cfg.PageSize)

	if env.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())

	// Health stays outside the gate so probes can't get banned.
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api", g.Middleware())
	h.Register(api)

	// static dashboard
	r.Static("/static", "./web")
	r.StaticFile("/", "./web/index.html")

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		logging.Info().Str("port", cfg.Port).Str("env", env.String()).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatal().Err(err).Msg("server ListenAndServe")
		}
	}()

	<-ctx.Done()
	logging.Info().Msg("shutdown signal received")

	// stop accepting new requests, allow 15s to finish
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("server shutdown")
	}

	// close DB pool (blocks until connections returned)
	repo.Close()

	logging.Info().Msg("graceful shutdown complete")
}
