package main

import (
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/yourorg/classifieds/services/relay-service/internal/api"
	"github.com/yourorg/classifieds/services/relay-service/internal/config"
	"github.com/yourorg/classifieds/services/relay-service/internal/handlers"
	"github.com/yourorg/classifieds/services/relay-service/internal/logger"
	"github.com/yourorg/classifieds/services/relay-service/internal/relay"
)

func main() {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	lg, err := logger.New(logger.Config{Development: cfg.Development()})
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	hub := relay.NewHub(lg)
	go hub.Run()

	wsh := handlers.NewWSHandler(hub, cfg, lg)
	app := api.NewServer(wsh)

	errs := make(chan error, 1)
	go func() {
		addr := ":" + strconv.Itoa(cfg.App.Port)
		lg.Infow("starting relay service", "addr", addr, "env", cfg.App.Env)
		errs <- app.Listen(addr)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case e := <-errs:
		lg.Fatalw("server error", "err", e)
	case s := <-sig:
		lg.Infow("signal received, shutting down", "signal", s.String())
	}

	if err := app.Shutdown(); err != nil {
		lg.Warnw("fiber shutdown", "err", err)
	}
	hub.Stop()
}
