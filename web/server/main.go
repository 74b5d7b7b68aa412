package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/Bucknalla/go-robot-locus/internal/config"
	"github.com/Bucknalla/go-robot-locus/internal/logging"
)

func main() {
	configDir := flag.String("config", ".", "Directory containing robot_locus.json")
	flag.Parse()

	settings, err := config.Load(*configDir)
	if err != nil {
		bootLog := logging.New(os.Stderr, "info")
		bootLog.Fatal().Err(err).Msg("failed to load configuration")
	}
	log := logging.New(os.Stderr, settings.LogLevel)

	webServer, err := NewWebServer(settings, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create web server")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start the broadcast goroutine
	go webServer.broadcastToClients(ctx)

	port := settings.Port()
	server := &http.Server{
		Addr:         ":" + strconv.Itoa(port),
		Handler:      webServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		<-ctx.Done()
		webServer.controller.Clear()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("server shutdown failed")
		}
	}()

	log.Info().
		Int("port", port).
		Str("endpoint", settings.Endpoint).
		Str("prefix", settings.Prefix).
		Msgf("starting robot locus server, open http://localhost:%d/locus/ in your browser", port)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server failed")
	}
}
