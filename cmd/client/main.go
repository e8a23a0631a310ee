package main

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Meet/internal/adapters/httpapi"
	"github.com/dkeye/Meet/internal/adapters/meetings"
	"github.com/dkeye/Meet/internal/adapters/rtc"
	signalws "github.com/dkeye/Meet/internal/adapters/signal"
	"github.com/dkeye/Meet/internal/config"
	"github.com/dkeye/Meet/internal/coordinator"
	"github.com/dkeye/Meet/internal/domain"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("failed to load config")
		return
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	identity, err := domain.NewIdentity(cfg.DisplayName, domain.UserID(cfg.UserID))
	if err != nil {
		log.Error().Err(err).Msg("bad identity")
		return
	}

	roomID := domain.RoomID(cfg.RoomID)
	if roomID == "" {
		// No room configured: create one through the metadata service.
		meet := meetings.NewClient(cfg.MeetAPIURL, os.Getenv("MEET_TOKEN"))
		m, err := meet.Create(ctx, string(identity.UserID), "ad-hoc meeting")
		if err != nil {
			log.Error().Err(err).Msg("create meeting")
			return
		}
		roomID = m.ID
		log.Info().Str("room", string(roomID)).Msg("created meeting")
	}

	transport := signalws.NewClient(signalws.Config{
		URL:         cfg.SignalURL,
		MaxAttempts: cfg.ReconnectAttempts,
		BackoffBase: cfg.ReconnectBackoff,
	})

	// Peer negotiation runs over an in-process fabric unless a real
	// negotiation service is wired in a deployment build.
	engine := rtc.NewEngine(rtc.NewLoopback().Endpoint(), rtc.DefaultProviders())
	go func() {
		if err := engine.Start(ctx); err != nil {
			log.Error().Err(err).Msg("peer engine start")
		}
	}()

	coord := coordinator.New(coordinator.Config{
		RoomID:        roomID,
		Identity:      identity,
		PendingWindow: cfg.PendingWindow,
		StaleGrace:    cfg.StaleGrace,
	}, transport, engine)

	store := httpapi.NewStore()
	unsubscribe := coord.Subscribe(store)
	defer unsubscribe()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.StatusPort),
		Handler: httpapi.SetupRouter(cfg.Mode, store),
	}
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("status API started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("status API error")
		}
	}()

	runDone := make(chan error, 1)
	go func() { runDone <- coord.Run(ctx) }()

	go readCommands(ctx, coord)

	select {
	case <-ctx.Done():
	case err := <-runDone:
		if err != nil && err != context.Canceled {
			log.Error().Err(err).Msg("coordinator stopped")
		}
	}

	log.Info().Msg("shutting down")
	coord.Leave()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("status API forced to shutdown")
	}
	log.Info().Msg("exited gracefully")
}

// readCommands turns stdin lines into coordinator commands: /mic and
// /cam toggles, /leave, anything else is a chat message.
func readCommands(ctx context.Context, coord *coordinator.Coordinator) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
		case line == "/leave":
			coord.Leave()
			return
		case line == "/mic on":
			coord.SetAudio(true)
		case line == "/mic off":
			coord.SetAudio(false)
		case line == "/cam on":
			coord.SetVideo(true)
		case line == "/cam off":
			coord.SetVideo(false)
		default:
			coord.SendChat(line)
		}
	}
}
