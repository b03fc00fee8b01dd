package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"moodjournal/internal/api"
	"moodjournal/internal/classifier"
	"moodjournal/internal/config"
	"moodjournal/internal/database"
	"moodjournal/internal/gateway"
	"moodjournal/internal/identity"
	"moodjournal/internal/journal"
	"moodjournal/internal/notify"
	"moodjournal/internal/subscription"
)

func main() {
	cfg := config.Load()

	db, err := database.ConnectPostgres(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Could not connect to database")
	}

	rdb, err := database.ConnectRedis(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Could not connect to redis")
	}

	ledger := subscription.NewLedger(
		db,
		gateway.NewClient(cfg.FlwSecretKey),
		cfg.SubscriptionAmount,
		cfg.SubscriptionCurrency,
		cfg.SubscriptionDurationDays,
	)

	if cfg.TelegramBotToken != "" && cfg.TelegramAdminChatID != 0 {
		notifier, err := notify.NewTelegram(cfg.TelegramBotToken, cfg.TelegramAdminChatID)
		if err != nil {
			log.Fatal().Err(err).Msg("Could not create Telegram notifier")
		}
		ledger.Notifier = notifier
		log.Info().Msg("Payment notifications enabled")
	}

	handler := &api.Handler{
		Identity: identity.NewManager(db, rdb),
		Journal:  journal.NewStore(db, classifier.NewClient(cfg.HFModel, cfg.HFAPIKey)),
		Ledger:   ledger,

		WebhookSecret:     cfg.FlwWebhookSecret,
		WebhookAllowedIPs: cfg.FlwAllowedIPs,
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Shutdown error")
	}
}
