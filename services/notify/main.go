package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/diagnosis/luxsuv-invites/pkg/config"
	"github.com/diagnosis/luxsuv-invites/pkg/events"
	"github.com/diagnosis/luxsuv-invites/pkg/logger"
	mw "github.com/diagnosis/luxsuv-invites/pkg/middleware"
	"github.com/diagnosis/luxsuv-invites/services/notify/internal/mailer"
	"github.com/diagnosis/luxsuv-invites/services/notify/internal/subscriber"
	"github.com/go-chi/chi/v5"
)

func main() {
	cfg := config.Load()
	logger.Setup(cfg.Log.Level, cfg.Log.Format)

	if cfg.NATS.URL == "" {
		logger.Error("NATS_URL is required for the notify service")
		os.Exit(1)
	}

	bus, err := events.NewNATSEventBus(cfg.NATS.URL, "notify")
	if err != nil {
		logger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer bus.Close()

	var mail mailer.Service
	if cfg.Email.DevMode || cfg.Email.MailerSendKey == "" {
		logger.Info("Using dev mailer, emails are logged")
		mail = mailer.NewDevMailer()
	} else {
		mail = mailer.NewMailerSend(cfg.Email.MailerSendKey, cfg.Email.FromName, cfg.Email.FromEmail)
	}

	if err := subscriber.New(mail).Register(bus); err != nil {
		logger.Error("Failed to subscribe", "error", err)
		os.Exit(1)
	}

	r := chi.NewRouter()
	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("notify"))
	r.Use(mw.Logging)
	r.Use(mw.Health)
	r.Use(mw.Metrics)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down notify service...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Notify service shutdown error", "error", err)
		}
	}()

	logger.Info("Starting notify service", "port", cfg.Server.Port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Notify service error", "error", err)
		os.Exit(1)
	}
}
