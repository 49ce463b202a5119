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
	"github.com/diagnosis/luxsuv-invites/pkg/logger"
	mw "github.com/diagnosis/luxsuv-invites/pkg/middleware"
	"github.com/diagnosis/luxsuv-invites/services/gateway/internal/handlers"
	"github.com/diagnosis/luxsuv-invites/services/gateway/internal/proxy"
	"github.com/go-chi/chi/v5"
)

func main() {
	cfg := config.Load()
	logger.Setup(cfg.Log.Level, cfg.Log.Format)

	rsvpProxy := proxy.NewServiceProxy("rsvp", getServiceURL("RSVP_SERVICE_URL", "http://localhost:8081"))
	h := handlers.New(rsvpProxy)

	r := chi.NewRouter()

	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("gateway"))
	r.Use(mw.Logging)
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.ErrorContext(r.Context(), "Panic recovered", "error", err)
					http.Error(w, "Internal server error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	})
	r.Use(mw.CORS(cfg.Server.AllowedOrigins))
	r.Use(mw.Health)
	r.Use(mw.Metrics)
	r.Mount("/", h.Routes())

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

		logger.Info("Shutting down gateway service...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Gateway shutdown error", "error", err)
		}
	}()

	logger.Info("Starting gateway service", "port", cfg.Server.Port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Gateway server error", "error", err)
		os.Exit(1)
	}
}

func getServiceURL(envKey, fallback string) string {
	if url := os.Getenv(envKey); url != "" {
		return url
	}
	return fallback
}
