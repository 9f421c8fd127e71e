package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/promptshot/backend/internal/api"
	"github.com/promptshot/backend/internal/config"
	"github.com/promptshot/backend/internal/database"
	"github.com/promptshot/backend/internal/openrouter"
)

func main() {
	godotenv.Load()
	config.Load()

	if err := database.Init(); err != nil {
		log.Fatalf("Database init: %v", err)
	}
	defer database.Close()

	// Apply custom upstream settings
	openrouter.SetBaseURL(config.Cfg.OpenRouterURL)
	openrouter.SetReferer(config.Cfg.SiteURL)

	r := newRouter()

	srv := &http.Server{
		Addr:    config.Cfg.ListenAddr,
		Handler: r,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("PromptShot API starting on %s", config.Cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-sigCtx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Shutdown error: %v", err)
	}
	log.Println("PromptShot API stopped")
}

func newRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.Get("/api/_healthcheck", api.HealthCheck)
	r.Get("/api/models", api.ListModels)

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/signup", api.Signup)
		r.Post("/login", api.Login)
		r.Post("/logout", api.Logout)
		r.Get("/me", api.Me)
	})

	r.Post("/api/chat", api.Chat)
	r.Get("/api/usage", api.GetUsage)
	r.Get("/api/user/{id}", api.GetUser)
	r.Post("/api/checkout", api.Checkout)
	r.Post("/api/webhook", api.Webhook)

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(api.AdminAuth)
		r.Post("/config", api.SetAdminConfig)
		r.Get("/config", api.GetAdminConfig)
	})

	return r
}
