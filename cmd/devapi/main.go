package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/ec-storefront/internal/config"
	"github.com/example/ec-storefront/internal/devapi"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[Config] %v", err)
	}
	if cfg.JWTSecret == "" {
		log.Fatal("[DevAPI] JWT_SECRET environment variable is required")
	}
	if len(cfg.JWTSecret) < 32 {
		log.Fatal("[DevAPI] JWT_SECRET must be at least 32 characters long")
	}

	apiCfg := devapi.DefaultConfig(cfg.JWTSecret)
	apiCfg.LogRequests = true
	srv, err := devapi.New(apiCfg)
	if err != nil {
		log.Fatalf("[DevAPI] Failed to initialize: %v", err)
	}

	log.Println("[DevAPI] ========================================")
	log.Println("[DevAPI] EC Storefront - development API")
	log.Println("[DevAPI] ========================================")
	log.Printf("[DevAPI] Seed admin:    %s / %s", devapi.SeedAdminEmail, devapi.SeedAdminPassword)
	log.Printf("[DevAPI] Seed customer: %s / %s", devapi.SeedCustomerEmail, devapi.SeedCustomerPassword)

	server := &http.Server{
		Addr:              cfg.DevAPIAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("[DevAPI] Server started on %s", cfg.DevAPIAddr)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[DevAPI] Server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[DevAPI] Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("[DevAPI] Shutdown error: %v", err)
	}
}
