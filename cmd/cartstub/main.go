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

	"github.com/hkiendev/cartstore/internal/domain"
	"github.com/hkiendev/cartstore/internal/stubserver"
)

type Config struct {
	HTTPPort        string
	ShutdownTimeout time.Duration
}

func loadConfig() *Config {
	return &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		ShutdownTimeout: 10 * time.Second,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	cfg := loadConfig()

	stub := stubserver.New()
	seedCatalog(stub)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      stub.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("cart stub starting on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}

	log.Println("server exited")
}

func seedCatalog(stub *stubserver.Server) {
	for _, p := range []domain.Product{
		{ID: "p1", SKU: "SHOE-1", Name: "Runner Pro", Brand: "Sportwear", OriginalPrice: 100, SalePrice: 80, Stock: 20},
		{ID: "p2", SKU: "SHOE-2", Name: "Trail Max", Brand: "Sportwear", OriginalPrice: 120, Stock: 10},
		{ID: "p3", SKU: "SHIRT-1", Name: "Dry-Fit Tee", Brand: "Sportwear", OriginalPrice: 25, SalePrice: 19, Stock: 100},
	} {
		stub.SetProduct(p)
	}
}
