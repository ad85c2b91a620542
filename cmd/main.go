package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/fjod/go_shop/internal/cache"
	h "github.com/fjod/go_shop/internal/http"
	"github.com/fjod/go_shop/internal/publisher"
	"github.com/fjod/go_shop/internal/repository"
	"github.com/fjod/go_shop/internal/service"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	log.Println("shop service starting...")
	var wg sync.WaitGroup

	// Configuration
	httpPort := getEnv("HTTP_PORT", "8080")
	redisAddr := getEnv("REDIS_ADDR", "localhost:6379")
	kafkaBrokers := getEnv("KAFKA_BROKERS", "localhost:9092")
	requestTimeout := 30 * time.Second
	shutdownTimeout := 10 * time.Second

	// Database setup
	dbHost := getEnv("DB_HOST", "localhost")
	dbPort := getEnv("DB_PORT", "5432")
	dbUser := getEnv("DB_USER", "postgres")
	dbPass := getEnv("DB_PASSWORD", "postgres")
	dbName := getEnv("DB_NAME", "shop")
	migrationsPath := getEnv("MIGRATIONS_PATH", "./migrations")

	port, err := strconv.Atoi(dbPort)
	if err != nil {
		log.Fatalf("Invalid DB_PORT: %v", err)
	}

	creds := &repository.Credentials{
		Host:              dbHost,
		Port:              port,
		User:              dbUser,
		Password:          dbPass,
		DBName:            dbName,
		MigrationsDirPath: migrationsPath,
	}

	repo, err := repository.NewRepository(creds)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer repo.Close()

	if err := repo.RunMigrations(creds); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Database migrations completed")

	// Redis product cache
	redisClient := redis.NewClient(&redis.Options{Addr: redisAddr})
	defer redisClient.Close()
	productCache := cache.NewRedisCache(redisClient)

	// Services
	reservations := service.NewReservationService(repo, productCache)
	checkout := service.NewCheckoutService(repo)
	products := service.NewProductService(repo, productCache)

	// Outbox poller publishing transaction events to Kafka
	poller := publisher.NewOutboxPoller(repo, strings.Split(kafkaBrokers, ",")...)
	pollerCtx, pollerCancel := context.WithCancel(context.Background())
	wg.Add(1)
	go func() {
		defer wg.Done()
		poller.Run(pollerCtx)
	}()

	// Handlers
	cartHandler := h.NewCartHandler(reservations, requestTimeout)
	transactionHandler := h.NewTransactionHandler(checkout, requestTimeout)
	productHandler := h.NewProductHandler(products, requestTimeout)

	// Setup router
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(h.RequestIDMiddleware)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(middleware.Compress(5))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			r.Get("/", productHandler.List)
			r.Get("/{id}", productHandler.Get)
			r.Post("/", productHandler.Create)
		})
		r.Group(func(r chi.Router) {
			r.Use(h.ClientIdentityMiddleware)
			r.Route("/cart", func(r chi.Router) {
				r.Get("/", cartHandler.GetCart)
				r.Post("/", cartHandler.AddItem)
				r.Post("/remove", cartHandler.RemoveItem)
			})
			r.Route("/transaction", func(r chi.Router) {
				r.Get("/", transactionHandler.List)
				r.Post("/", transactionHandler.Checkout)
				r.Get("/{id}", transactionHandler.Get)
				r.Put("/{id}/status", transactionHandler.UpdateStatus)
			})
		})
	})

	srv := &http.Server{
		Addr:         ":" + httpPort,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("shop service listening on :%s", httpPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server forced to shutdown: %v", err)
	}

	pollerCancel()
	doneChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(doneChan)
	}()

	select {
	case <-doneChan:
		log.Println("Poller stopped cleanly")
	case <-ctx.Done():
		log.Println("Poller didn't stop in time")
	}

	if err := poller.Close(); err != nil {
		log.Printf("failed to close kafka writer: %v", err)
	}
	log.Println("shop service stopped")
}
