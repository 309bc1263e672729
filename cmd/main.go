package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/Amivian/paystack-gobackend/internal/config"
	"github.com/Amivian/paystack-gobackend/internal/db"
	"github.com/Amivian/paystack-gobackend/internal/handlers"
	"github.com/Amivian/paystack-gobackend/internal/paystack"
	"github.com/Amivian/paystack-gobackend/internal/services"
)

func main() {
	// Load .env
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: Error loading .env: %s", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	// Connect to MongoDB
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := db.Connect(ctx, cfg.MongoURI)
	if err != nil {
		logger.Fatal("failed to connect to MongoDB", zap.Error(err))
	}
	defer func() {
		if err := client.Disconnect(context.Background()); err != nil {
			logger.Warn("error disconnecting from MongoDB", zap.Error(err))
		}
	}()
	logger.Info("connected to MongoDB")

	database := client.Database(cfg.MongoDatabase)

	// Initialize services and handlers
	store := services.NewMongoStore(database)
	if err := store.EnsureIndexes(ctx); err != nil {
		logger.Fatal("failed to create indexes", zap.Error(err))
	}

	gateway := paystack.NewClient(cfg.SecretKey(), cfg.PaystackBaseURL)
	history := services.NewMongoOrderHistory(database)
	engine := services.NewReconciliationEngine(store, gateway, history, cfg, logger)
	refunds := services.NewRefundCoordinator(store, gateway, history, cfg, logger)

	paymentHandler := handlers.NewPaymentHandler(cfg, store, engine, refunds, gateway, history, logger)
	bankHandler := handlers.NewBankHandler(gateway, logger)

	// Set up router
	router := mux.NewRouter()
	router.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET", "HEAD")

	router.HandleFunc("/api/checkout", paymentHandler.Checkout).Methods("POST")
	router.HandleFunc("/api/payment/callback", paymentHandler.Callback).Methods("GET")
	router.HandleFunc("/api/payment/webhook", paymentHandler.Webhook).Methods("POST")

	router.HandleFunc("/api/transactions", paymentHandler.ListTransactions).Methods("GET")
	router.HandleFunc("/api/transactions/stats", paymentHandler.Statistics).Methods("GET")
	router.HandleFunc("/api/transactions/{transactionID}", paymentHandler.GetTransaction).Methods("GET")
	router.HandleFunc("/api/transactions/{transactionID}/refund", paymentHandler.Refund).Methods("POST")

	router.HandleFunc("/api/banks", bankHandler.ListBanks).Methods("GET")
	router.HandleFunc("/api/banks/resolve", bankHandler.ResolveAccount).Methods("GET")

	// Periodically drop stale pending transactions. Failures are logged and
	// ignored; the next tick tries again.
	go func() {
		ticker := time.NewTicker(cfg.PendingCleanupInterval)
		defer ticker.Stop()
		for range ticker.C {
			n, err := store.CleanupPending(context.Background(), time.Duration(cfg.PendingCleanupDays)*24*time.Hour)
			if err != nil {
				logger.Warn("pending cleanup failed", zap.Error(err))
				continue
			}
			if n > 0 {
				logger.Info("removed stale pending transactions", zap.Int64("count", n))
			}
		}
	}()

	// Start server. The write timeout leaves room for the 30s gateway calls
	// made while handling a callback.
	server := &http.Server{
		Addr:         "0.0.0.0:" + cfg.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 35 * time.Second,
	}
	logger.Info("server running", zap.String("port", cfg.Port))
	if err := server.ListenAndServe(); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
