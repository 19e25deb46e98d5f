package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"loyalty-ledger/internal/middleware"
	"loyalty-ledger/internal/notifier"
	"loyalty-ledger/internal/repository"
	"loyalty-ledger/internal/service"
	"loyalty-ledger/pkg/config"
	"loyalty-ledger/pkg/database"
)

func main() {
	// Load configuration from .env and the environment
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if len(os.Args) > 1 && os.Args[1] == "token" {
		if err := issueToken(cfg.JWTSecret, os.Args[2:]); err != nil {
			log.Fatalf("Failed to issue token: %v", err)
		}
		return
	}

	defaults, err := config.LoadSettings(cfg.SettingsFile)
	if err != nil {
		log.Fatalf("Failed to load default settings: %v", err)
	}

	// Initialize repositories
	var (
		ledgerRepo repository.LedgerRepository
		smsLogRepo repository.SmsLogRepository
	)
	switch cfg.Store {
	case "memory":
		ledgerRepo = repository.NewMemoryLedgerRepository()
		smsLogRepo = repository.NewMemorySmsLogRepository()
		log.Println("Using in-memory store, data is lost on restart")
	default:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		mongoDB, err := database.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			cancel()
			log.Fatalf("Failed to connect to MongoDB: %v", err)
		}
		cancel()
		defer func() {
			if err := mongoDB.Disconnect(context.Background()); err != nil {
				log.Printf("Error disconnecting from MongoDB: %v", err)
			}
		}()

		log.Println("✅ Connected to MongoDB successfully")
		ledgerRepo = repository.NewLedgerRepository(mongoDB.Database)
		smsLogRepo = repository.NewSmsLogRepository(mongoDB.Database)
	}

	var sms notifier.Notifier = notifier.LogNotifier{}
	if cfg.Twilio.AccountSID != "" {
		sms = notifier.NewTwilioNotifier(cfg.Twilio.BaseURL, cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.From)
		log.Printf("Sending notifications through Twilio from %s", cfg.Twilio.From)
	}

	svc := service.NewLedgerService(ledgerRepo, smsLogRepo, sms,
		service.WithDefaultSettings(defaults),
		service.WithNotifyTimeout(cfg.NotifyTimeout),
	)

	// Setup Gin router
	router := setupRouter(svc, cfg.JWTSecret)

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("🚀 Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
	if err := svc.Drain(ctx); err != nil {
		log.Printf("Pending notifications abandoned: %v", err)
	}

	log.Println("Server exited")
}

// issueToken prints a bearer token for a business operator:
//
//	server token -business shop-1 -role admin -ttl 720h
func issueToken(secret string, args []string) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	businessID := fs.String("business", "", "business id the token is scoped to")
	role := fs.String("role", middleware.RoleCashier, "admin or cashier")
	ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *businessID == "" {
		return fmt.Errorf("-business is required")
	}
	if *role != middleware.RoleAdmin && *role != middleware.RoleCashier {
		return fmt.Errorf("unknown role %q", *role)
	}

	token, err := middleware.IssueToken(secret, *businessID, *role, *ttl)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
