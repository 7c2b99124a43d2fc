package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dan9191/infotelecom-auth/internal/config"
	"github.com/Dan9191/infotelecom-auth/internal/handler"
	"github.com/Dan9191/infotelecom-auth/internal/notify"
	"github.com/Dan9191/infotelecom-auth/internal/repository"
	"github.com/Dan9191/infotelecom-auth/internal/scheduler"
	"github.com/Dan9191/infotelecom-auth/internal/service"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	logLevel, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Initialize database
	db, err := sql.Open("postgres", cfg.DBConn)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		logger.Fatalf("Failed to ping database: %v", err)
	}

	repo := repository.NewRepository(db)
	if cfg.AutoMigrate {
		if err := repo.Migrate(context.Background()); err != nil {
			logger.Fatalf("Failed to migrate database: %v", err)
		}
	}

	// Notifications
	var notifiers []notify.Notifier
	var sender *notify.Sender
	if cfg.SMTPEnabled() {
		sender = notify.NewSender(cfg, logger)
		notifiers = append(notifiers, sender)
	}
	if cfg.AMQPURL != "" {
		pub, err := notify.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			logger.Fatalf("Failed to connect to broker: %v", err)
		}
		defer pub.Close()
		notifiers = append(notifiers, pub)
	}
	dispatcher := notify.NewDispatcher(logger, cfg.NotifyQueueSize, notifiers...)

	// Daily digest
	var mailer scheduler.DigestMailer
	if sender != nil {
		mailer = sender
	}
	sched := scheduler.NewScheduler(repo, mailer, cfg.AdminEmail, logger)
	if err := sched.Start(cfg.DigestSchedule); err != nil {
		logger.Fatalf("Failed to start scheduler: %v", err)
	}

	// Initialize layers
	hasher, err := service.NewPasswordHasher(cfg.PasswordStorage)
	if err != nil {
		logger.Fatalf("Failed to configure password storage: %v", err)
	}
	svc := service.NewService(repo, logger, hasher, dispatcher)
	h := handler.NewHandler(svc, logger)

	// Start server
	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      h.Routes(cfg.CORSOrigin),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("Starting server on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("Server shutdown failed: %v", err)
	}
	sched.Stop()
	dispatcher.Close()
}
