package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/edusphere-api/internal/config"
	"github.com/edusphere-api/internal/infrastructure/awscfg"
	"github.com/edusphere-api/internal/infrastructure/dynamo"
	jwtinfra "github.com/edusphere-api/internal/infrastructure/jwt"
	s3infra "github.com/edusphere-api/internal/infrastructure/s3"
	"github.com/edusphere-api/internal/infrastructure/smtp"
	"github.com/edusphere-api/internal/infrastructure/sns"
	transporthttp "github.com/edusphere-api/internal/transport/http"
	"github.com/joho/godotenv"
)

func main() {
	configPath := flag.String("config", "", "optional YAML config file; environment variables override it")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, reading from environment")
	}

	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	slog.SetDefault(newLogger(cfg))

	awsCfg, err := awscfg.Load(context.Background(), cfg)
	if err != nil {
		slog.Error("aws config", "err", err)
		os.Exit(1)
	}
	endpoint := awscfg.Endpoint(cfg)

	// Bootstrap DynamoDB tables (creates them if they don't exist).
	dynamoClient := dynamo.NewClient(awsCfg, endpoint)
	dynamo.Bootstrap(context.Background(), dynamoClient, cfg.DynamoTables)

	jwtProvider, err := jwtinfra.NewProvider(cfg.JWTSecret, cfg.JWTExpiry)
	if err != nil {
		slog.Error("jwt provider", "err", err)
		os.Exit(1)
	}

	s3Store := s3infra.NewStore(awsCfg, endpoint, cfg.S3BucketName)

	// SNS audit fan-out (optional).
	var publisher sns.Publisher
	if cfg.AuditTopicARN != "" {
		p, err := sns.NewPublisher(awsCfg, endpoint, cfg.AuditTopicARN)
		if err != nil {
			slog.Warn("audit publisher not available", "err", err)
		} else {
			publisher = p
		}
	}

	tables := cfg.DynamoTables
	deps := &transporthttp.Deps{
		UserRepo:       dynamo.NewUserRepo(dynamoClient, tables.Users, tables.UserEmails),
		OTPRepo:        dynamo.NewOTPRepo(dynamoClient, tables.OTPs, tables.Users),
		ExamRepo:       dynamo.NewExamRepo(dynamoClient, tables.Exams),
		AttemptRepo:    dynamo.NewAttemptRepo(dynamoClient, tables.Attempts),
		AuditRepo:      dynamo.NewAuditRepo(dynamoClient, tables.AuditLogs),
		MaterialRepo:   dynamo.NewMaterialRepo(dynamoClient, tables.Materials),
		S3Store:        s3Store,
		Mailer:         smtp.NewMailer(cfg),
		AuditPublisher: publisher,
		JWTProvider:    jwtProvider,
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.AppPort),
		Handler:           transporthttp.NewRouter(cfg, deps),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", cfg.AppPort, "env", cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("forced shutdown", "err", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

func newLogger(cfg *config.Config) *slog.Logger {
	if cfg.IsProduction() {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}
