/**
 * @description
 * This is the main entry point for the banking-service API. It is responsible for
 * initializing configuration, the database pool, Redis (rate limiting and the
 * bank details cache), the RabbitMQ producer used for loan events and queued
 * email, the application services and the HTTP server.
 *
 * @dependencies
 * - github.com/joho/godotenv: For loading .env files during local development.
 * - github.com/jackc/pgx/v5: PostgreSQL driver.
 * - github.com/redis/go-redis/v9: rate limiting and caching.
 * - internal/api, internal/app, internal/config, internal/store: Internal packages for the service.
 * - pkg/rabbitmq, pkg/mailer, pkg/ratelimit.
 */

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/oakline/banking-service/internal/api"
	"github.com/oakline/banking-service/internal/app"
	"github.com/oakline/banking-service/internal/config"
	"github.com/oakline/banking-service/internal/store"
	"github.com/oakline/banking-service/pkg/mailer"
	"github.com/oakline/banking-service/pkg/rabbitmq"
	"github.com/oakline/banking-service/pkg/ratelimit"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Load .env file for local development.
	if err := godotenv.Load(); err != nil {
		log.Println("level=info component=bootstrap msg=\"no .env file found; using environment variables\"")
	}

	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}
	if cfg.JWTSecret == "" {
		log.Fatalf("level=fatal component=bootstrap msg=\"jwt secret must be configured\" env=JWT_SECRET")
	}
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		log.Fatalf("level=fatal component=bootstrap msg=\"database url must be configured\" env=DATABASE_URL")
	}

	log.Printf("level=info component=bootstrap msg=\"starting banking-service api\" port=%s", cfg.ServerPort)

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database url parse failed\" err=%v", err)
	}
	poolConfig.MaxConns = 50
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute
	// Disable prepared statement caching to stay compatible with transaction poolers.
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database connection failed\" err=%v", err)
	}
	defer dbpool.Close()
	log.Println("level=info component=bootstrap msg=\"database connected\"")

	// RabbitMQ is optional at boot; without it loan events and email are logged and dropped.
	var publisher rabbitmq.Publisher = &rabbitmq.EventProducerFallback{}
	if strings.TrimSpace(cfg.RabbitMQURL) == "" {
		log.Println("level=warn component=bootstrap msg=\"rabbitmq url missing; using fallback producer\" env=RABBITMQ_URL")
	} else if producer, err := rabbitmq.NewEventProducer(cfg.RabbitMQURL); err != nil {
		log.Printf("level=warn component=bootstrap msg=\"rabbitmq producer unavailable; using fallback\" err=%v", err)
	} else {
		defer producer.Close()
		publisher = producer
		log.Println("level=info component=bootstrap msg=\"rabbitmq producer connected\"")
	}

	redisClient := connectRedis(cfg.RedisURL)
	if redisClient != nil {
		defer redisClient.Close()
	}

	var limiter ratelimit.Limiter = ratelimit.Noop{}
	var cache redis.UniversalClient
	if redisClient != nil {
		limiter = ratelimit.NewRedisLimiter(redisClient, cfg.RedisRateLimitPrefix)
		cache = redisClient
	}

	repository := store.NewPostgresRepository(dbpool)
	sender := mailer.NewQueueSender(publisher, cfg.EmailExchange)
	notifications := app.NewNotificationService(repository, sender)

	handlers := api.NewHandlers(api.Services{
		Loans:         app.NewLoanService(repository, notifications, publisher),
		Accounts:      app.NewAccountService(repository, notifications),
		Notifications: notifications,
		Verification: app.NewVerificationService(
			repository,
			notifications,
			limiter,
			time.Duration(cfg.VerificationCodeTTLMinutes)*time.Minute,
			cfg.VerificationRateLimitPerHour,
			cfg.VerificationMaxConfirmAttempt,
		),
		Enrollment:  app.NewEnrollmentService(repository, notifications),
		Zelle:       app.NewZelleService(repository, notifications),
		MFA:         app.NewMFAService(repository, notifications, cfg.MFAIssuer),
		Roles:       app.NewRoleService(repository),
		BankDetails: app.NewBankDetailsService(repository, cache, time.Duration(cfg.BankDetailsCacheTTLMinutes)*time.Minute),
	})

	router := api.NewRouter(handlers, api.RouterConfig{
		Auth: api.AuthMiddlewareConfig{
			Secret:           cfg.JWTSecret,
			ExpectedIssuer:   cfg.JWTIssuer,
			ExpectedAudience: cfg.JWTAudience,
		},
		AllowedOrigins: cfg.AllowedOrigins(),
	})

	serverAddr := fmt.Sprintf(":%s", cfg.ServerPort)
	server := &http.Server{
		Addr:              serverAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("level=info component=http msg=\"server listening\" addr=%s", serverAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("level=fatal component=http msg=\"server stopped unexpectedly\" err=%v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("level=info component=http msg=\"shutdown started\"")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("level=error component=http msg=\"shutdown failed\" err=%v", err)
	}

	log.Println("level=info component=http msg=\"shutdown complete\"")
}

// connectRedis returns nil when Redis is not configured or unreachable; the
// service then runs without rate limiting or caching.
func connectRedis(redisURL string) *redis.Client {
	if strings.TrimSpace(redisURL) == "" {
		log.Println("level=warn component=bootstrap msg=\"redis url missing; rate limiting and caching disabled\" env=REDIS_URL")
		return nil
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Printf("level=warn component=bootstrap msg=\"redis url parse failed; rate limiting and caching disabled\" err=%v", err)
		return nil
	}

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Printf("level=warn component=bootstrap msg=\"redis ping failed; rate limiting and caching disabled\" err=%v", err)
		client.Close()
		return nil
	}
	log.Println("level=info component=bootstrap msg=\"redis connected\"")
	return client
}
