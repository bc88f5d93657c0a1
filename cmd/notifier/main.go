/**
 * @description
 * This is the main entry point for the notifier. It consumes queued emails from
 * RabbitMQ and delivers them through the email provider's HTTP API.
 *
 * @notes
 * - Malformed messages and permanent provider rejections are acknowledged and
 *   logged; transport errors and 5xx responses are requeued.
 */

package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/oakline/banking-service/internal/app"
	"github.com/oakline/banking-service/internal/config"
	"github.com/oakline/banking-service/pkg/emailclient"
	"github.com/oakline/banking-service/pkg/mailer"
	"github.com/oakline/banking-service/pkg/rabbitmq"
)

const emailPrefetch = 10

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("level=info component=bootstrap msg=\"no .env file found; using environment variables\"")
	}

	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}
	if strings.TrimSpace(cfg.RabbitMQURL) == "" {
		log.Fatalf("level=fatal component=bootstrap msg=\"rabbitmq url must be configured\" env=RABBITMQ_URL")
	}
	if strings.TrimSpace(cfg.EmailAPIBaseURL) == "" {
		log.Println("level=warn component=bootstrap msg=\"email provider not configured; queued emails will be dropped\" env=EMAIL_API_BASE_URL")
	}

	consumer, err := rabbitmq.NewConsumer(cfg.RabbitMQURL)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"rabbitmq consumer init failed\" err=%v", err)
	}
	defer consumer.Close()

	delivery := app.NewEmailDelivery(emailclient.NewClient(cfg.EmailAPIBaseURL, cfg.EmailAPIKey), cfg.EmailFrom)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Printf("level=info component=notifier msg=\"consuming\" exchange=%s queue=%s", cfg.EmailExchange, cfg.EmailQueue)
	bindings := map[string]rabbitmq.Handler{
		mailer.RoutingKeySend: delivery.HandleMessage,
	}
	if err := consumer.ConsumeWithBindings(ctx, cfg.EmailExchange, cfg.EmailQueue, emailPrefetch, bindings); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("level=fatal component=notifier msg=\"consumer stopped\" err=%v", err)
	}
	log.Println("level=info component=notifier msg=\"shutdown complete\"")
}
