package main

import (
	"github.com/ZINKUNO/MyIPWhispererBot/internal/application/enforcement"
	"github.com/ZINKUNO/MyIPWhispererBot/internal/bootstrap"
	"github.com/ZINKUNO/MyIPWhispererBot/internal/config"
	"github.com/ZINKUNO/MyIPWhispererBot/internal/infrastructure/messaging/kafka"
	"github.com/ZINKUNO/MyIPWhispererBot/internal/infrastructure/monitoring/logging"
	"github.com/ZINKUNO/MyIPWhispererBot/internal/infrastructure/notification"
	httpapi "github.com/ZINKUNO/MyIPWhispererBot/internal/interfaces/http"
	"github.com/ZINKUNO/MyIPWhispererBot/internal/interfaces/http/handlers"
)

// newAlertConsumer subscribes the webhook relay to the alert topic. It
// returns nil when alerts do not go through Kafka or nothing would receive
// them.
func newAlertConsumer(cfg *config.Config, webhook enforcement.Notifier, logger logging.Logger) (*kafka.Consumer, error) {
	if !cfg.Alerts.KafkaEnabled {
		return nil, nil
	}
	if webhook == nil {
		logger.Warn("alerts.kafka_enabled is set without alerts.webhook_url, alerts stay on the topic")
		return nil, nil
	}

	consumer, err := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers: cfg.Kafka.Brokers,
		GroupID: cfg.Kafka.GroupID,
		Topics:  []string{cfg.Alerts.KafkaTopic},
		RetryConfig: kafka.RetryConfig{
			MaxRetries:      cfg.Kafka.MaxRetries,
			DeadLetterTopic: cfg.Kafka.DeadLetterTopic,
		},
	}, logger.Named("relay"))
	if err != nil {
		return nil, err
	}
	consumer.Subscribe(cfg.Alerts.KafkaTopic, notification.NewAlertRelay(webhook, logger).Handle)
	return consumer, nil
}

// newHealthServer exposes probes and, when enabled, metrics.
func newHealthServer(infra *bootstrap.Infrastructure, port int) *httpapi.Server {
	checks := infra.HealthChecks()
	checkers := make([]handlers.HealthChecker, len(checks))
	for i, c := range checks {
		checkers[i] = c
	}

	rc := httpapi.RouterConfig{
		HealthHandler: handlers.NewHealthHandler(version, checkers...),
		Logger:        infra.Logger,
	}
	if infra.Config.Metrics.Enabled {
		rc.MetricsHandler = infra.Collector.Handler()
	}
	return httpapi.NewServer(httpapi.ServerConfig{Port: port}, httpapi.NewRouter(rc), infra.Logger)
}
