/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/quickcart/apiserver/config"
	"github.com/quickcart/apiserver/internal/mq"
	"github.com/quickcart/apiserver/internal/services"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// notifierCmd consumes order events published by the API server.
var notifierCmd = &cobra.Command{
	Use:   "notifier",
	Short: "Consume order.created events and log them",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		log := newLogger(cfg)

		if cfg.MQ.Backend == config.BackendNone || cfg.MQ.Backend == "" {
			return errors.New("MQ_BACKEND must be rabbitmq or pubsub")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		broker, err := mq.Open(ctx, cfg.MQ)
		if err != nil {
			return fmt.Errorf("open mq: %w", err)
		}
		defer func() {
			_ = broker.Close()
		}()

		log.WithField("channel", cfg.MQ.OrdersChannel).Info("waiting for order events")
		err = broker.Subscribe(ctx, cfg.MQ.OrdersChannel, orderEventHandler(log))
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(notifierCmd)
}

func orderEventHandler(log logrus.FieldLogger) mq.Handler {
	return func(ctx context.Context, msg mq.Message) error {
		var event services.OrderEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			log.WithError(err).WithField("message_id", msg.ID).Warn("dropping malformed order event")
			return nil
		}
		if event.Type != services.EventOrderCreated {
			return nil
		}
		log.WithFields(logrus.Fields{
			"order_id":   event.OrderID,
			"user_id":    event.UserID,
			"item_count": event.ItemCount,
			"total":      event.TotalAmount.StringFixed(2),
			"created_at": event.CreatedAt,
		}).Info("order placed")
		return nil
	}
}
