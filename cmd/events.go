/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/feedpress/apiserver/config"
	"github.com/feedpress/apiserver/internal/mq"
	"github.com/feedpress/apiserver/internal/services"
	"github.com/feedpress/apiserver/types"
	"github.com/spf13/cobra"
)

var eventsChannel string

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect post events on the message broker",
}

var eventsTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Log post events as they are published",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		logger := newLogger(cfg)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		queue, err := mq.Open(ctx, cfg.Queue)
		if err != nil {
			return fmt.Errorf("open mq: %w", err)
		}
		if queue == nil {
			return errors.New("MQ_BACKEND is not configured")
		}
		defer queue.Close()

		logger.Info("tailing events", slog.String("channel", eventsChannel))
		err = queue.Subscribe(ctx, eventsChannel, logEvent(logger))
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsTailCmd.Flags().StringVar(&eventsChannel, "channel", services.PostEventsChannel, "channel to subscribe to")
	eventsCmd.AddCommand(eventsTailCmd)
}

// logEvent acks every message; undecodable payloads are logged raw.
func logEvent(logger *slog.Logger) mq.Handler {
	return func(ctx context.Context, msg mq.Message) error {
		var event types.PostEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			logger.Warn("undecodable event", slog.String("id", msg.ID), slog.String("data", string(msg.Data)))
			return nil
		}
		logger.Info("post event",
			slog.String("id", msg.ID),
			slog.String("action", event.Action),
			slog.String("postId", event.PostID),
			slog.String("creatorId", event.CreatorID),
			slog.Time("at", event.At),
		)
		return nil
	}
}
