// Command donation-watch connects to the GiveBit event stream and
// prints donation session events as they arrive. With -create it also
// opens a test donation session and follows it to a terminal status.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/zidanaetrna/givebit-sdk/client"
	"github.com/zidanaetrna/givebit-sdk/config"
	"github.com/zidanaetrna/givebit-sdk/session"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	env := flag.String("env", "", "Environment: mainnet or testnet (takes precedence over -config)")
	apiKey := flag.String("api-key", "", "GiveBit API key (takes precedence over -config)")
	projectID := flag.String("project", "", "GiveBit project id (takes precedence over -config)")
	create := flag.Bool("create", false, "Create a test donation session")
	amount := flag.String("amount", "0.01", "Donation amount (with -create)")
	currency := flag.String("currency", "ETH", "Donation currency (with -create)")
	recipient := flag.String("recipient", "", "Recipient address (with -create)")
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	cfg := &config.Config{}
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to load config")
		}
		cfg = loaded
	}
	if *env != "" {
		cfg.Environment = *env
	}
	if *apiKey != "" {
		cfg.APIKey = *apiKey
	}
	if *projectID != "" {
		cfg.ProjectID = *projectID
	}

	notifier, err := client.New(*cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build notifier")
	}

	done := make(chan struct{})
	var doneOnce sync.Once
	for _, kind := range session.EventTypes() {
		notifier.Subscribe(kind, func(ev session.Event) {
			e := logger.Info().Str("event", string(ev.Type))
			if ev.Session != nil {
				e = e.Str("session", ev.Session.ID).
					Str("status", ev.Session.Status.String()).
					Str("amount", ev.Session.Amount).
					Int("confirmations", ev.Session.Confirmations)
			}
			if ev.Err != "" {
				e = e.Str("error", ev.Err)
			}
			e.Msg("event")
			if ev.Session != nil && ev.Session.Status.IsTerminal() {
				doneOnce.Do(func() { close(done) })
			}
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	notifier.Connect(ctx)
	defer notifier.Disconnect()

	if *create {
		s, err := notifier.CreateDonationSession(ctx, client.CreateSessionRequest{
			Amount:    *amount,
			Currency:  *currency,
			Recipient: *recipient,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create session")
		}
		logger.Info().Str("session", s.ID).Msg("session created, waiting for terminal status")

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-done:
		case <-sigCh:
			logger.Info().Msg("interrupted")
		}
		return
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info().Msg("shutting down")
}
