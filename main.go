package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"lib.hemtjan.st/client"
	"lib.hemtjan.st/device"
	"lib.hemtjan.st/transport/mqtt"

	"hemtjan.st/mbusmeter/internal/config"
	"hemtjan.st/mbusmeter/internal/logger"
	"hemtjan.st/mbusmeter/meter"
	"hemtjan.st/mbusmeter/publish"
)

func main() {
	mqFlags := mqtt.MustFlags(flag.String, flag.Bool)

	cfg, err := config.Load(os.Args[1:], flag.CommandLine)
	if errors.Is(err, pflag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		if errors.Is(err, config.ErrConfiguration) {
			os.Exit(2)
		}
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel, logger.IsService())
	if err != nil {
		fmt.Fprintf(os.Stderr, "creating logger: %v\n", err)
		os.Exit(2)
	}
	if cfg.File != "" {
		log.Info().Str("file", cfg.File).Msg("Loaded config")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var pubs publish.Multi

	if cfg.MQTT {
		mq, err := mqtt.New(ctx, mqFlags())
		if err != nil {
			log.Fatal().Err(err).Msg("Connecting to mqtt")
		}

		// Spawn a goroutine to detect MQTT errors and handle reconnect
		go func() {
			for {
				ok, err := mq.Start()
				if err != nil {
					log.Error().Err(err).Msg("MQTT error")
				}
				if !ok {
					log.Error().Msg("MQTT stopped")
					cancel()
					return
				}
				time.Sleep(3 * time.Second)
				log.Info().Msg("MQTT: Reconnecting")
			}
		}()

		pubs = append(pubs, publish.NewDevice(cfg.Topic, cfg.Name, func(info *device.Info) (publish.Updater, error) {
			d, err := client.NewDevice(info, mq)
			if err != nil {
				return nil, err
			}
			return func(feature, value string) error {
				return d.Feature(feature).Update(value)
			}, nil
		}))
	}

	if cfg.Listen != "" {
		hub := publish.NewHub(log)
		pubs = append(pubs, hub)

		srv := &http.Server{
			Addr:              cfg.Listen,
			Handler:           hub.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			log.Info().Str("listen", cfg.Listen).Msg("Starting HTTP server")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("HTTP server")
				cancel()
			}
		}()
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	pipeline, err := meter.NewPipeline(cfg.Key, pubs, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Creating pipeline")
	}

	open := meter.SerialOpener(cfg.Device, cfg.Baud)
	source := zerolog.Dict().Str("device", cfg.Device).Int("baud", cfg.Baud)
	if cfg.Replay != "" {
		open = meter.FileOpener(cfg.Replay)
		source = zerolog.Dict().Str("replay", cfg.Replay)
	}
	log.Info().Dict("source", source).Msg("Reading telegrams")

	opts := meter.DefaultOptions()
	opts.PollInterval = cfg.PollInterval
	if err := meter.Run(ctx, open, pipeline, opts); err != nil {
		log.Error().Err(err).Msg("Reader stopped")
	}
	log.Info().Msg("Shutting down")
}
