// Command kioskd drives the kiosk's video player from the GPIO buttons.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"kiosk/internal/config"
	"kiosk/internal/dispatch"
	"kiosk/internal/hal"
	"kiosk/internal/logging"
	"kiosk/internal/player"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Error("failed to load configuration")
		return 1
	}
	log, closer, err := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		logrus.WithError(err).Error("failed to set up logging")
		return 1
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d := dispatch.New(hal.Open(), cfg.Bindings(), dispatch.Options{
		Debounce:      cfg.Dispatch.Debounce,
		Idle:          cfg.Dispatch.Idle,
		EdgeTriggered: cfg.Dispatch.EdgeTriggered,
		Log:           logging.Component(log, "dispatch"),
	})
	open := func(ctx context.Context) (player.Player, error) {
		p, err := player.Open(ctx, player.Options{
			Command:      cfg.Player.Command,
			Args:         cfg.Player.Args,
			Socket:       cfg.Player.Socket,
			Fullscreen:   cfg.Player.Fullscreen,
			StartTimeout: cfg.Player.StartTimeout,
			Log:          logging.Component(log, "player"),
		})
		if err != nil {
			return nil, err
		}
		return p, nil
	}

	if err := d.Run(ctx, open); err != nil {
		var initErr *dispatch.InitError
		if errors.As(err, &initErr) {
			log.WithError(err).Error("initialisation error")
		} else {
			log.WithError(err).Error("dispatcher exited")
		}
		return 1
	}
	return 0
}
