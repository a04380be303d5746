// Command usbingestd copies the contents of USB sticks to local storage,
// both the ones present at startup and the ones plugged in later.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"kiosk/internal/config"
	"kiosk/internal/devices"
	"kiosk/internal/ingest"
	"kiosk/internal/logging"
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

	monitor, err := devices.New(devices.Options{
		Kind:       cfg.Ingest.Monitor,
		MountRoots: cfg.Ingest.MountRoots,
		Log:        logging.Component(log, "devices"),
	})
	if err != nil {
		log.WithError(err).Error("device monitor unavailable")
		return 1
	}

	w := ingest.NewWatcher(monitor, ingest.Options{
		Destination: cfg.Ingest.Destination,
		Settle:      cfg.Ingest.Settle,
		Log:         logging.Component(log, "ingest"),
	})
	if err := w.Run(ctx); err != nil {
		log.WithError(err).Error("ingest watcher exited")
		return 1
	}
	return 0
}
