package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"kiosk/internal/devices"
)

// CopyFunc copies a volume's contents; CopyTree in production.
type CopyFunc func(log logrus.FieldLogger, src, dst string) (Summary, error)

// Options configures a Watcher.
type Options struct {
	Destination string
	Settle      time.Duration
	Log         logrus.FieldLogger
	Sleep       func(ctx context.Context, d time.Duration) error
	Copy        CopyFunc
}

// Watcher copies USB volumes to the destination directory.
type Watcher struct {
	monitor devices.Monitor
	opts    Options
}

func NewWatcher(monitor devices.Monitor, opts Options) *Watcher {
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}
	if opts.Sleep == nil {
		opts.Sleep = sleep
	}
	if opts.Copy == nil {
		opts.Copy = CopyTree
	}
	return &Watcher{monitor: monitor, opts: opts}
}

// Run creates the destination, copies every USB volume that is already
// mounted, then copies each USB volume that arrives until ctx is done.
// Copy failures are logged and do not stop the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	if err := EnsureDestination(w.opts.Destination); err != nil {
		return err
	}

	w.opts.Log.Info("monitoring for USB devices")
	w.scan(ctx)

	events, err := w.monitor.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("subscribe to device events: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return errors.New("device event stream ended")
			}
			if err := w.handle(ctx, ev); err != nil {
				return nil
			}
		}
	}
}

// scan copies the volumes attached at startup.
func (w *Watcher) scan(ctx context.Context) {
	vols, err := w.monitor.List(ctx)
	if err != nil {
		w.opts.Log.WithError(err).Warn("listing attached volumes failed")
		return
	}
	for _, v := range vols {
		if !v.IsUSB() || v.MountPoint == "" {
			continue
		}
		w.opts.Log.WithField("volume", v.String()).Infof("found existing USB at %s", v.MountPoint)
		w.ingestVolume(v)
	}
}

// handle processes one event.  It only returns an error when ctx ends
// during the settle delay.
func (w *Watcher) handle(ctx context.Context, ev devices.Event) error {
	if ev.Action != devices.ActionAdd {
		return nil
	}
	// Backends that know the bus up front let non-USB devices skip the wait.
	if ev.Volume.Bus != "" && !ev.Volume.IsUSB() {
		return nil
	}
	if err := w.opts.Sleep(ctx, w.opts.Settle); err != nil {
		return err
	}
	v := w.monitor.Resolve(ev.Volume)
	if !v.IsUSB() {
		return nil
	}
	if v.MountPoint == "" {
		w.opts.Log.WithField("volume", v.String()).Warn("USB volume is not mounted, skipping")
		return nil
	}
	w.opts.Log.WithField("volume", v.String()).Infof("new USB detected at %s", v.MountPoint)
	w.ingestVolume(v)
	return nil
}

// ingestVolume is the single copy entry point for startup and arrivals.
func (w *Watcher) ingestVolume(v devices.Volume) {
	log := w.opts.Log.WithFields(logrus.Fields{"volume": v.String(), "source": v.MountPoint})
	start := time.Now()
	sum, err := w.opts.Copy(log, v.MountPoint, w.opts.Destination)
	if err != nil {
		log.WithError(err).Errorf("error copying files (%s copied before failure)", sum)
		return
	}
	log.WithField("took", time.Since(start).Round(time.Millisecond)).Infof("copy complete: %s", sum)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
