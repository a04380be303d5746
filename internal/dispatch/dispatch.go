// Package dispatch turns button presses into player actions.  The
// dispatcher polls every bound GPIO input in table order; a pressed (Low)
// input fires its action and is followed by a debounce pause before the scan
// continues.  After each full pass it idles briefly to bound CPU usage.
//
// A button that stays pressed fires again on every pass unless the
// dispatcher is edge-triggered, in which case it fires once per press.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"kiosk/internal/action"
	"kiosk/internal/hal"
	"kiosk/internal/player"
)

// Sleeper pauses for d or until ctx is done, returning ctx.Err() in the
// latter case.
type Sleeper func(ctx context.Context, d time.Duration) error

// OpenFunc constructs the player once the inputs are configured.
type OpenFunc func(ctx context.Context) (player.Player, error)

// Options tunes the scan loop.  Zero values are valid; Sleep defaults to a
// real timer.
type Options struct {
	Debounce      time.Duration
	Idle          time.Duration
	EdgeTriggered bool
	Log           logrus.FieldLogger
	Sleep         Sleeper
}

// Dispatcher owns the player handle and the configured inputs for the
// lifetime of the main loop.  It is not safe for concurrent use.
type Dispatcher struct {
	inputs   hal.Inputs
	bindings []action.Binding
	opts     Options
	log      logrus.FieldLogger

	player player.Player
	held   map[int]bool // pin pressed on the previous pass, edge mode only
	closed bool
}

// New returns a dispatcher for the given binding table.  The table is copied
// and scanned in order.
func New(inputs hal.Inputs, bindings []action.Binding, opts Options) *Dispatcher {
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}
	if opts.Sleep == nil {
		opts.Sleep = Sleep
	}
	return &Dispatcher{
		inputs:   inputs,
		bindings: append([]action.Binding(nil), bindings...),
		opts:     opts,
		log:      opts.Log,
		held:     make(map[int]bool, len(bindings)),
	}
}

// Initialize configures every bound input as a pulled-up digital input.
func (d *Dispatcher) Initialize() error {
	for _, b := range d.bindings {
		if err := d.inputs.ConfigurePullUp(b.Pin); err != nil {
			d.log.WithError(err).WithField("pin", b.Pin).Error("GPIO setup error")
			return &InitError{Op: fmt.Sprintf("configure GPIO%d", b.Pin), Err: err}
		}
	}
	d.log.WithField("pins", len(d.bindings)).Info("GPIO initialized successfully")
	return nil
}

// OpenPlayer constructs the player handle the dispatcher will own.
func (d *Dispatcher) OpenPlayer(ctx context.Context, open OpenFunc) error {
	p, err := open(ctx)
	if err != nil {
		d.log.WithError(err).Error("media player setup error")
		return &InitError{Op: "open player", Err: err}
	}
	d.player = p
	d.log.Info("media player initialized successfully")
	return nil
}

// Dispatch performs a single action on the player.  Play always stops the
// current media, loads the new file and starts it, in that order; the first
// failing step ends the action.  Pause and Stop never load media.
func (d *Dispatcher) Dispatch(a action.Action) error {
	if d.player == nil {
		return errors.New("dispatch: player not open")
	}
	switch a.Kind {
	case action.KindPlay:
		if err := d.player.Stop(); err != nil {
			return playbackError("stop", a.Path, err)
		}
		if err := d.player.Load(a.Path); err != nil {
			return playbackError("load", a.Path, err)
		}
		if err := d.player.Play(); err != nil {
			return playbackError("play", a.Path, err)
		}
		d.playerLog().Info("playing video")
	case action.KindPause:
		if err := d.player.Pause(); err != nil {
			return playbackError("pause", "", err)
		}
		d.playerLog().Info("video paused")
	case action.KindStop:
		if err := d.player.Stop(); err != nil {
			return playbackError("stop", "", err)
		}
		d.playerLog().Info("video stopped")
	default:
		return fmt.Errorf("dispatch: unsupported action %s", a)
	}
	return nil
}

// playerLog tags an entry with the player's state after an action.
func (d *Dispatcher) playerLog() logrus.FieldLogger {
	st := d.player.State()
	log := d.log.WithField("state", st.String())
	if st.HasMedia() {
		log = log.WithField("path", d.player.Path())
	}
	return log
}

func playbackError(op, path string, err error) error {
	var perr *player.PlaybackError
	if errors.As(err, &perr) {
		return err
	}
	return &player.PlaybackError{Op: op, Path: path, Err: err}
}

// Scan reads every bound input once, in table order, dispatching the action
// of each pressed input followed by the debounce pause.  Playback errors are
// logged and do not stop the scan.  Scan only fails when ctx is done.
func (d *Dispatcher) Scan(ctx context.Context) error {
	for _, b := range d.bindings {
		level, err := d.inputs.Read(b.Pin)
		if err != nil {
			d.log.WithError(err).WithField("pin", b.Pin).Warn("GPIO read error")
			continue
		}
		pressed := hal.Pressed(level)
		if d.opts.EdgeTriggered {
			wasHeld := d.held[b.Pin]
			d.held[b.Pin] = pressed
			if wasHeld {
				continue
			}
		}
		if !pressed {
			continue
		}

		log := d.log.WithFields(logrus.Fields{"pin": b.Pin, "button": b.Name, "action": b.Action.String()})
		log.Debug("button pressed")
		if err := d.Dispatch(b.Action); err != nil {
			log.WithError(err).Error("playback error")
		}
		if err := d.opts.Sleep(ctx, d.opts.Debounce); err != nil {
			return err
		}
	}
	return nil
}

// Run initialises the inputs and the player and then scans until ctx is
// cancelled.  Cleanup runs on every exit path, including setup failures and
// panics.  A cancelled context is a normal shutdown and yields nil; setup
// failures are returned as *InitError.
func (d *Dispatcher) Run(ctx context.Context, open OpenFunc) error {
	defer d.Close()

	if err := d.Initialize(); err != nil {
		return err
	}
	if err := d.OpenPlayer(ctx, open); err != nil {
		return err
	}

	d.log.Info("starting main loop")
	for {
		if err := d.Scan(ctx); err != nil {
			break
		}
		if err := d.opts.Sleep(ctx, d.opts.Idle); err != nil {
			break
		}
	}
	d.log.Info("shutting down")
	return nil
}

// Close stops the player and releases every configured input.  It is
// idempotent and attempts every step even if an earlier one fails.
func (d *Dispatcher) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true

	var errs []error
	if d.player != nil {
		if err := d.player.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := d.inputs.ReleaseAll(); err != nil {
		errs = append(errs, fmt.Errorf("release inputs: %w", err))
	}
	if d.player != nil {
		if err := d.player.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close player: %w", err))
		}
	}
	err := errors.Join(errs...)
	if err != nil {
		d.log.WithError(err).Warn("cleanup incomplete")
	} else {
		d.log.Info("cleanup complete")
	}
	return err
}

// Sleep is the default Sleeper.
func Sleep(ctx context.Context, d time.Duration) error {
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
