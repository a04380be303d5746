// Package player controls the kiosk's video surface.  The dispatcher only
// needs four verbs (stop, load, play, pause); MPV implements them over mpv's
// JSON IPC socket and Recorder is a test double.
package player

import (
	"fmt"
)

// Player is the capability set the button dispatcher drives.  A Player is
// owned by a single goroutine and is not safe for concurrent use.
type Player interface {
	Stop() error
	Load(path string) error
	Play() error
	Pause() error
	State() State
	// Path returns the loaded media path, or "" when idle.
	Path() string
	Close() error
}

// PlaybackError is a recoverable failure of one player operation.  The
// player is left in whatever state the failed call produced.
type PlaybackError struct {
	Op   string
	Path string
	Err  error
}

func (e *PlaybackError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("playback %s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("playback %s: %v", e.Op, e.Err)
}

func (e *PlaybackError) Unwrap() error { return e.Err }
