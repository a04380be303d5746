package player

import "sync"

// Recorder is a test double for Player.  It records every call in order as
// "stop", "load:<path>", "play", "pause" or "close".
type Recorder struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]error
	state State
	path  string
}

// NewRecorder creates an idle recorder.
func NewRecorder() *Recorder {
	return &Recorder{fail: make(map[string]error)}
}

// FailOn makes the named operation ("stop", "load", "play", "pause")
// return err.  The call is still recorded.
func (r *Recorder) FailOn(op string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fail[op] = err
}

// Calls returns a copy of the call log.
func (r *Recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// Reset clears the call log.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}

func (r *Recorder) record(call, op, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
	if err := r.fail[op]; err != nil {
		return &PlaybackError{Op: op, Path: path, Err: err}
	}
	return nil
}

func (r *Recorder) Stop() error {
	if err := r.record("stop", "stop", ""); err != nil {
		return err
	}
	r.state, r.path = Idle, ""
	return nil
}

func (r *Recorder) Load(path string) error {
	if err := r.record("load:"+path, "load", path); err != nil {
		return err
	}
	r.state, r.path = Paused, path
	return nil
}

func (r *Recorder) Play() error {
	if err := r.record("play", "play", r.path); err != nil {
		return err
	}
	if r.path != "" {
		r.state = Playing
	}
	return nil
}

func (r *Recorder) Pause() error {
	if err := r.record("pause", "pause", r.path); err != nil {
		return err
	}
	if r.state == Playing {
		r.state = Paused
	}
	return nil
}

func (r *Recorder) State() State { return r.state }

func (r *Recorder) Path() string { return r.path }

func (r *Recorder) Close() error {
	return r.record("close", "close", "")
}
