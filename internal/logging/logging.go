// Package logging builds the process logger.  Every line goes to stderr
// (picked up by journald on the kiosk) and, when an event file is
// configured, is also appended to that file with a timestamp.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Options controls logger construction.
type Options struct {
	Level  string    // logrus level name; empty means info
	File   string    // optional append-only event file
	Output io.Writer // defaults to os.Stderr
}

// New returns a configured logger and a Closer releasing the event file.
// Close is safe to call when no file was opened.
func New(opts Options) (*logrus.Logger, io.Closer, error) {
	level := logrus.InfoLevel
	if opts.Level != "" {
		lvl, err := logrus.ParseLevel(opts.Level)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
		level = lvl
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		ef, err := openEventFile(opts.File)
		if err != nil {
			return nil, nil, err
		}
		out = io.MultiWriter(out, ef)
		closer = ef
	}

	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})
	return logger, closer, nil
}

// eventFile appends to a file kept open for the process lifetime.  Writes
// are serialised because the stderr side of the MultiWriter is not.
type eventFile struct {
	mu sync.Mutex
	f  *os.File
}

func openEventFile(path string) (*eventFile, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return &eventFile{f: f}, nil
}

func (e *eventFile) Write(p []byte) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	n, err := e.f.Write(p)
	if err != nil {
		// A full disk must not take the kiosk down; report and carry on.
		fmt.Fprintf(os.Stderr, "log write error: %v\n", err)
		return len(p), nil
	}
	return n, nil
}

func (e *eventFile) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.f.Close()
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Component returns a child logger tagged with the component name.
func Component(log logrus.FieldLogger, name string) logrus.FieldLogger {
	return log.WithField("component", name)
}
