package player

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"time"

	"github.com/sirupsen/logrus"
)

// commandTimeout bounds a single IPC round trip.
const commandTimeout = 3 * time.Second

// Options describes how to launch mpv.
type Options struct {
	Command      string   // mpv binary, looked up on $PATH
	Args         []string // extra arguments
	Socket       string   // IPC socket path
	Fullscreen   bool
	StartTimeout time.Duration
	Log          logrus.FieldLogger
}

// MPV drives an mpv process through its JSON IPC socket.  mpv is started
// idle with a window so that the first Load shows video immediately.
type MPV struct {
	cmd    *exec.Cmd
	conn   net.Conn
	reader *bufio.Reader
	nextID int64
	state  State
	path   string
	log    logrus.FieldLogger
}

// Open starts mpv and connects to its IPC socket.  Any failure here is
// fatal for the dispatcher.
func Open(ctx context.Context, opts Options) (*MPV, error) {
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}
	if opts.StartTimeout <= 0 {
		opts.StartTimeout = 5 * time.Second
	}
	// A socket left behind by a previous run would accept no connections.
	if err := os.Remove(opts.Socket); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("remove stale mpv socket: %w", err)
	}

	cmd := exec.Command(opts.Command, mpvArgs(opts)...)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", opts.Command, err)
	}

	conn, err := dialSocket(ctx, opts.Socket, opts.StartTimeout)
	if err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return nil, err
	}
	opts.Log.WithField("pid", cmd.Process.Pid).Info("media player started")
	return newMPV(conn, cmd, opts.Log), nil
}

func mpvArgs(opts Options) []string {
	args := []string{
		"--idle=yes",
		"--force-window=yes",
		"--no-terminal",
		"--input-ipc-server=" + opts.Socket,
	}
	if opts.Fullscreen {
		args = append(args, "--fullscreen")
	}
	return append(args, opts.Args...)
}

// dialSocket waits for mpv to create its IPC socket.
func dialSocket(ctx context.Context, path string, timeout time.Duration) (net.Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var d net.Dialer
	for {
		conn, err := d.DialContext(ctx, "unix", path)
		if err == nil {
			return conn, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("connect to mpv ipc socket %s: %w", path, err)
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func newMPV(conn net.Conn, cmd *exec.Cmd, log logrus.FieldLogger) *MPV {
	return &MPV{
		cmd:    cmd,
		conn:   conn,
		reader: bufio.NewReader(conn),
		state:  Idle,
		log:    log,
	}
}

type ipcRequest struct {
	Command   []any `json:"command"`
	RequestID int64 `json:"request_id"`
}

type ipcReply struct {
	Error     string `json:"error"`
	RequestID int64  `json:"request_id"`
	Event     string `json:"event"`
}

// command sends one IPC command and waits for its reply.  Event lines that
// arrive in between are logged and skipped.
func (m *MPV) command(args ...any) error {
	m.nextID++
	id := m.nextID
	payload, err := json.Marshal(ipcRequest{Command: args, RequestID: id})
	if err != nil {
		return err
	}
	if err := m.conn.SetDeadline(time.Now().Add(commandTimeout)); err != nil {
		return err
	}
	if _, err := m.conn.Write(append(payload, '\n')); err != nil {
		return fmt.Errorf("write ipc command: %w", err)
	}
	for {
		line, err := m.reader.ReadBytes('\n')
		if err != nil {
			return fmt.Errorf("read ipc reply: %w", err)
		}
		var reply ipcReply
		if err := json.Unmarshal(line, &reply); err != nil {
			m.log.WithError(err).Debug("ignoring malformed ipc line")
			continue
		}
		if reply.Event != "" {
			m.log.WithField("event", reply.Event).Debug("mpv event")
			continue
		}
		if reply.RequestID != id {
			continue
		}
		if reply.Error != "success" {
			return errors.New(reply.Error)
		}
		return nil
	}
}

// Stop unloads the current media.
func (m *MPV) Stop() error {
	if err := m.command("stop"); err != nil {
		return &PlaybackError{Op: "stop", Err: err}
	}
	m.state = Idle
	m.path = ""
	return nil
}

// Load replaces the current media with path, leaving it paused until Play.
func (m *MPV) Load(path string) error {
	if _, err := os.Stat(path); err != nil {
		return &PlaybackError{Op: "load", Path: path, Err: err}
	}
	if err := m.command("set_property", "pause", true); err != nil {
		return &PlaybackError{Op: "load", Path: path, Err: err}
	}
	if err := m.command("loadfile", path, "replace"); err != nil {
		return &PlaybackError{Op: "load", Path: path, Err: err}
	}
	m.state = Paused
	m.path = path
	return nil
}

// Play resumes the loaded media.
func (m *MPV) Play() error {
	if err := m.command("set_property", "pause", false); err != nil {
		return &PlaybackError{Op: "play", Path: m.path, Err: err}
	}
	if m.path != "" {
		m.state = Playing
	}
	return nil
}

// Pause pauses playback.  Pausing an idle or already paused player is a
// no-op on the mpv side.
func (m *MPV) Pause() error {
	if err := m.command("set_property", "pause", true); err != nil {
		return &PlaybackError{Op: "pause", Path: m.path, Err: err}
	}
	if m.state == Playing {
		m.state = Paused
	}
	return nil
}

func (m *MPV) State() State { return m.state }

func (m *MPV) Path() string { return m.path }

// Close asks mpv to quit and reaps the process, killing it if it does not
// exit promptly.
func (m *MPV) Close() error {
	if err := m.command("quit"); err != nil {
		m.log.WithError(err).Debug("mpv quit command failed")
	}
	err := m.conn.Close()
	if m.cmd == nil || m.cmd.Process == nil {
		return err
	}
	done := make(chan error, 1)
	go func() { done <- m.cmd.Wait() }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		_ = m.cmd.Process.Kill()
		<-done
	}
	return err
}
