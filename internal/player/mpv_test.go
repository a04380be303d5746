package player

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeMPV answers IPC commands like mpv does, recording each command and
// interleaving an event line before every reply.
type fakeMPV struct {
	mu       sync.Mutex
	commands [][]any
	failOn   string
}

func (f *fakeMPV) serve(conn net.Conn) {
	defer conn.Close()
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		var req ipcRequest
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			return
		}
		f.mu.Lock()
		f.commands = append(f.commands, req.Command)
		fail := f.failOn != "" && fmt.Sprint(req.Command[0]) == f.failOn
		f.mu.Unlock()

		status := "success"
		if fail {
			status = "error running command"
		}
		fmt.Fprintf(conn, "{\"event\":\"property-change\",\"name\":\"pause\"}\n")
		fmt.Fprintf(conn, "{\"request_id\":%d,\"error\":%q,\"data\":null}\n", req.RequestID, status)
	}
}

func (f *fakeMPV) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.commands))
	for _, c := range f.commands {
		out = append(out, strings.TrimSuffix(fmt.Sprintln(c...), "\n"))
	}
	return out
}

func newTestMPV(t *testing.T, fake *fakeMPV) *MPV {
	t.Helper()
	client, server := net.Pipe()
	go fake.serve(server)
	log := logrus.New()
	log.SetOutput(io.Discard)
	m := newMPV(client, nil, log)
	t.Cleanup(func() { client.Close() })
	return m
}

func mediaFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "1.mp4")
	require.NoError(t, os.WriteFile(path, []byte("not really a video"), 0o644))
	return path
}

func TestMPV_LoadPlayPauseStop(t *testing.T) {
	fake := &fakeMPV{}
	m := newTestMPV(t, fake)
	path := mediaFile(t)

	assert.Equal(t, Idle, m.State())

	require.NoError(t, m.Stop())
	require.NoError(t, m.Load(path))
	assert.Equal(t, Paused, m.State())
	assert.Equal(t, path, m.Path())

	require.NoError(t, m.Play())
	assert.Equal(t, Playing, m.State())

	require.NoError(t, m.Pause())
	assert.Equal(t, Paused, m.State())

	require.NoError(t, m.Stop())
	assert.Equal(t, Idle, m.State())
	assert.Empty(t, m.Path())

	assert.Equal(t, []string{
		"stop",
		"set_property pause true",
		"loadfile " + path + " replace",
		"set_property pause false",
		"set_property pause true",
		"stop",
	}, fake.recorded())
}

func TestMPV_LoadMissingFile(t *testing.T) {
	fake := &fakeMPV{}
	m := newTestMPV(t, fake)

	err := m.Load("/nonexistent/video.mp4")
	var perr *PlaybackError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "load", perr.Op)
	assert.Equal(t, "/nonexistent/video.mp4", perr.Path)
	assert.True(t, errors.Is(err, os.ErrNotExist))
	assert.Empty(t, fake.recorded(), "no command is sent for a missing file")
	assert.Equal(t, Idle, m.State())
}

func TestMPV_CommandErrorIsPlaybackError(t *testing.T) {
	fake := &fakeMPV{failOn: "loadfile"}
	m := newTestMPV(t, fake)
	path := mediaFile(t)

	err := m.Load(path)
	var perr *PlaybackError
	require.ErrorAs(t, err, &perr)
	assert.Contains(t, err.Error(), "error running command")
	assert.Equal(t, Idle, m.State())
}

func TestMPV_PauseWhenIdleStaysIdle(t *testing.T) {
	m := newTestMPV(t, &fakeMPV{})
	require.NoError(t, m.Pause())
	assert.Equal(t, Idle, m.State())
}

func TestOpen_MissingBinary(t *testing.T) {
	_, err := Open(context.Background(), Options{
		Command: filepath.Join(t.TempDir(), "no-such-mpv"),
		Socket:  filepath.Join(t.TempDir(), "mpv.sock"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start")
}

func TestOpen_SocketNeverAppears(t *testing.T) {
	bin, err := exec.LookPath("true")
	if err != nil {
		t.Skip("true(1) not available")
	}
	log := logrus.New()
	log.SetOutput(io.Discard)

	start := time.Now()
	_, err = Open(context.Background(), Options{
		Command:      bin,
		Socket:       filepath.Join(t.TempDir(), "mpv.sock"),
		StartTimeout: 150 * time.Millisecond,
		Log:          log,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect to mpv ipc socket")
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestMpvArgs(t *testing.T) {
	args := mpvArgs(Options{Socket: "/tmp/s", Fullscreen: true, Args: []string{"--vo=gpu"}})
	assert.Equal(t, []string{
		"--idle=yes",
		"--force-window=yes",
		"--no-terminal",
		"--input-ipc-server=/tmp/s",
		"--fullscreen",
		"--vo=gpu",
	}, args)
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{Idle, "Idle"},
		{Playing, "Playing"},
		{Paused, "Paused"},
		{State(99), "Unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.state.String())
		})
	}
	assert.True(t, Playing.HasMedia())
	assert.True(t, Paused.HasMedia())
	assert.False(t, Idle.HasMedia())
}
