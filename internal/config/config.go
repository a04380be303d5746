// Package config loads the kiosk configuration.  Settings are read from TOML
// files (system-wide first, then the working directory, then $KIOSK_CONFIG)
// and finally overridden by KIOSK_* environment variables.  Anything left
// unset keeps the stock defaults, so a bare Pi with no configuration file
// behaves like the factory kiosk.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"kiosk/internal/action"
)

// systemConfigPath is the default location for the persisted configuration.
const systemConfigPath = "/etc/kiosk/config.toml"

// envPrefix prefixes every environment override, e.g. KIOSK_LOG_LEVEL.
const envPrefix = "kiosk"

// Monitor backends understood by the ingest watcher.
const (
	MonitorNetlink    = "netlink"
	MonitorUDisks2    = "udisks2"
	MonitorMountWatch = "mountwatch"
)

// Config is the top-level structure decoded from config.toml.
type Config struct {
	LogLevel string `koanf:"log_level" split_words:"true"`
	LogFile  string `koanf:"log_file" split_words:"true"` // optional append-only event log

	Buttons  []Button       `koanf:"buttons" ignored:"true"`
	Dispatch DispatchConfig `koanf:"dispatch"`
	Player   PlayerConfig   `koanf:"player"`
	Ingest   IngestConfig   `koanf:"ingest"`
}

// Button binds one GPIO input (BCM numbering) to an action.  Path is only
// set for the "play" action.
type Button struct {
	Name   string `koanf:"name"` // optional label used in logs
	Pin    int    `koanf:"pin"`
	Action string `koanf:"action"` // "play", "pause" or "stop"
	Path   string `koanf:"path"`
}

// DispatchConfig tunes the button scan loop.
type DispatchConfig struct {
	Debounce      time.Duration `koanf:"debounce"`
	Idle          time.Duration `koanf:"idle"`
	EdgeTriggered bool          `koanf:"edge_triggered" split_words:"true"` // fire once per press instead of repeating while held
}

// PlayerConfig describes how the video player process is started.
type PlayerConfig struct {
	Command      string        `koanf:"command"`
	Args         []string      `koanf:"args"` // extra arguments appended to the mpv command line
	Socket       string        `koanf:"socket"`
	Fullscreen   bool          `koanf:"fullscreen"`
	StartTimeout time.Duration `koanf:"start_timeout" split_words:"true"`
}

// IngestConfig describes the USB ingest watcher.
type IngestConfig struct {
	Destination string        `koanf:"destination"`
	Settle      time.Duration `koanf:"settle"`
	Monitor     string        `koanf:"monitor"`
	MountRoots  []string      `koanf:"mount_roots" split_words:"true"`
}

// DefaultButtons is the stock six-button panel.
func DefaultButtons() []Button {
	return []Button{
		{Name: "button1", Pin: 13, Action: "play", Path: "/home/pi/Videos/1.mp4"},
		{Name: "button2", Pin: 19, Action: "play", Path: "/home/pi/Videos/2.mp4"},
		{Name: "button3", Pin: 26, Action: "play", Path: "/home/pi/Videos/3.mp4"},
		{Name: "button4", Pin: 21, Action: "play", Path: "/home/pi/Videos/4.mp4"},
		{Name: "button5", Pin: 20, Action: "pause"},
		{Name: "button6", Pin: 16, Action: "stop"},
	}
}

// Default returns the configuration used when no file or environment
// override is present.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Buttons:  DefaultButtons(),
		Dispatch: DispatchConfig{
			Debounce: 200 * time.Millisecond,
			Idle:     10 * time.Millisecond,
		},
		Player: PlayerConfig{
			Command:      "mpv",
			Socket:       filepath.Join(os.TempDir(), "kioskd-mpv.sock"),
			Fullscreen:   true,
			StartTimeout: 5 * time.Second,
		},
		Ingest: IngestConfig{
			Destination: "/home/apex",
			Settle:      time.Second,
			Monitor:     MonitorNetlink,
			MountRoots:  defaultMountRoots(),
		},
	}
}

func defaultMountRoots() []string {
	return []string{"/media", "/run/media", "/mnt"}
}

// Load reads the configuration from the standard search path and the
// environment, then validates it.
func Load() (*Config, error) {
	return LoadFrom(searchPaths()...)
}

// LoadFrom reads the given TOML files in order (later files win), applies
// KIOSK_* environment overrides and validates the result.  Paths that do not
// exist are skipped.
func LoadFrom(paths ...string) (*Config, error) {
	k := koanf.New(".")
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("unable to read config %s: %w", path, err)
		}
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, fmt.Errorf("invalid config %s: %w", path, err)
		}
	}

	cfg := Default()
	// Slices are decoded into fresh values so a shorter list in the file
	// does not inherit trailing default entries.
	cfg.Buttons = nil
	cfg.Ingest.MountRoots = nil
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if len(cfg.Buttons) == 0 {
		cfg.Buttons = DefaultButtons()
	}

	if err := envconfig.Process(envPrefix, cfg); err != nil {
		return nil, fmt.Errorf("invalid environment override: %w", err)
	}
	if len(cfg.Ingest.MountRoots) == 0 {
		cfg.Ingest.MountRoots = defaultMountRoots()
	}
	cfg.Ingest.Monitor = strings.ToLower(cfg.Ingest.Monitor)
	cfg.Ingest.Destination = expandPath(cfg.Ingest.Destination)
	cfg.Player.Socket = expandPath(cfg.Player.Socket)
	for i := range cfg.Buttons {
		cfg.Buttons[i].Path = expandPath(cfg.Buttons[i].Path)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func searchPaths() []string {
	paths := []string{systemConfigPath, "config.toml"}
	if p := os.Getenv("KIOSK_CONFIG"); p != "" {
		paths = append(paths, p)
	}
	return paths
}

func expandPath(path string) string {
	if path != "" && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

// Validate reports the first problem found in the configuration.
func (c *Config) Validate() error {
	if len(c.Buttons) == 0 {
		return errors.New("no buttons configured")
	}
	seen := make(map[int]int, len(c.Buttons))
	for i, b := range c.Buttons {
		if b.Pin < 0 {
			return fmt.Errorf("button %d: invalid pin %d", i, b.Pin)
		}
		if prev, dup := seen[b.Pin]; dup {
			return fmt.Errorf("button %d: pin %d already bound by button %d", i, b.Pin, prev)
		}
		seen[b.Pin] = i
		if _, err := action.Parse(b.Action, b.Path); err != nil {
			return fmt.Errorf("button %d (pin %d): %w", i, b.Pin, err)
		}
	}
	if c.Dispatch.Debounce < 0 || c.Dispatch.Idle < 0 {
		return errors.New("dispatch: debounce and idle must not be negative")
	}
	if c.Player.Command == "" {
		return errors.New("player: command is required")
	}
	if c.Player.Socket == "" {
		return errors.New("player: socket is required")
	}
	if !filepath.IsAbs(c.Ingest.Destination) {
		return fmt.Errorf("ingest: destination %q must be an absolute path", c.Ingest.Destination)
	}
	if c.Ingest.Settle < 0 {
		return errors.New("ingest: settle must not be negative")
	}
	switch strings.ToLower(c.Ingest.Monitor) {
	case MonitorNetlink, MonitorUDisks2, MonitorMountWatch:
	default:
		return fmt.Errorf("ingest: unknown monitor %q", c.Ingest.Monitor)
	}
	return nil
}

// Bindings returns the button table in scan order.  It assumes Validate has
// succeeded.
func (c *Config) Bindings() []action.Binding {
	out := make([]action.Binding, 0, len(c.Buttons))
	for _, b := range c.Buttons {
		a, err := action.Parse(b.Action, b.Path)
		if err != nil {
			continue
		}
		name := b.Name
		if name == "" {
			name = fmt.Sprintf("GPIO%d", b.Pin)
		}
		out = append(out, action.Binding{Name: name, Pin: b.Pin, Action: a})
	}
	return out
}
