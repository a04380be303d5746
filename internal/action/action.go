// Package action defines what a button does when it is pressed.  An action
// is either "play this file", "pause" or "stop"; the file path only exists
// for the play variant so a path can never be mistaken for a command.
package action

import (
	"fmt"
	"strings"
)

// Kind enumerates the supported button actions.
type Kind int

const (
	KindPlay Kind = iota
	KindPause
	KindStop
)

func (k Kind) String() string {
	switch k {
	case KindPlay:
		return "play"
	case KindPause:
		return "pause"
	case KindStop:
		return "stop"
	default:
		return "unknown"
	}
}

// Action is a tagged value.  Path is only meaningful when Kind is KindPlay.
type Action struct {
	Kind Kind
	Path string
}

// Play returns an action that stops whatever is showing, loads path and
// starts playback.
func Play(path string) Action { return Action{Kind: KindPlay, Path: path} }

// Pause returns an action that pauses the current playback.
func Pause() Action { return Action{Kind: KindPause} }

// Stop returns an action that stops the current playback.
func Stop() Action { return Action{Kind: KindStop} }

func (a Action) String() string {
	if a.Kind == KindPlay {
		return fmt.Sprintf("play(%s)", a.Path)
	}
	return a.Kind.String()
}

// Parse builds an Action from its configuration form.  "play" requires a
// path, "pause" and "stop" must not carry one.
func Parse(name, path string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "play":
		if path == "" {
			return Action{}, fmt.Errorf("action play requires a path")
		}
		return Play(path), nil
	case "pause":
		if path != "" {
			return Action{}, fmt.Errorf("action pause does not take a path (got %q)", path)
		}
		return Pause(), nil
	case "stop":
		if path != "" {
			return Action{}, fmt.Errorf("action stop does not take a path (got %q)", path)
		}
		return Stop(), nil
	case "":
		return Action{}, fmt.Errorf("missing action")
	default:
		return Action{}, fmt.Errorf("unknown action %q", name)
	}
}

// Binding ties one input, identified by its BCM pin number, to an action.
// Name is a human label used in logs.
type Binding struct {
	Name   string
	Pin    int
	Action Action
}
