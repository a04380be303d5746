package player

// State is the coarse playback state of the video surface.
type State int

const (
	Idle State = iota
	Playing
	Paused
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Playing:
		return "Playing"
	case Paused:
		return "Paused"
	default:
		return "Unknown"
	}
}

// HasMedia reports whether media is loaded (playing or paused).
func (s State) HasMedia() bool {
	return s == Playing || s == Paused
}
