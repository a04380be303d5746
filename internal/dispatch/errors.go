package dispatch

import "fmt"

// InitError is a fatal setup failure: the GPIO inputs or the player could
// not be initialised and the main loop must not start.
type InitError struct {
	Op  string
	Err error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }
