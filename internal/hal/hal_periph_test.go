//go:build linux && !disablegpio

package hal

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"
)

func TestPeriphHostFailureReportedOnConfigure(t *testing.T) {
	boom := errors.New("no gpio controller")
	inits := 0
	p := &periphInputs{
		pins: make(map[int]gpio.PinIO),
		initHost: func() error {
			inits++
			return boom
		},
	}

	// Nothing has been configured yet, so releasing is a no-op.
	require.NoError(t, p.ReleaseAll())

	err := p.ConfigurePullUp(13)
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "initialise gpio host")
	require.ErrorIs(t, p.ConfigurePullUp(19), boom)
	assert.Equal(t, 1, inits)

	_, err = p.Read(13)
	assert.Error(t, err)
	assert.NoError(t, p.ReleaseAll())
}

func TestPeriphOpenDoesNotTouchHardware(t *testing.T) {
	in := Open()
	require.NotNil(t, in)
	assert.NoError(t, in.ReleaseAll())
}
