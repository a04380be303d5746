package hal

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"
)

func TestPressed(t *testing.T) {
	assert.True(t, Pressed(gpio.Low))
	assert.False(t, Pressed(gpio.High))
}

func TestFake_ReplaysScriptThenIdles(t *testing.T) {
	f := NewFake()
	f.Script(13, gpio.Low, gpio.Low)

	for _, want := range []gpio.Level{gpio.Low, gpio.Low, gpio.High, gpio.High} {
		got, err := f.Read(13)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	assert.Equal(t, 4, f.Reads(13))
}

func TestFake_ConfigureAndRelease(t *testing.T) {
	f := NewFake()
	boom := errors.New("boom")
	f.FailConfigure(20, boom)

	require.NoError(t, f.ConfigurePullUp(13))
	err := f.ConfigurePullUp(20)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, []int{13}, f.Configured())

	require.NoError(t, f.ReleaseAll())
	assert.Empty(t, f.Configured())
	assert.Equal(t, 1, f.Releases())
}

func TestFake_ReadError(t *testing.T) {
	f := NewFake()
	boom := errors.New("boom")
	f.FailRead(5, boom)

	lvl, err := f.Read(5)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, gpio.High, lvl)
}

func TestOpen_ReturnsUsableInputs(t *testing.T) {
	if !stubBuild {
		t.Skip("requires GPIO hardware")
	}
	in := Open()
	require.NoError(t, in.ConfigurePullUp(13))
	lvl, err := in.Read(13)
	require.NoError(t, err)
	assert.Equal(t, gpio.High, lvl)
	require.NoError(t, in.ReleaseAll())
}
