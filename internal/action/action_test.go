package action

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		action  string
		path    string
		want    Action
		wantErr string
	}{
		{name: "play", action: "play", path: "/videos/1.mp4", want: Play("/videos/1.mp4")},
		{name: "play uppercase", action: " PLAY ", path: "/v.mp4", want: Play("/v.mp4")},
		{name: "pause", action: "pause", want: Pause()},
		{name: "stop", action: "stop", want: Stop()},
		{name: "play without path", action: "play", wantErr: "requires a path"},
		{name: "pause with path", action: "pause", path: "/x", wantErr: "does not take a path"},
		{name: "stop with path", action: "stop", path: "/x", wantErr: "does not take a path"},
		{name: "empty", action: "", wantErr: "missing action"},
		{name: "unknown", action: "rewind", wantErr: `unknown action "rewind"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.action, tt.path)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAction_String(t *testing.T) {
	assert.Equal(t, "play(/videos/1.mp4)", Play("/videos/1.mp4").String())
	assert.Equal(t, "pause", Pause().String())
	assert.Equal(t, "stop", Stop().String())
	assert.Equal(t, "unknown", Kind(42).String())
}
