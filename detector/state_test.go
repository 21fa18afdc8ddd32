package detector

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStageAdvance(t *testing.T) {
	s := StageIdle
	var err error
	for _, next := range []Stage{StageDetectorRunning, StageNMSRunning, StageDecoded} {
		s, err = s.Advance(next)
		require.NoError(t, err)
		assert.Equal(t, next, s)
	}
	assert.True(t, s.Terminal())
}

func TestStageAdvanceToFailed(t *testing.T) {
	for _, from := range []Stage{StageIdle, StageDetectorRunning, StageNMSRunning} {
		s, err := from.Advance(StageFailed)
		require.NoError(t, err, "from %s", from)
		assert.Equal(t, StageFailed, s)
	}
}

func TestStageIllegalTransitions(t *testing.T) {
	tests := []struct {
		from, to Stage
	}{
		{StageIdle, StageNMSRunning},
		{StageIdle, StageDecoded},
		{StageDetectorRunning, StageDecoded},
		{StageNMSRunning, StageDetectorRunning},
		{StageDecoded, StageFailed},
		{StageFailed, StageIdle},
		{StageDecoded, StageIdle},
	}
	for _, tt := range tests {
		s, err := tt.from.Advance(tt.to)
		assert.Error(t, err, "%s -> %s", tt.from, tt.to)
		assert.Equal(t, tt.from, s)
	}
}

func TestStageString(t *testing.T) {
	assert.Equal(t, "nms_running", StageNMSRunning.String())
	assert.Equal(t, "stage(9)", Stage(9).String())

	b, err := json.Marshal(map[string]Stage{"stage": StageDecoded})
	require.NoError(t, err)
	assert.JSONEq(t, `{"stage":"decoded"}`, string(b))
}
