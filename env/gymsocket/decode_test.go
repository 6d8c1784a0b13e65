package gymsocket

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fromJSON(t *testing.T, s string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(s), &v))
	return v
}

func TestDecodeObservation(t *testing.T) {
	obs, err := decodeObservation(fromJSON(t, `[[1, 0.5, 0], [0, -0.25, 1]]`))
	require.NoError(t, err)
	assert.Equal(t, 2, obs.Rows)
	assert.Equal(t, 3, obs.Cols)
	assert.Equal(t, []float32{1, 0.5, 0, 0, -0.25, 1}, obs.Data)

	obs, err = decodeObservation(fromJSON(t, `[1, 2, 3, 4]`))
	require.NoError(t, err)
	assert.Equal(t, 1, obs.Rows)
	assert.Equal(t, 4, obs.Cols)

	_, err = decodeObservation(fromJSON(t, `[[1, 2], [3]]`))
	assert.Error(t, err)
	_, err = decodeObservation(fromJSON(t, `{"a": 1}`))
	assert.Error(t, err)
	_, err = decodeObservation(fromJSON(t, `["x"]`))
	assert.Error(t, err)
}

func TestDecodeInfo(t *testing.T) {
	info, truncated := decodeInfo(fromJSON(t, `{
		"speed": 24.5,
		"crashed": false,
		"action": 1,
		"demo_action": [0.75, -0.01],
		"rewards": {"collision": 0, "high_speed": 0.45}
	}`), 3)
	assert.False(t, truncated)
	assert.Equal(t, 3, info.Action)
	assert.Equal(t, 24.5, info.Speed)
	require.NotNil(t, info.DemoAction)
	assert.Equal(t, 0.75, info.DemoAction.Acceleration)
	assert.Equal(t, -0.01, info.DemoAction.Steering)
	assert.Equal(t, 0.45, info.Rewards["high_speed"])

	info, truncated = decodeInfo(fromJSON(t, `{
		"crashed": true,
		"demo_action": {"acceleration": -6, "steering": 0.1},
		"TimeLimit.truncated": true
	}`), 0)
	assert.True(t, truncated)
	assert.True(t, info.Crashed)
	require.NotNil(t, info.DemoAction)
	assert.Equal(t, -6.0, info.DemoAction.Acceleration)

	info, truncated = decodeInfo(nil, 2)
	assert.False(t, truncated)
	assert.Nil(t, info.DemoAction)
	assert.Equal(t, 2, info.Action)
}
