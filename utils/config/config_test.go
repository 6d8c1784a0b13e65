package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/highway-datagen/utils/config"
)

func TestPresets(t *testing.T) {
	stacked, err := config.Preset(config.PresetStacked)
	require.NoError(t, err)
	assert.Equal(t, 5, stacked.Collect.Episodes)
	assert.Equal(t, 500, stacked.Collect.StepCap)
	assert.False(t, stacked.Collect.RecordAction)
	assert.Equal(t, config.FormatNPY, stacked.Output.Format)
	assert.Equal(t, "sample_acc_n5", stacked.Output.Path)

	ragged, err := config.Preset(config.PresetRagged)
	require.NoError(t, err)
	assert.Equal(t, 200, ragged.Collect.Episodes)
	assert.Equal(t, 300, ragged.Collect.StepCap)
	assert.True(t, ragged.Collect.RecordAction)
	assert.True(t, ragged.Collect.ReconfigureEachEpisode)
	assert.Equal(t, "sample200", ragged.Output.Path)

	_, err = config.Preset("nope")
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestRuntimeConfig(t *testing.T) {
	c, err := config.Preset(config.PresetStacked)
	require.NoError(t, err)
	rc, err := config.NewRuntimeConfig(c)
	require.NoError(t, err)
	assert.Equal(t, 15, rc.Frames)
	assert.InDelta(t, 1.0/15, rc.DT, 1e-12)
	assert.Equal(t, 13, rc.FeatureWidth)
	assert.Equal(t, 65, rc.ObsWidth)
	assert.Equal(t, 65, rc.RowWidth)

	c, err = config.Preset(config.PresetRagged)
	require.NoError(t, err)
	rc, err = config.NewRuntimeConfig(c)
	require.NoError(t, err)
	assert.Equal(t, 67, rc.RowWidth)
}

func TestLoadOverridesPreset(t *testing.T) {
	data := []byte(`
env:
  lanes_count: 3
  observation:
    vehicles_count: 7
    features: [presence, x, y]
collect:
  episodes: 2
output:
  path: out/test
`)
	c, err := config.Load(config.PresetStacked, data)
	require.NoError(t, err)
	assert.Equal(t, 3, c.Env.LanesCount)
	assert.Equal(t, 7, c.Env.Observation.VehiclesCount)
	assert.Equal(t, []string{"presence", "x", "y"}, c.Env.Observation.Features)
	assert.Equal(t, 2, c.Collect.Episodes)
	// 未出现的字段保持预置值
	assert.Equal(t, 500, c.Collect.StepCap)
	assert.Equal(t, 15, c.Env.SimulationFrequency)
	assert.Equal(t, "out/test", c.Output.Path)

	_, err = config.Load(config.PresetStacked, []byte("env:\n  lane_count: 3\n"))
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		modify func(c *config.Config)
	}{
		{"env id", func(c *config.Config) { c.Env.ID = "merge-v0" }},
		{"backend", func(c *config.Config) { c.Env.Backend = "carla" }},
		{"action", func(c *config.Config) { c.Env.Action.Type = "ContinuousAction" }},
		{"lanes", func(c *config.Config) { c.Env.LanesCount = 0 }},
		{"frequency", func(c *config.Config) { c.Env.SimulationFrequency = 0 }},
		{"duration", func(c *config.Config) { c.Env.Duration = 0 }},
		{"feature", func(c *config.Config) { c.Env.Observation.Features = []string{"presence", "lane"} }},
		{"duplicated feature", func(c *config.Config) { c.Env.Observation.Features = []string{"x", "x"} }},
		{"episodes", func(c *config.Config) { c.Collect.Episodes = 0 }},
		{"step cap", func(c *config.Config) { c.Collect.StepCap = 0 }},
		{"ego policy", func(c *config.Config) { c.Collect.EgoPolicy = "rl" }},
		{"format", func(c *config.Config) { c.Output.Format = "pickle" }},
		{"path", func(c *config.Config) { c.Output.Path = "" }},
		{"mongo", func(c *config.Config) { c.Output.Format = config.FormatMongo }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, err := config.Preset(config.PresetStacked)
			require.NoError(t, err)
			require.NoError(t, config.Validate(c))
			tc.modify(&c)
			assert.ErrorIs(t, config.Validate(c), config.ErrInvalid)
		})
	}
}
