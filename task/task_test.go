package task

import (
	"context"
	"errors"
	"flag"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/highway-datagen/dataset"
	"github.com/tsinghua-fib-lab/highway-datagen/env"
	_ "github.com/tsinghua-fib-lab/highway-datagen/env/highway"
	"github.com/tsinghua-fib-lab/highway-datagen/utils/config"
)

// memorySink 将episode保存在内存中的写出端
type memorySink struct {
	schema   *dataset.Schema
	episodes []dataset.Episode
	closed   int
	onWrite  func(ep dataset.Episode)
}

func (s *memorySink) Begin(_ context.Context, schema dataset.Schema) error {
	s.schema = &schema
	return nil
}

func (s *memorySink) WriteEpisode(_ context.Context, ep dataset.Episode) error {
	s.episodes = append(s.episodes, ep)
	if s.onWrite != nil {
		s.onWrite(ep)
	}
	return nil
}

func (s *memorySink) Close() error {
	s.closed++
	return nil
}

func testConfig(t *testing.T, preset string, episodes, stepCap int) config.Config {
	t.Helper()
	c, err := config.Preset(preset)
	require.NoError(t, err)
	c.Collect.Episodes = episodes
	c.Collect.StepCap = stepCap
	c.Output.Path = filepath.Join(t.TempDir(), c.Output.Path)
	return c
}

func newTask(t *testing.T, c config.Config, sink dataset.Sink) *Context {
	t.Helper()
	rc, err := config.NewRuntimeConfig(c)
	require.NoError(t, err)
	e, err := env.Make(c)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return NewContext(rc, e, sink)
}

func TestRunStacked(t *testing.T) {
	c := testConfig(t, config.PresetStacked, 3, 6)
	sink := &memorySink{}
	summary, err := newTask(t, c, sink).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, sink.closed)
	require.NotNil(t, sink.schema)
	assert.Equal(t, 65, sink.schema.Width())
	require.Len(t, sink.episodes, 3)
	total := 0
	for i, ep := range sink.episodes {
		assert.Equal(t, i, ep.Index)
		assert.EqualValues(t, i, ep.Seed)
		assert.GreaterOrEqual(t, ep.Steps(), 1)
		assert.LessOrEqual(t, ep.Steps(), 6)
		for _, row := range ep.Rows {
			assert.Len(t, row, 65)
		}
		// 自车存在
		assert.EqualValues(t, 1, ep.Rows[0][0])
		total += ep.Steps()
	}
	assert.Equal(t, 3, summary.Episodes)
	assert.Equal(t, total, summary.Steps)
	assert.Equal(t, 3, summary.Terminated+summary.Truncated+summary.Capped)
	assert.Zero(t, summary.Truncated)
	assert.Positive(t, summary.Elapsed)
}

func TestRunRecordsSeedWithOffset(t *testing.T) {
	c := testConfig(t, config.PresetRagged, 8, 4)
	plain := &memorySink{}
	_, err := newTask(t, c, plain).Run(context.Background())
	require.NoError(t, err)

	require.NoError(t, flag.Set("rand.seed_offset", "7"))
	t.Cleanup(func() { flag.Set("rand.seed_offset", "0") })
	c.Collect.Episodes = 1
	shifted := &memorySink{}
	_, err = newTask(t, c, shifted).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, shifted.episodes, 1)
	ep := shifted.episodes[0]
	assert.Equal(t, 0, ep.Index)
	assert.EqualValues(t, 7, ep.Seed)
	// 记录的种子即实际使用的种子
	assert.Equal(t, plain.episodes[7].Seed, ep.Seed)
	assert.Equal(t, plain.episodes[7].Rows, ep.Rows)
}

func TestRunRaggedRecordsAction(t *testing.T) {
	c := testConfig(t, config.PresetRagged, 2, 4)
	sink := &memorySink{}
	_, err := newTask(t, c, sink).Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, sink.schema)
	assert.True(t, sink.schema.HasAction)
	require.Len(t, sink.episodes, 2)
	for _, ep := range sink.episodes {
		for _, row := range ep.Rows {
			require.Len(t, row, 67)
		}
	}
}

func TestRunDeterministic(t *testing.T) {
	c := testConfig(t, config.PresetRagged, 2, 5)
	a, b := &memorySink{}, &memorySink{}
	_, err := newTask(t, c, a).Run(context.Background())
	require.NoError(t, err)
	_, err = newTask(t, c, b).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, b.episodes, len(a.episodes))
	for i := range a.episodes {
		assert.Equal(t, a.episodes[i].Rows, b.episodes[i].Rows, "episode %d", i)
	}
}

func TestRunStopOnTruncation(t *testing.T) {
	c := testConfig(t, config.PresetStacked, 2, 100)
	c.Env.Duration = 3
	c.Collect.StopOnTruncation = true
	sink := &memorySink{}
	summary, err := newTask(t, c, sink).Run(context.Background())
	require.NoError(t, err)
	for _, ep := range sink.episodes {
		assert.LessOrEqual(t, ep.Steps(), 3)
		assert.False(t, ep.Capped())
	}
	assert.Zero(t, summary.Capped)
}

func TestRunWritesNPY(t *testing.T) {
	c := testConfig(t, config.PresetStacked, 2, 4)
	sink, err := dataset.New(c.Output)
	require.NoError(t, err)
	summary, err := newTask(t, c, sink).Run(context.Background())
	require.NoError(t, err)

	a, err := dataset.ReadNPY(c.Output.Path + ".npy")
	require.NoError(t, err)
	assert.Equal(t, []int{66, summary.Steps}, a.Shape)
	// 第0行的episode编号单调不减，且覆盖全部episode
	assert.EqualValues(t, 0, a.Data[0])
	assert.EqualValues(t, 1, a.Data[summary.Steps-1])
	for j := 1; j < summary.Steps; j++ {
		assert.LessOrEqual(t, a.Data[j-1], a.Data[j])
	}
}

func TestRunWritesPB(t *testing.T) {
	c := testConfig(t, config.PresetRagged, 3, 3)
	sink, err := dataset.New(c.Output)
	require.NoError(t, err)
	_, err = newTask(t, c, sink).Run(context.Background())
	require.NoError(t, err)

	schema, episodes, err := dataset.ReadPB(c.Output.Path + ".pb")
	require.NoError(t, err)
	assert.Equal(t, 67, schema.Width())
	require.Len(t, episodes, 3)
	for _, ep := range episodes {
		assert.GreaterOrEqual(t, ep.Steps(), 1)
		assert.LessOrEqual(t, ep.Steps(), 3)
	}
}

func TestRunCanceled(t *testing.T) {
	c := testConfig(t, config.PresetStacked, 5, 3)
	sink := &memorySink{}
	cctx, cancel := context.WithCancel(context.Background())
	sink.onWrite = func(dataset.Episode) { cancel() }
	summary, err := newTask(t, c, sink).Run(cctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, sink.closed)
	assert.Len(t, sink.episodes, 1)
	assert.Equal(t, 1, summary.Episodes)
}

func TestRunClosed(t *testing.T) {
	c := testConfig(t, config.PresetStacked, 5, 3)
	sink := &memorySink{}
	task := newTask(t, c, sink)
	task.Close()
	_, err := task.Run(context.Background())
	assert.ErrorIs(t, err, ErrStopped)
	assert.Equal(t, 1, sink.closed)
	assert.Empty(t, sink.episodes)
	assert.Nil(t, task.Schema())
}

// bareEnv 不提供控制器动作的环境
type bareEnv struct {
	cols  int
	steps int
	fail  bool
}

type fixedSpace struct{}

func (fixedSpace) Size() int   { return 5 }
func (fixedSpace) Sample() int { return 1 }
func (fixedSpace) Seed(uint64) {}

func (e *bareEnv) Configure(config.Env) error { return nil }

func (e *bareEnv) Reset(uint64) (env.Observation, env.Info, error) {
	e.steps = 0
	return env.NewObservation(5, e.cols), env.Info{}, nil
}

func (e *bareEnv) Step(action int) (env.StepResult, error) {
	if e.fail {
		return env.StepResult{}, errors.New("connection reset")
	}
	e.steps++
	obs := env.NewObservation(5, e.cols)
	obs.Data[0] = float32(e.steps)
	return env.StepResult{Obs: obs, Terminated: e.steps == 2, Info: env.Info{Action: action}}, nil
}

func (e *bareEnv) ActionSpace() env.Space { return fixedSpace{} }
func (e *bareEnv) FeatureNames() []string { return config.KinematicsFeatures }
func (e *bareEnv) Close() error           { return nil }

func TestRunMissingDemoAction(t *testing.T) {
	c := testConfig(t, config.PresetRagged, 2, 10)
	rc, err := config.NewRuntimeConfig(c)
	require.NoError(t, err)
	sink := &memorySink{}
	summary, err := NewContext(rc, &bareEnv{cols: 13}, sink).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, sink.episodes, 2)
	ep := sink.episodes[1]
	require.Equal(t, 2, ep.Steps())
	assert.True(t, ep.Terminated)
	assert.EqualValues(t, 2, ep.Rows[1][0])
	assert.Equal(t, []float32{0, 0}, ep.Rows[1][65:])
	assert.Equal(t, 2, summary.Terminated)
}

func TestRunErrors(t *testing.T) {
	c := testConfig(t, config.PresetStacked, 2, 10)
	rc, err := config.NewRuntimeConfig(c)
	require.NoError(t, err)

	sink := &memorySink{}
	_, err = NewContext(rc, &bareEnv{cols: 12}, sink).Run(context.Background())
	assert.ErrorContains(t, err, "observation has 60 values")
	assert.Equal(t, 1, sink.closed)

	sink = &memorySink{}
	_, err = NewContext(rc, &bareEnv{cols: 13, fail: true}, sink).Run(context.Background())
	assert.ErrorContains(t, err, "connection reset")
	assert.Equal(t, 1, sink.closed)
	assert.Empty(t, sink.episodes)
}
