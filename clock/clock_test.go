package clock_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tsinghua-fib-lab/highway-datagen/clock"
	"github.com/tsinghua-fib-lab/highway-datagen/utils/config"
)

func TestClock(t *testing.T) {
	env := config.DefaultEnv()
	c := clock.New(env)
	assert.Equal(t, int32(15), c.SUBLOOP)
	assert.Equal(t, int32(150), c.END_STEP)

	for i := 0; i < 15; i++ {
		c.Tick()
	}
	assert.Equal(t, int32(1), c.ExternalStep())
	assert.InDelta(t, 1.0, c.T, 1e-9)
	assert.False(t, c.Truncated())

	for i := 0; i < 135; i++ {
		c.Tick()
	}
	assert.True(t, c.Truncated())
	assert.Equal(t, int32(10), c.ExternalStep())
	assert.Equal(t, "00:10.00 (step 10)", c.String())

	c.Init()
	assert.Zero(t, c.T)
	assert.False(t, c.Truncated())
}
