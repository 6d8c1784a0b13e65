package clock

import (
	"fmt"
	"math"

	"github.com/tsinghua-fib-lab/highway-datagen/utils/config"
)

// Clock 仿真时钟
// 功能：管理一个episode内的时间推进，区分决策步与仿真帧
// 说明：每个决策步（Step）包含SUBLOOP个仿真帧，每帧推进DT秒
type Clock struct {
	DT       float64 // 每个仿真帧的时间间隔（秒）
	SUBLOOP  int32   // 每个决策步包含的仿真帧数
	END_STEP int32   // duration对应的仿真帧数，到达后episode被截断

	T            float64 // 当前时间（秒）
	InternalStep int32   // 当前仿真帧数
}

// New 根据环境配置创建时钟
// 功能：由仿真频率、决策频率与时长计算帧间隔、子循环数与结束帧
// 算法说明：
// 1. dt = 1 / simulation_frequency
// 2. subloop = simulation_frequency / policy_frequency
// 3. endStep = ceil(duration * simulation_frequency)
func New(env config.Env) *Clock {
	c := &Clock{
		DT:       1 / float64(env.SimulationFrequency),
		SUBLOOP:  int32(config.Frames(env)),
		END_STEP: int32(math.Ceil(env.Duration * float64(env.SimulationFrequency))),
	}
	c.Init()
	return c
}

// Init 重置时钟状态
func (c *Clock) Init() {
	c.InternalStep = 0
	c.T = 0
}

// Tick 推进一个仿真帧
func (c *Clock) Tick() {
	c.InternalStep++
	c.T = float64(c.InternalStep) * c.DT
}

// ExternalStep 已完成的决策步数
func (c *Clock) ExternalStep() int32 {
	return c.InternalStep / c.SUBLOOP
}

// Truncated 是否已经达到episode时长
func (c *Clock) Truncated() bool {
	return c.InternalStep >= c.END_STEP
}

// String 格式化为 MM:SS.ss (step N)
func (c *Clock) String() string {
	m := int(c.T / 60)
	s := c.T - float64(m*60)
	return fmt.Sprintf("%02d:%05.2f (step %d)", m, s, c.ExternalStep())
}
