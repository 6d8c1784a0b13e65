// Package highway 内置的highway-v0环境
// 多车道直线高速公路，所有车辆由IDM跟车模型与MOBIL变道模型控制，按运动学自行车模型运动
package highway

import (
	"errors"
	"fmt"

	"github.com/tsinghua-fib-lab/highway-datagen/clock"
	"github.com/tsinghua-fib-lab/highway-datagen/env"
	"github.com/tsinghua-fib-lab/highway-datagen/utils/config"
	"github.com/tsinghua-fib-lab/highway-datagen/utils/randengine"
)

var errNotReset = errors.New("highway: Step called before Reset")

func init() {
	env.Register(config.BackendBuiltin, config.EnvHighway, func(c config.Config) (env.Env, error) {
		return New(c.Env,
			WithEgoPolicy(c.Collect.EgoPolicy),
			WithRecordDir(c.Collect.RecordDir),
		)
	})
}

// Option 环境选项
type Option func(*Env)

// WithEgoPolicy 受控车辆策略：idm（忽略传入的动作）或meta（执行传入的元动作）
func WithEgoPolicy(policy string) Option {
	return func(e *Env) {
		if policy != "" {
			e.egoPolicy = policy
		}
	}
}

// WithRecordDir 逐帧录制车辆状态到dir，为空则不录制
func WithRecordDir(dir string) Option {
	return func(e *Env) {
		e.recordDir = dir
	}
}

// Env highway-v0环境
// 说明：非线程安全，同一时刻只应由一个采集过程使用
type Env struct {
	c         config.Env
	pending   *config.Env // 下一次Reset时生效的配置
	egoPolicy string
	recordDir string
	recorder  *recorder

	generator  *randengine.Engine
	clock      *clock.Clock
	road       *Road
	controlled []*Vehicle
	space      *metaSpace
	obs        kinematics

	closed bool
}

// New 创建环境
// 参数：c-环境配置，opts-选项
// 返回：环境指针，配置不合法或录制目录无法创建时返回错误
func New(c config.Env, opts ...Option) (*Env, error) {
	if err := config.ValidateEnv(c); err != nil {
		return nil, err
	}
	e := &Env{
		c:         c,
		egoPolicy: config.EgoPolicyIDM,
		space:     newMetaSpace(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.recordDir != "" {
		r, err := newRecorder(e.recordDir)
		if err != nil {
			return nil, err
		}
		e.recorder = r
	}
	return e, nil
}

// Configure 应用环境配置，在下一次Reset时生效
func (e *Env) Configure(c config.Env) error {
	if e.closed {
		return env.ErrClosed
	}
	if err := config.ValidateEnv(c); err != nil {
		return err
	}
	e.pending = &c
	return nil
}

// Reset 以给定种子开始新的episode
// 功能：重建道路与车辆，种子同时决定车辆生成、驾驶行为与动作空间的采样序列
func (e *Env) Reset(seed uint64) (env.Observation, env.Info, error) {
	if e.closed {
		return env.Observation{}, env.Info{}, env.ErrClosed
	}
	if e.pending != nil {
		e.c = *e.pending
		e.pending = nil
	}
	e.generator = randengine.New(seed)
	e.space.Seed(seed)
	e.clock = clock.New(e.c)
	e.obs = kinematics{c: e.c.Observation, lanes: e.c.LanesCount}
	e.road = newRoad(e.c.LanesCount, e.c.SpeedLimit)
	e.controlled = e.road.populate(e.c, e.generator)
	if e.egoPolicy == config.EgoPolicyMeta {
		for _, v := range e.controlled {
			v.controller.manualLC = true
			v.cruiseV = v.speed
		}
	}
	if e.recorder != nil {
		if err := e.recorder.begin(seed + randengine.SeedOffset()); err != nil {
			return env.Observation{}, env.Info{}, err
		}
		if err := e.recorder.frame(0, 0, e.road); err != nil {
			return env.Observation{}, env.Info{}, err
		}
	}
	log.Debugf("reset seed=%d vehicles=%d", seed, len(e.road.vehicles))
	return e.obs.observe(e.road, e.ego()), e.info(-1, false), nil
}

// Step 执行一个决策步
// 功能：按simulation_frequency/policy_frequency个仿真帧推进，返回自车观测、奖励与结束状态
func (e *Env) Step(action int) (env.StepResult, error) {
	if e.closed {
		return env.StepResult{}, env.ErrClosed
	}
	if e.road == nil {
		return env.StepResult{}, errNotReset
	}
	if action < 0 || action >= e.space.Size() {
		return env.StepResult{}, fmt.Errorf("highway: action %d out of range [0, %d)", action, e.space.Size())
	}
	if e.egoPolicy == config.EgoPolicyMeta {
		applyMetaAction(e.ego(), action)
	}
	for i, n := int32(0), e.clock.SUBLOOP; i < n; i++ {
		e.road.act(e.clock.T, e.clock.DT)
		e.road.step(e.clock.DT)
		e.road.prepare()
		e.road.checkCollisions()
		e.clock.Tick()
		if e.recorder != nil {
			if err := e.recorder.frame(e.clock.InternalStep, e.clock.T, e.road); err != nil {
				return env.StepResult{}, err
			}
		}
	}
	ego := e.ego()
	info := e.info(action, true)
	res := env.StepResult{
		Obs:        e.obs.observe(e.road, ego),
		Reward:     reward(info.Rewards),
		Terminated: ego.crashed,
		Truncated:  e.clock.Truncated(),
		Info:       info,
	}
	log.Tracef("%v action=%s reward=%.3f %v", e.clock, metaActionNames[action], res.Reward, ego)
	return res, nil
}

// ego 第一辆受控车辆
func (e *Env) ego() *Vehicle {
	return e.controlled[0]
}

func (e *Env) info(action int, withDemo bool) env.Info {
	ego := e.ego()
	info := env.Info{
		Speed:   ego.speed,
		Crashed: ego.crashed,
		Action:  action,
		Rewards: e.road.rewards(ego),
	}
	if withDemo {
		last := ego.LastAction()
		info.DemoAction = &env.DemoAction{
			Acceleration: last.A,
			Steering:     last.Steering,
		}
	}
	return info
}

// ActionSpace 动作空间
func (e *Env) ActionSpace() env.Space {
	return e.space
}

// FeatureNames 每个车辆槽位的特征名
func (e *Env) FeatureNames() []string {
	c := e.c
	if e.pending != nil {
		c = *e.pending
	}
	return append([]string(nil), c.Observation.Features...)
}

// Road 当前道路（Reset之前为nil）
func (e *Env) Road() *Road {
	return e.road
}

// Clock 当前episode的时钟（Reset之前为nil）
func (e *Env) Clock() *clock.Clock {
	return e.clock
}

// Controlled 受控车辆
func (e *Env) Controlled() []*Vehicle {
	return e.controlled
}

// Close 释放环境，重复调用无副作用
func (e *Env) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	if e.recorder != nil {
		return e.recorder.end()
	}
	return nil
}
