// Package gymsocket 通过gym-socket-api驱动远程Python gym服务中的环境
package gymsocket

import (
	"fmt"
	"sync"

	"github.com/tsinghua-fib-lab/highway-datagen/env"
	"github.com/tsinghua-fib-lab/highway-datagen/utils/config"
	gym "github.com/unixpickle/gym-socket-api/binding-go"
)

// DiscreteMetaAction的动作个数
const metaActionCount = 5

var seedOnce, configOnce sync.Once

func init() {
	env.Register(config.BackendGym, config.EnvHighway, func(c config.Config) (env.Env, error) {
		return New(c.Env, c.Collect.RecordDir)
	})
}

// Env 远程环境
// 说明：环境配置与种子无法通过socket协议下发，需要在服务端预先配置
type Env struct {
	client gym.Env
	c      config.Env
	space  *space
	closed bool
}

// New 连接gym服务并创建环境
// 参数：c-环境配置（使用gym_host与id），recordDir-非空时开启服务端Monitor录制
func New(c config.Env, recordDir string) (*Env, error) {
	client, err := gym.Make(c.GymHost, c.ID)
	if err != nil {
		return nil, fmt.Errorf("gymsocket: make %s@%s: %w", c.ID, c.GymHost, err)
	}
	if recordDir != "" {
		if err := client.Monitor(recordDir, true, false, true); err != nil {
			client.Close()
			return nil, fmt.Errorf("gymsocket: monitor %s: %w", recordDir, err)
		}
	}
	log.Infof("connected to %s (%s)", c.GymHost, c.ID)
	return &Env{client: client, c: c, space: &space{client: client}}, nil
}

// Configure 记录配置
// 说明：协议不支持configure，只在本地更新特征名并提示一次
func (e *Env) Configure(c config.Env) error {
	if e.closed {
		return env.ErrClosed
	}
	configOnce.Do(func() {
		log.Warn("gym socket protocol cannot configure the remote environment; configure it on the server")
	})
	e.c = c
	return nil
}

// Reset 开始新的episode
// 说明：协议不支持传入种子，seed被忽略，同一种子的episode不保证相同
func (e *Env) Reset(seed uint64) (env.Observation, env.Info, error) {
	if e.closed {
		return env.Observation{}, env.Info{}, env.ErrClosed
	}
	seedOnce.Do(func() {
		log.Warnf("gym socket protocol cannot seed the remote environment; seed %d ignored", seed)
	})
	rawObs, err := e.client.Reset()
	if err != nil {
		return env.Observation{}, env.Info{}, fmt.Errorf("gymsocket: reset: %w", err)
	}
	obs, err := e.unmarshal(rawObs)
	if err != nil {
		return env.Observation{}, env.Info{}, err
	}
	return obs, env.Info{Action: -1}, nil
}

// Step 执行一个决策步
// 说明：done且服务端未标记截断时视为terminated
func (e *Env) Step(action int) (env.StepResult, error) {
	if e.closed {
		return env.StepResult{}, env.ErrClosed
	}
	rawObs, reward, done, rawInfo, err := e.client.Step(action)
	if err != nil {
		return env.StepResult{}, fmt.Errorf("gymsocket: step: %w", err)
	}
	obs, err := e.unmarshal(rawObs)
	if err != nil {
		return env.StepResult{}, err
	}
	var raw any = rawInfo
	info, truncated := decodeInfo(raw, action)
	return env.StepResult{
		Obs:        obs,
		Reward:     reward,
		Terminated: done && !truncated,
		Truncated:  truncated,
		Info:       info,
	}, nil
}

func (e *Env) unmarshal(rawObs gym.Obs) (env.Observation, error) {
	var raw any
	if err := rawObs.Unmarshal(&raw); err != nil {
		return env.Observation{}, fmt.Errorf("gymsocket: unmarshal observation: %w", err)
	}
	return decodeObservation(raw)
}

// ActionSpace 动作空间，采样由服务端完成
func (e *Env) ActionSpace() env.Space {
	return e.space
}

// FeatureNames 每个车辆槽位的特征名
func (e *Env) FeatureNames() []string {
	return append([]string(nil), e.c.Observation.Features...)
}

// Close 关闭连接，重复调用无副作用
func (e *Env) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	return e.client.Close()
}

// space 由服务端采样的离散动作空间
type space struct {
	client gym.Env
}

func (s *space) Size() int {
	return metaActionCount
}

// Sample 由服务端采样，失败时退化为IDLE
func (s *space) Sample() int {
	var action int
	if err := s.client.SampleAction(&action); err != nil {
		log.Errorf("sample action: %v", err)
		return 1
	}
	return action
}

func (s *space) Seed(uint64) {}
