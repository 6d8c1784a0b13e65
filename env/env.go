// Package env 定义数据采集所使用的环境接口（与gym风格一致的reset/step语义）
package env

import (
	"errors"
	"fmt"

	"github.com/tsinghua-fib-lab/highway-datagen/utils/config"
)

var (
	ErrUnknownEnv = errors.New("unknown environment")
	ErrClosed     = errors.New("environment closed")
)

// Observation 观测
// 功能：行优先存储的Rows×Cols浮点矩阵，Kinematics观测中每行对应一个车辆槽位
type Observation struct {
	Rows, Cols int
	Data       []float32
}

// NewObservation 创建全零观测
func NewObservation(rows, cols int) Observation {
	return Observation{Rows: rows, Cols: cols, Data: make([]float32, rows*cols)}
}

// Row 第i行（共享底层数组）
func (o Observation) Row(i int) []float32 {
	return o.Data[i*o.Cols : (i+1)*o.Cols]
}

// Len 元素总数
func (o Observation) Len() int {
	return len(o.Data)
}

// Flat 展平为一行
func (o Observation) Flat() Observation {
	return Observation{Rows: 1, Cols: len(o.Data), Data: o.Data}
}

// DemoAction 规则控制器实际执行的动作
type DemoAction struct {
	Acceleration float64 // 加速度（米/秒²）
	Steering     float64 // 前轮转角（弧度）
}

// Info 每步的辅助信息
type Info struct {
	Speed      float64            // 自车速度
	Crashed    bool               // 自车是否碰撞
	Action     int                // 传入step的（采样）动作
	DemoAction *DemoAction        // 控制器实际输出的动作，远程环境未提供时为nil
	Rewards    map[string]float64 // 奖励分项
}

// StepResult step的返回值
type StepResult struct {
	Obs        Observation
	Reward     float64
	Terminated bool // 环境终止（碰撞）
	Truncated  bool // 到达时长上限
	Info       Info
}

// Space 离散动作空间
type Space interface {
	Size() int        // 动作个数
	Sample() int      // 均匀采样一个动作
	Seed(seed uint64) // 设置采样种子
}

// Env 环境接口
type Env interface {
	// Configure 应用环境配置，在下一次Reset时生效
	Configure(c config.Env) error
	// Reset 以给定种子开始新的episode
	Reset(seed uint64) (Observation, Info, error)
	// Step 执行一个决策步
	Step(action int) (StepResult, error)
	// ActionSpace 动作空间
	ActionSpace() Space
	// FeatureNames 每个车辆槽位的特征名
	FeatureNames() []string
	// Close 释放环境
	Close() error
}

// Constructor 环境构造函数
// 说明：传入完整配置，后端可以读取采集相关的选项（如受控车辆策略、录制目录）
type Constructor func(c config.Config) (Env, error)

var registry = map[string]Constructor{}

// Register 注册环境后端
func Register(backend, id string, ctor Constructor) {
	registry[backend+"/"+id] = ctor
}

// Make 按后端与注册名创建环境并应用配置
// 说明：配置中flatten为true时用Flatten包装
func Make(c config.Config) (Env, error) {
	key := c.Env.Backend + "/" + c.Env.ID
	ctor, ok := registry[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEnv, key)
	}
	e, err := ctor(c)
	if err != nil {
		return nil, fmt.Errorf("make %s: %w", key, err)
	}
	log.Infof("environment %s created", key)
	if c.Env.Flatten {
		e = Flatten(e)
	}
	return e, nil
}
