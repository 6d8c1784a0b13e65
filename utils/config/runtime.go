package config

import (
	"errors"
	"fmt"

	"github.com/samber/lo"
	"gopkg.in/yaml.v2"
)

// ErrInvalid 配置不合法
var ErrInvalid = errors.New("invalid config")

// RuntimeConfig 运行时配置
// 功能：存储运行时使用的配置以及由配置推导出的常用量
type RuntimeConfig struct {
	All Config // 全部配置

	Frames       int     // 每个决策步包含的仿真帧数
	DT           float64 // 仿真帧时间间隔（秒）
	FeatureWidth int     // 每辆车的特征数
	ObsWidth     int     // 展平后的观测长度
	RowWidth     int     // 每步记录的长度（观测+可选的动作）
}

// NewRuntimeConfig 根据配置初始化运行时配置
// 功能：校验配置并计算推导量
// 参数：config-原始配置对象
// 返回：运行时配置指针，配置不合法时返回错误
func NewRuntimeConfig(config Config) (*RuntimeConfig, error) {
	if err := Validate(config); err != nil {
		return nil, err
	}
	rc := &RuntimeConfig{All: config}
	rc.Frames = Frames(config.Env)
	rc.DT = 1 / float64(config.Env.SimulationFrequency)
	rc.FeatureWidth = len(config.Env.Observation.Features)
	rc.ObsWidth = rc.FeatureWidth * config.Env.Observation.VehiclesCount
	rc.RowWidth = rc.ObsWidth
	if config.Collect.RecordAction {
		rc.RowWidth += 2
	}
	return rc, nil
}

// Frames 每个决策步包含的仿真帧数
func Frames(e Env) int {
	return e.SimulationFrequency / e.PolicyFrequency
}

// Load 在预置配置的基础上加载YAML配置
// 功能：先取预置配置，再用YAML中出现的字段覆盖（未知字段报错）
// 参数：preset-预置名称，data-YAML数据（可为空）
// 返回：合并后的配置
func Load(preset string, data []byte) (Config, error) {
	c, err := Preset(preset)
	if err != nil {
		return Config{}, err
	}
	if len(data) > 0 {
		if err := yaml.UnmarshalStrict(data, &c); err != nil {
			return Config{}, fmt.Errorf("%w: %v", ErrInvalid, err)
		}
	}
	return c, nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...)
}

// Validate 校验配置
// 功能：逐项检查配置取值，返回第一个不合法项
func Validate(c Config) error {
	if err := ValidateEnv(c.Env); err != nil {
		return err
	}

	cc := c.Collect
	if cc.Episodes < 1 {
		return invalid("collect.episodes must be >= 1, got %d", cc.Episodes)
	}
	if cc.StepCap < 1 {
		return invalid("collect.step_cap must be >= 1, got %d", cc.StepCap)
	}
	if cc.EgoPolicy != EgoPolicyIDM && cc.EgoPolicy != EgoPolicyMeta {
		return invalid("collect.ego_policy must be %q or %q, got %q", EgoPolicyIDM, EgoPolicyMeta, cc.EgoPolicy)
	}

	out := c.Output
	switch out.Format {
	case FormatNPY, FormatNPZ, FormatPB:
		if out.Path == "" {
			return invalid("output.path is required by format %q", out.Format)
		}
	case FormatMongo:
		if out.Mongo.URI == "" || out.Mongo.DB == "" || out.Mongo.Col == "" {
			return invalid("output.mongo.uri, db and col are required by format %q", out.Format)
		}
	default:
		return invalid("output.format %q is not supported", out.Format)
	}
	return nil
}

// ValidateEnv 校验环境配置
func ValidateEnv(e Env) error {
	if e.ID != EnvHighway {
		return invalid("env.id %q is not registered", e.ID)
	}
	if e.Backend != BackendBuiltin && e.Backend != BackendGym {
		return invalid("env.backend must be %q or %q, got %q", BackendBuiltin, BackendGym, e.Backend)
	}
	if e.Backend == BackendGym && e.GymHost == "" {
		return invalid("env.gym_host is required by the gym backend")
	}
	if e.Action.Type != ActionDiscreteMeta {
		return invalid("env.action.type %q is not supported", e.Action.Type)
	}
	if e.LanesCount < 1 {
		return invalid("env.lanes_count must be >= 1, got %d", e.LanesCount)
	}
	if e.VehiclesCount < 0 {
		return invalid("env.vehicles_count must be >= 0, got %d", e.VehiclesCount)
	}
	if e.ControlledVehicles < 1 {
		return invalid("env.controlled_vehicles must be >= 1, got %d", e.ControlledVehicles)
	}
	if e.PolicyFrequency < 1 || e.SimulationFrequency < e.PolicyFrequency {
		return invalid("env.simulation_frequency (%d) must be >= env.policy_frequency (%d) >= 1",
			e.SimulationFrequency, e.PolicyFrequency)
	}
	if e.Duration <= 0 {
		return invalid("env.duration must be > 0, got %v", e.Duration)
	}
	if e.VehiclesDensity <= 0 {
		return invalid("env.vehicles_density must be > 0, got %v", e.VehiclesDensity)
	}
	if e.SpeedLimit <= 0 || e.EgoSpeed < 0 || e.EgoSpacing <= 0 {
		return invalid("env.speed_limit, env.ego_speed and env.ego_spacing must be positive")
	}

	o := e.Observation
	if o.Type != ObsKinematics {
		return invalid("env.observation.type %q is not supported", o.Type)
	}
	if o.VehiclesCount < 1 {
		return invalid("env.observation.vehicles_count must be >= 1, got %d", o.VehiclesCount)
	}
	if len(o.Features) == 0 {
		return invalid("env.observation.features is empty")
	}
	for _, f := range o.Features {
		if !lo.Contains(KinematicsFeatures, f) {
			return invalid("env.observation.features: unknown feature %q", f)
		}
	}
	if dup := lo.FindDuplicates(o.Features); len(dup) > 0 {
		return invalid("env.observation.features: duplicated %v", dup)
	}
	return nil
}
