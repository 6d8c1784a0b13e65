package config

import (
	"fmt"
	"slices"
)

// 支持的取值
const (
	EnvHighway = "highway-v0"

	BackendBuiltin = "builtin"
	BackendGym     = "gym"

	ActionDiscreteMeta = "DiscreteMetaAction"
	ObsKinematics      = "Kinematics"

	EgoPolicyIDM  = "idm"
	EgoPolicyMeta = "meta"

	FormatNPY   = "npy"
	FormatNPZ   = "npz"
	FormatPB    = "pb"
	FormatMongo = "mongo"

	PresetStacked = "stacked"
	PresetRagged  = "ragged"
)

// KinematicsFeatures Kinematics观测支持的全部特征（按默认顺序）
var KinematicsFeatures = []string{
	"presence",
	"x",
	"y",
	"vx",
	"vy",
	"heading",
	"cos_h",
	"sin_h",
	"cos_d",
	"sin_d",
	"long_off",
	"lat_off",
	"ang_off",
}

// DefaultEnv 默认环境配置
// 功能：单车道、10辆背景车、观测5辆车×13个特征、1Hz决策、15Hz仿真、10秒时长
func DefaultEnv() Env {
	return Env{
		ID:      EnvHighway,
		Backend: BackendBuiltin,
		GymHost: "localhost:5001",
		Action:  Action{Type: ActionDiscreteMeta},

		LanesCount:    1,
		VehiclesCount: 10,
		Observation: Observation{
			Type:          ObsKinematics,
			VehiclesCount: 5,
			Features:      slices.Clone(KinematicsFeatures),
			Absolute:      false,
			Normalize:     true,
			Clip:          true,
		},
		PolicyFrequency:     1,
		SimulationFrequency: 15,
		Duration:            10,
		ControlledVehicles:  1,

		VehiclesDensity:   1,
		EgoSpacing:        2,
		EgoSpeed:          25,
		SpeedLimit:        30,
		RandomizeBehavior: true,
		Flatten:           true,
	}
}

// Preset 获取预置配置
// 功能：返回两种数据采集方式的完整配置
// 参数：name-预置名称
//   - stacked：5个episode，每个最多500步，只记录观测，输出为单个堆叠并转置的npy数组
//   - ragged：200个episode，每个最多300步，记录观测与控制器动作，输出为每个episode一个数组的列表
func Preset(name string) (Config, error) {
	switch name {
	case PresetStacked:
		return Config{
			Env: DefaultEnv(),
			Collect: Collect{
				Episodes:  5,
				StepCap:   500,
				EgoPolicy: EgoPolicyIDM,
			},
			Output: Output{
				Format: FormatNPY,
				Path:   "sample_acc_n5",
				Mongo:  Mongo{DB: "highway", Col: "trajectories"},
			},
		}, nil
	case PresetRagged:
		return Config{
			Env: DefaultEnv(),
			Collect: Collect{
				Episodes:               200,
				StepCap:                300,
				RecordAction:           true,
				ReconfigureEachEpisode: true,
				EgoPolicy:              EgoPolicyIDM,
			},
			Output: Output{
				Format: FormatPB,
				Path:   "sample200",
				Mongo:  Mongo{DB: "highway", Col: "trajectories"},
			},
		}, nil
	default:
		return Config{}, fmt.Errorf("%w: unknown preset %q", ErrInvalid, name)
	}
}
