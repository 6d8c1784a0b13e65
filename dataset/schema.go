package dataset

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/highway-datagen/utils/config"
)

// SchemaVersion 数据集格式版本
const SchemaVersion = 1

// 动作列名
const (
	ColumnIndex        = "episode"
	ColumnAcceleration = "acceleration"
	ColumnSteering     = "steering"
)

// Schema 数据集描述
// 功能：记录每步记录中各列的含义以及生成数据集的运行信息，随数据一起写出
type Schema struct {
	Version            int       `yaml:"version" bson:"version"`
	RunID              string    `yaml:"run_id" bson:"run_id"`                             // 运行标识（UUID）
	EnvID              string    `yaml:"env_id" bson:"env_id"`                             // 环境注册名
	Columns            []string  `yaml:"columns" bson:"columns"`                           // 每步记录的列名（不含episode索引列）
	VehiclesCount      int       `yaml:"vehicles_count" bson:"vehicles_count"`             // 观测车辆槽位数
	FeaturesPerVehicle int       `yaml:"features_per_vehicle" bson:"features_per_vehicle"` // 每个槽位的特征数
	HasAction          bool      `yaml:"has_action" bson:"has_action"`                     // 末尾是否附带(加速度, 转角)
	IndexColumn        bool      `yaml:"index_column" bson:"index_column"`                 // 是否在首列附加episode索引（仅堆叠格式）
	CreatedAt          time.Time `yaml:"created_at" bson:"created_at"`
}

// NewSchema 根据运行时配置与特征名生成数据集描述
// 说明：观测列名为v<k>.<feature>，k为车辆槽位（0为自车）
func NewSchema(rc *config.RuntimeConfig, features []string) Schema {
	c := rc.All
	vehicles := c.Env.Observation.VehiclesCount
	columns := lo.FlatMap(lo.Range(vehicles), func(k int, _ int) []string {
		return lo.Map(features, func(f string, _ int) string {
			return fmt.Sprintf("v%d.%s", k, f)
		})
	})
	if c.Collect.RecordAction {
		columns = append(columns, ColumnAcceleration, ColumnSteering)
	}
	return Schema{
		Version:            SchemaVersion,
		RunID:              uuid.NewString(),
		EnvID:              c.Env.ID,
		Columns:            columns,
		VehiclesCount:      vehicles,
		FeaturesPerVehicle: len(features),
		HasAction:          c.Collect.RecordAction,
		CreatedAt:          time.Now().UTC().Truncate(time.Second),
	}
}

// Width 每步记录的列数
func (s Schema) Width() int {
	return len(s.Columns)
}

// Episode 一个episode的采集结果
type Episode struct {
	Index      int         // episode编号
	Seed       uint64      // Reset使用的种子
	Rows       [][]float32 // 每步一行，列含义见Schema.Columns
	Terminated bool        // 是否因环境终止而结束
	Truncated  bool        // 是否因到达时长而结束（仅在配置了按截断结束时为true）
}

// Steps 步数
func (e Episode) Steps() int {
	return len(e.Rows)
}

// Capped 是否因达到步数上限而结束
func (e Episode) Capped() bool {
	return !e.Terminated && !e.Truncated
}
