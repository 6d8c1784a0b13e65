package config

// Observation 观测空间配置
// 功能：描述Kinematics观测的车辆数、特征列表与坐标/归一化方式
type Observation struct {
	Type          string   `yaml:"type"`                 // 观测类型，目前仅支持Kinematics
	VehiclesCount int      `yaml:"vehicles_count"`       // 观测的车辆槽位数（含自车）
	Features      []string `yaml:"features"`             // 每辆车的特征列表（有序）
	Absolute      bool     `yaml:"absolute"`             // 是否使用绝对坐标，false时除自车外均为相对自车的坐标
	Normalize     bool     `yaml:"normalize"`            // 是否将x/y/vx/vy归一化到[-1,1]
	Clip          bool     `yaml:"clip"`                 // 归一化后是否截断到[-1,1]
	SeeBehind     bool     `yaml:"see_behind,omitempty"` // 是否观测后方车辆（否则仅观测后方2个车长内）
}

// Action 动作空间配置
type Action struct {
	Type string `yaml:"type"` // 动作类型，目前仅支持DiscreteMetaAction
}

// Env 环境配置
// 功能：对应环境注册名与其configure参数，在每次运行开始时（可选每个episode开始时）应用
type Env struct {
	ID      string `yaml:"id"`                 // 环境注册名，例如highway-v0
	Backend string `yaml:"backend"`            // 环境后端：builtin（内置实现）或gym（远程gym-socket服务）
	GymHost string `yaml:"gym_host,omitempty"` // gym-socket服务地址

	Action              Action      `yaml:"action"`
	LanesCount          int         `yaml:"lanes_count"`          // 车道数
	VehiclesCount       int         `yaml:"vehicles_count"`       // 非受控车辆数
	Observation         Observation `yaml:"observation"`          // 观测配置
	PolicyFrequency     int         `yaml:"policy_frequency"`     // 决策频率（Hz），每次Step推进1/policy_frequency秒
	SimulationFrequency int         `yaml:"simulation_frequency"` // 仿真频率（Hz）
	Duration            float64     `yaml:"duration"`             // episode时长（秒），到达后truncated
	ControlledVehicles  int         `yaml:"controlled_vehicles"`  // 受控车辆数

	VehiclesDensity   float64 `yaml:"vehicles_density"`   // 车辆密度，决定生成间距
	EgoSpacing        float64 `yaml:"ego_spacing"`        // 受控车辆生成间距系数
	EgoSpeed          float64 `yaml:"ego_speed"`          // 受控车辆初始速度（米/秒）
	SpeedLimit        float64 `yaml:"speed_limit"`        // 车道限速（米/秒）
	RandomizeBehavior bool    `yaml:"randomize_behavior"` // 是否随机化非受控车辆的驾驶参数
	Flatten           bool    `yaml:"flatten"`            // 是否将观测展平为一维向量
}

// Collect 数据采集过程配置
type Collect struct {
	Episodes               int    `yaml:"episodes"`                 // episode数
	StepCap                int    `yaml:"step_cap"`                 // 每个episode的最大步数
	RecordAction           bool   `yaml:"record_action"`            // 是否在每步记录控制器实际输出的(加速度, 转角)
	ReconfigureEachEpisode bool   `yaml:"reconfigure_each_episode"` // 是否在每个episode开始时重新应用环境配置
	StopOnTruncation       bool   `yaml:"stop_on_truncation"`       // 到达duration时是否结束episode（默认只看terminated）
	EgoPolicy              string `yaml:"ego_policy"`               // 受控车辆策略：idm（忽略采样动作）或meta（执行采样的元动作）
	RecordDir              string `yaml:"record_dir,omitempty"`     // 录制目录，为空则不录制
}

// Mongo MongoDB输出配置
type Mongo struct {
	URI string `yaml:"uri"` // MongoDB连接字符串，为空时读取环境变量MONGO_URI
	DB  string `yaml:"db"`  // 数据库名
	Col string `yaml:"col"` // 集合名
}

// Output 数据集输出配置
type Output struct {
	Format string `yaml:"format"`          // 输出格式：npy npz pb mongo
	Path   string `yaml:"path"`            // 输出路径（不含扩展名）
	Mongo  Mongo  `yaml:"mongo,omitempty"` // MongoDB输出配置
}

// Config YAML配置文件的根结构
type Config struct {
	Env     Env     `yaml:"env"`     // 环境
	Collect Collect `yaml:"collect"` // 采集过程
	Output  Output  `yaml:"output"`  // 输出
}
