package highway

import (
	"math"

	"git.fiblab.net/general/common/v2/mathutil"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/highway-datagen/utils/randengine"
)

const (
	defaultIDMTheta = 4   // IDM模型参数（智能驾驶模型参数）
	laneMaxVBiasStd = 0.1 // 车道限速偏差比例的标准差

	// maxNoiseA 加速度随机扰动最大值
	// 功能：为车辆加速度添加随机扰动，模拟真实驾驶的不确定性
	maxNoiseA = .5

	// zeroAThreshold 加速度零值判定阈值
	// 功能：当加速度绝对值小于此值时认为加速度为零
	zeroAThreshold = .1
)

// behavior 驾驶行为参数
type behavior struct {
	theta         float64 // IDM速度项指数
	laneMaxVRatio float64 // 对车道限速认知的偏差比例
	noise         bool    // 是否为加速度添加随机扰动
}

// defaultBehavior 确定性的驾驶行为（受控车辆与不随机化时的背景车辆）
func defaultBehavior() behavior {
	return behavior{theta: defaultIDMTheta, laneMaxVRatio: 1}
}

// randomBehavior 随机化的驾驶行为
// 功能：IDM指数取U(3.5,4.5)，限速认知偏差取N(1,0.1)并限制在[0.8,1.2]，开启加速度扰动
func randomBehavior(generator *randengine.Engine) behavior {
	return behavior{
		theta:         generator.Uniform(3.5, 4.5),
		laneMaxVRatio: lo.Clamp(generator.Normal(1, laneMaxVBiasStd), .8, 1.2),
		noise:         true,
	}
}

// controller 车辆控制器
// 功能：管理车辆的所有控制逻辑，包括跟车、变道、转向
type controller struct {
	// 控制器保持的参数

	self          *Vehicle           // 模块所在车辆
	usualBrakingA float64            // 常用制动加速度
	maxBrakingA   float64            // 最大制动加速度
	maxA          float64            // 最大加速度
	maxV          float64            // 最大速度
	laneMaxVRatio float64            // 本车对车道限速认知的偏差百分比
	theta         float64            // IDM速度项指数
	noise         bool               // 是否添加加速度扰动
	length        float64            // 车辆长度
	minGap        float64            // 最小车距
	headway       float64            // 安全车头时距
	generator     *randengine.Engine // 随机数生成器

	// 状态

	lastLCTime float64 // 上次变道时间
	manualLC   bool    // 变道由外部动作决定，不主动规划

	// 每次update时更新

	v  float64 // 当前速度
	dt float64 // 时间步长
}

// newController 创建新的车辆控制器
// 参数：self-车辆，b-驾驶行为参数，generator-随机数引擎（与环境共享）
func newController(self *Vehicle, b behavior, generator *randengine.Engine) *controller {
	return &controller{
		self:          self,
		usualBrakingA: -5,
		maxBrakingA:   -6,
		maxA:          3,
		maxV:          maxSpeed,
		laneMaxVRatio: b.laneMaxVRatio,
		theta:         b.theta,
		noise:         b.noise,
		length:        vehicleLength,
		minGap:        5,
		headway:       1.5,
		generator:     generator,
		lastLCTime:    -mathutil.INF,
	}
}

// update 计算本帧动作
// 功能：依次执行纵向决策、横向决策与转向控制
// 参数：t-当前时间，dt-时间步长
// 算法说明：
// 1. 跟随当前车道前车（IDM）
// 2. 正在变道时，同时跟随目标车道前车，取较小加速度
// 3. 未变道时按MOBIL规划变道
// 4. 按目标车道计算前轮转角
// 5. 限制加速度范围并添加随机扰动
func (l *controller) update(t, dt float64) (ac Action) {
	ac.A = mathutil.INF
	l.v = l.self.speed
	l.dt = dt

	curLane := l.self.lane
	rear, front := curLane.Neighbours(l.self)
	ac.Update(l.policyCarFollow(curLane, front))
	target := l.self.targetLane
	if target != curLane {
		if other := l.self.road.merging(l.self, target, 0, l.desiredGap()); other != nil {
			// 前方有车辆并入同一车道，放弃变道
			log.Debugf("%v abort lane change to %v: %v is merging ahead", l.self, target, other)
			l.self.targetLane = curLane
			target = curLane
		} else {
			// 执行变道时的额外纵向决策（加速度），看目标车道的前车
			_, targetFront := target.Neighbours(l.self)
			ac.Update(l.policyCarFollow(target, targetFront))
		}
	} else if !l.manualLC {
		ac.Update(l.planLaneChange(t, curLane, rear, front))
		if ac.LCTarget != nil {
			target = ac.LCTarget
		}
	}
	ac.Steering = l.steering(target)

	// 后处理
	ac.A = lo.Clamp(ac.A, l.maxBrakingA, l.maxA)
	if l.noise {
		noiseAcc := maxNoiseA * lo.Clamp(.5*l.generator.NormFloat64(), -1, 1)
		// 过小的加速度不扰动 扰动不改变加速度符号
		if math.Abs(ac.A) >= zeroAThreshold && math.Signbit(ac.A) == math.Signbit(ac.A+noiseAcc) {
			ac.A += noiseAcc
		}
	}
	return ac
}
