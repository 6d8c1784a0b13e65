package highway

import (
	"math"

	"git.fiblab.net/general/common/v2/mathutil"
	"github.com/samber/lo"
)

// followImpl 跟车模型核心实现
// 功能：实现智能驾驶模型(IDM)的跟车逻辑
// 参数：selfV-本车速度，targetV-目标速度，aheadV-前车速度，distance-车距，minGap-最小车距，headway-安全车头时距
// 返回：计算得到的加速度（米/秒²）
// 算法说明：
// 1. 检查是否发生碰撞（距离小于等于0）
// 2. 使用IDM模型计算期望车距：s_star = minGap + max(0, v*headway + v*(v-v_ahead)/(2*sqrt(a*b)))
// 3. 计算加速度：a = maxA * (1 - (v/targetV)^theta - (s_star/distance)^2)
// 4. 限制加速度在制动和加速范围内
func (l *controller) followImpl(
	selfV, targetV, aheadV, distance, minGap, headway float64,
) float64 {
	var acc float64
	if distance <= 0 {
		// 车辆已经发生碰撞，紧急制动
		acc = -mathutil.INF
	} else {
		// https://en.wikipedia.org/wiki/Intelligent_driver_model
		sStar := minGap + math.Max(
			0,
			selfV*headway+selfV*(selfV-aheadV)/2/math.Sqrt(-l.usualBrakingA*l.maxA),
		)
		acc = l.maxA * (1 - math.Pow(selfV/math.Max(targetV, 1e-2), l.theta) - math.Pow(sStar/distance, 2))
	}
	return lo.Clamp(acc, l.maxBrakingA, l.maxA)
}

// follow 跟车模型
// 说明：使用控制器中预设的最小车距和安全车头时距参数
func (l *controller) follow(
	selfV, targetV, aheadV, distance float64,
) float64 {
	return l.followImpl(selfV, targetV, aheadV, distance, l.minGap, l.headway)
}

// selfFollow 跟车模型（使用控制器自身的速度）
// 参数：aheadV-前车速度，distance-车距，targetV-本车在该车道上的目标速度
func (l *controller) selfFollow(aheadV, distance, targetV float64) float64 {
	return l.follow(l.v, targetV, aheadV, distance)
}
