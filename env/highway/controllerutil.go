package highway

import (
	"math"

	"github.com/samber/lo"
)

const (
	tauLateral       = 0.6              // 横向位置控制时间常数（秒）
	tauHeading       = 0.2              // 航向控制时间常数（秒）
	tauPursuit       = 0.5 * tauHeading // 预瞄时间（秒）
	kpLateral        = 1 / tauLateral
	kpHeading        = 1 / tauHeading
	maxSteeringAngle = math.Pi / 3 // 最大前轮转角（弧度）
)

// getLaneMaxV 获取车道最大速度
// 功能：根据车道限速和车辆对限速的认知偏差计算实际限速
func (l *controller) getLaneMaxV(lane *Lane) float64 {
	return lane.MaxV() * l.laneMaxVRatio
}

// getTargetV 本车在车道上的目标速度
// 说明：设置了巡航速度时以巡航速度为准，否则为车道限速和车辆最大速度的较小值
func (l *controller) getTargetV(lane *Lane) float64 {
	if l.self.cruiseV > 0 {
		return l.self.cruiseV
	}
	return math.Min(l.maxV, l.getLaneMaxV(lane))
}

// steering 计算前轮转角
// 功能：横向位置-航向两级比例控制，使车辆沿目标车道中心线行驶
// 算法说明：
// 1. 横向速度指令 = -kpLateral * 横向偏移，换算为航向指令并限制在±π/4
// 2. 航向参考 = 预瞄点处车道方向 + 航向指令
// 3. 航向角速度指令 = kpHeading * (航向参考 - 航向)
// 4. 由自行车模型反解前轮转角，限制在±π/3
func (l *controller) steering(target *Lane) float64 {
	x, y := l.self.Position()
	long, lat := target.LocalCoordinates(x, y)
	futureHeading := target.HeadingAt(long + l.v*tauPursuit)
	speed := notZero(l.v)
	headingCommand := math.Asin(lo.Clamp(-kpLateral*lat/speed, -1, 1))
	headingRef := futureHeading + lo.Clamp(headingCommand, -math.Pi/4, math.Pi/4)
	headingRate := kpHeading * wrapToPi(headingRef-l.self.heading)
	slip := math.Asin(lo.Clamp(l.length/2/speed*headingRate, -1, 1))
	return lo.Clamp(math.Atan(2*math.Tan(slip)), -maxSteeringAngle, maxSteeringAngle)
}

// notZero 避免除零
func notZero(x float64) float64 {
	const eps = 1e-2
	if math.Abs(x) > eps {
		return x
	}
	if x >= 0 {
		return eps
	}
	return -eps
}

// desiredGap 期望车距：最小车距加上按车头时距行驶的距离与一个车长
func (l *controller) desiredGap() float64 {
	return l.minGap + l.v*l.headway + l.length
}
