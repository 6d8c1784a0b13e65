package highway

import (
	"git.fiblab.net/general/common/v2/mathutil"
)

const (
	lcSafeBrakingABias = 1   // 新后车允许的制动加速度相对常用制动加速度的余量
	lcPoliteness       = 0.1 // 礼让系数
	lcThreshold        = 0.2 // 变道收益阈值（米/秒²）
)

// planLaneChange 变道规划
// 功能：按MOBIL模型评估左右两侧车道，按概率决定是否变道及变道方向
// 参数：t-当前时间，curLane-当前车道，rear-当前车道后车，front-当前车道前车
// 返回：ac-变道动作（不变道时LCTarget为nil）
func (l *controller) planLaneChange(t float64, curLane *Lane, rear, front *Vehicle) (ac Action) {
	ac.A = mathutil.INF
	// 距离上次变道时间过短
	if t-l.lastLCTime < l.generator.Float64()*2+4 {
		return
	}
	var sides [2]*Lane
	for _, side := range [2]int{LEFT, RIGHT} {
		sides[side] = curLane.NeighborLane(side)
	}
	// 没有变道的可能
	if sides[LEFT] == nil && sides[RIGHT] == nil {
		return
	}
	// MOBIL变道算法
	// -----------------------
	//      [3]   [n0] [4]  现在假设0->n0的变道(n = next)
	// -----------------------
	//  [2]      [0]    [1]
	// -----------------------
	// 要求变道后：
	// 0. 没有其他车辆同时并入[n0]所在车道的相邻位置
	// 1. [3]不会追尾本车，即[3]的预期加速度（刹车）不能小于安全加速度
	// 2. 整体加速度提升大于阈值: \Delta_a0 + p(\Delta_a2+\Delta_a3) > a_threshold

	// 对于其他车的属性，采用本车的值去推断
	s := l.self.x
	maxV := l.getTargetV(curLane)
	v1, s1 := mathutil.INF, mathutil.INF
	if front != nil {
		v1 = front.V()
		s1 = front.x - front.Length()
	}
	a0 := l.selfFollow(v1, s1-s, maxV)
	deltaA2 := 0.0
	if rear != nil {
		// 如果2号车存在，计算2号车的预期加速度变化值
		v2, s2 := rear.V(), rear.x
		deltaA2 = l.follow(v2, maxV, v1, s1-s2) - l.follow(v2, maxV, l.v, s-l.length-s2)
	}
	deltas := [2]float64{}
	an0s := [2]float64{}
	for _, side := range [2]int{LEFT, RIGHT} {
		target := sides[side]
		if target == nil {
			continue
		}
		// 判决规则0: 其他车辆正在从另一侧并入同一车道且距离过近，那么不变道
		if l.self.road.merging(l.self, target, l.desiredGap(), l.desiredGap()) != nil {
			continue
		}
		back, ahead := target.Neighbours(l.self)
		// 本车变道后的预期加速度
		v4, s4 := mathutil.INF, mathutil.INF
		if ahead != nil {
			v4 = ahead.V()
			s4 = ahead.x - ahead.Length()
		}
		an0 := l.selfFollow(v4, s4-s, l.getTargetV(target))
		an0s[side] = an0
		deltaA0 := an0 - a0
		// 3号车变道后的预期加速度
		deltaA3 := 0.0
		if back != nil {
			v3, s3 := back.V(), back.x
			an3 := l.follow(v3, maxV, l.v, s-l.length-s3)
			// 判决规则1: 如果3号车会追尾本车，那么不变道
			if an3 < l.usualBrakingA+lcSafeBrakingABias {
				continue
			}
			deltaA3 = an3 - l.follow(v3, maxV, v4, s4-s3)
		}
		// 主判决规则
		if delta := deltaA0 + lcPoliteness*(deltaA2+deltaA3); delta > lcThreshold {
			deltas[side] = delta
		}
	}
	u := deltas[LEFT] + deltas[RIGHT]
	if u <= 0 {
		return
	}
	pLC := 0.9
	if u < 1 {
		pLC = (0.9 - 2e-8) * u
	}
	// 按概率决定是否变道
	if l.generator.PTrue(pLC) {
		// 再按照deltas的大小来按概率决定变道方向
		side := int(l.generator.DiscreteDistribution(deltas[:]))
		ac = Action{A: an0s[side]}
		l.lastLCTime = t
		ac.startLaneChange(sides[side])
		log.Debugf("%v change lane %v -> %v", l.self, curLane, sides[side])
	}
	return
}
