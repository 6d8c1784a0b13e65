package highway

import "git.fiblab.net/general/common/v2/mathutil"

// policyCarFollow 前车跟车策略
// 功能：根据车道上前车的信息计算跟车加速度
// 参数：lane-车道，ahead-前车（可为nil）
// 返回：ac-计算得到的加速度动作
// 算法说明：
// 1. 前车不存在时，车距视为无穷大、前车速度为0
// 2. 车距 = 前车位置 - 本车位置 - 前车长度
// 3. 调用IDM模型，目标速度为本车在该车道上的目标速度
func (l *controller) policyCarFollow(lane *Lane, ahead *Vehicle) (ac Action) {
	aheadV, distance := 0.0, mathutil.INF
	if ahead != nil {
		aheadV = ahead.V()
		distance = ahead.x - l.self.x - ahead.Length()
	}
	ac.A = l.selfFollow(aheadV, distance, l.getTargetV(lane))
	return
}
