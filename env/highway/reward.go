package highway

import (
	"math"

	"github.com/samber/lo"
)

const (
	collisionReward = -1.0 // 碰撞奖励
	rightLaneReward = 0.1  // 最右侧车道奖励
	highSpeedReward = 0.4  // 高速奖励
)

// rewardSpeedRange 获得全部高速奖励的速度区间（米/秒）
var rewardSpeedRange = [2]float64{20, 30}

// rewards 奖励分项
func (r *Road) rewards(ego *Vehicle) map[string]float64 {
	forwardSpeed := ego.speed * math.Cos(ego.heading)
	rightLane := float64(ego.targetLane.index) / float64(max(len(r.lanes)-1, 1))
	return map[string]float64{
		"collision":  lo.Ternary(ego.crashed, 1.0, 0.0),
		"right_lane": rightLane,
		"high_speed": lo.Clamp(lmap(forwardSpeed, rewardSpeedRange, [2]float64{0, 1}), 0, 1),
		"on_road":    lo.Ternary(r.OnRoad(ego.x, ego.y), 1.0, 0.0),
	}
}

// reward 总奖励
// 算法说明：各分项加权求和后归一化到[0,1]，离开路面时为0
func reward(parts map[string]float64) float64 {
	sum := collisionReward*parts["collision"] +
		rightLaneReward*parts["right_lane"] +
		highSpeedReward*parts["high_speed"]
	sum = lmap(sum, [2]float64{collisionReward, highSpeedReward + rightLaneReward}, [2]float64{0, 1})
	return sum * parts["on_road"]
}
