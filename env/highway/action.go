package highway

import (
	"math"

	"github.com/tsinghua-fib-lab/highway-datagen/utils/randengine"
)

// DiscreteMetaAction的动作编号
const (
	LaneLeft  = 0
	Idle      = 1
	LaneRight = 2
	Faster    = 3
	Slower    = 4

	metaActionCount = 5
	speedStep       = 5.0 // FASTER/SLOWER每次调整的巡航速度（米/秒）
)

// metaActionNames 动作名称
var metaActionNames = [metaActionCount]string{"LANE_LEFT", "IDLE", "LANE_RIGHT", "FASTER", "SLOWER"}

// metaSpace DiscreteMetaAction动作空间
type metaSpace struct {
	generator *randengine.Engine
}

func newMetaSpace() *metaSpace {
	return &metaSpace{generator: randengine.New(0)}
}

func (s *metaSpace) Size() int {
	return metaActionCount
}

func (s *metaSpace) Sample() int {
	return s.generator.Intn(metaActionCount)
}

func (s *metaSpace) Seed(seed uint64) {
	s.generator = randengine.New(seed)
}

// applyMetaAction 将元动作作用于受控车辆的目标车道与巡航速度
// 说明：正在变道或目标车道不存在时忽略换道动作；巡航速度限制在[speedStep, maxSpeed]
func applyMetaAction(v *Vehicle, action int) {
	if v.cruiseV <= 0 {
		v.cruiseV = v.speed
	}
	switch action {
	case LaneLeft, LaneRight:
		side := LEFT
		if action == LaneRight {
			side = RIGHT
		}
		if v.targetLane != v.lane {
			return
		}
		if target := v.lane.NeighborLane(side); target != nil {
			v.targetLane = target
		}
	case Faster:
		v.cruiseV = math.Min(v.cruiseV+speedStep, maxSpeed)
	case Slower:
		v.cruiseV = math.Max(v.cruiseV-speedStep, speedStep)
	case Idle:
	default:
		log.Warnf("unknown meta action %d, treated as IDLE", action)
	}
}
