package highway

// Action 车辆动作结构体
// 功能：描述车辆在一个仿真帧内的控制动作，包括加速度、前轮转角与变道目标
type Action struct {
	A        float64 // 加速度（米/秒²）
	Steering float64 // 前轮转角（弧度）
	LCTarget *Lane   // 变道目标车道，nil表示不发起变道
}

// Update 更新车辆动作
// 功能：采用取最小的方式设置加速度，处理多个动作的冲突
// 算法说明：
// 1. 对于加速度，取所有动作中的最小值（最保守的制动）
// 2. 对于变道目标，如果存在冲突则记录错误，以后出现的为准
func (a *Action) Update(others ...Action) {
	for _, o := range others {
		if o.A < a.A {
			a.A = o.A
		}
		if o.LCTarget != nil {
			if a.LCTarget != nil && a.LCTarget != o.LCTarget {
				log.Error("start lane change conflict")
			}
			a.LCTarget = o.LCTarget
		}
	}
}

// startLaneChange 开始变道
func (a *Action) startLaneChange(lcTarget *Lane) {
	a.LCTarget = lcTarget
}
