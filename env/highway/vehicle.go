package highway

import (
	"fmt"
	"math"

	"github.com/samber/lo"
)

const (
	vehicleLength = 5.0  // 车辆长度（米）
	vehicleWidth  = 2.0  // 车辆宽度（米）
	maxSpeed      = 40.0 // 最大速度（米/秒）
	minSpeed      = -40.0
)

// Vehicle 道路上的车辆
// 功能：保存车辆的位姿、速度、所在车道与控制器，受控车辆与背景车辆共用同一结构
type Vehicle struct {
	id      int32
	road    *Road
	x, y    float64 // 车辆中心坐标（米）
	heading float64 // 航向角（弧度），0为x轴正方向
	speed   float64 // 速度（米/秒）

	lane       *Lane   // 当前所在车道（离车辆中心最近的车道）
	targetLane *Lane   // 目标车道，变道时与lane不同
	cruiseV    float64 // 受控车辆的巡航速度，0表示按车道限速行驶

	controlled bool // 是否为受控车辆
	crashed    bool // 是否已经发生碰撞

	node       *vehicleNode // 车道链表节点
	controller *controller  // 车辆控制器
	action     Action       // 最近一帧执行的动作
}

func newVehicle(x, y, heading, speed float64) *Vehicle {
	return &Vehicle{
		x:       x,
		y:       y,
		heading: heading,
		speed:   speed,
	}
}

func (v *Vehicle) String() string {
	return fmt.Sprintf("Vehicle{%d x=%.2f y=%.2f v=%.2f}", v.id, v.x, v.y, v.speed)
}

// ID 车辆编号
func (v *Vehicle) ID() int32 {
	return v.id
}

// V 速度
func (v *Vehicle) V() float64 {
	return v.speed
}

// Length 车辆长度
func (v *Vehicle) Length() float64 {
	return vehicleLength
}

// Position 车辆中心坐标
func (v *Vehicle) Position() (x, y float64) {
	return v.x, v.y
}

// Heading 航向角
func (v *Vehicle) Heading() float64 {
	return v.heading
}

// Lane 当前车道
func (v *Vehicle) Lane() *Lane {
	return v.lane
}

// Crashed 是否已经碰撞
func (v *Vehicle) Crashed() bool {
	return v.crashed
}

// LastAction 最近一帧执行的动作
func (v *Vehicle) LastAction() Action {
	return v.action
}

// velocity 速度向量
func (v *Vehicle) velocity() (vx, vy float64) {
	return v.speed * math.Cos(v.heading), v.speed * math.Sin(v.heading)
}

// destination 行驶目的地：当前车道终点
func (v *Vehicle) destination() (x, y float64) {
	return v.lane.End()
}

// destinationDirection 指向目的地的单位向量，已到达时为零向量
func (v *Vehicle) destinationDirection() (cx, cy float64) {
	dx, dy := v.destination()
	dx -= v.x
	dy -= v.y
	norm := math.Hypot(dx, dy)
	if norm == 0 {
		return 0, 0
	}
	return dx / norm, dy / norm
}

// laneOffset 车辆在当前车道坐标系下的纵向位置、横向偏移与相对航向
func (v *Vehicle) laneOffset() (long, lat, ang float64) {
	long, lat = v.lane.LocalCoordinates(v.x, v.y)
	ang = wrapToPi(v.heading - v.lane.HeadingAt(long))
	return
}

// act 计算本帧动作
// 说明：已碰撞的车辆不再受控制器控制，以-speed的加速度刹停
func (v *Vehicle) act(t, dt float64) {
	if v.crashed {
		v.action = Action{A: -v.speed}
		return
	}
	v.action = v.controller.update(t, dt)
	if v.action.LCTarget != nil {
		v.targetLane = v.action.LCTarget
	}
}

// 计算本时刻的速度与移动距离
// v(t)=v(t-1)+acc*dt, ds=v(t-1)*dt+acc*dt*dt/2
func computeVAndDistance(v, a, dt float64) (float64, float64) {
	dv := a * dt
	if v+dv < 0 {
		// 刹车到停止
		return 0, v * v / 2 / -a
	}
	return v + dv, (v + dv/2) * dt
}

// step 按运动学自行车模型推进dt秒
// 算法说明：
// 1. 超出速度范围时将加速度修正为回到范围内的方向
// 2. 质心侧偏角 beta = atan(tan(δ)/2)
// 3. 沿 heading+beta 方向移动距离d，航向变化 d*sin(beta)/(L/2)
func (v *Vehicle) step(dt float64) {
	ac := v.action
	if v.speed > maxSpeed {
		ac.A = math.Min(ac.A, maxSpeed-v.speed)
	} else if v.speed < minSpeed {
		ac.A = math.Max(ac.A, minSpeed-v.speed)
	}
	beta := math.Atan(.5 * math.Tan(ac.Steering))
	speed, d := computeVAndDistance(v.speed, ac.A, dt)
	v.x += d * math.Cos(v.heading+beta)
	v.y += d * math.Sin(v.heading+beta)
	v.heading = wrapToPi(v.heading + d*math.Sin(beta)/(vehicleLength/2))
	v.speed = lo.Clamp(speed, minSpeed, maxSpeed)
}

// wrapToPi 将角度归一化到[-π, π)
func wrapToPi(a float64) float64 {
	return math.Mod(math.Mod(a+math.Pi, 2*math.Pi)+2*math.Pi, 2*math.Pi) - math.Pi
}
