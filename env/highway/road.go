package highway

import (
	"fmt"
	"math"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/highway-datagen/utils/config"
	"github.com/tsinghua-fib-lab/highway-datagen/utils/container"
	"github.com/tsinghua-fib-lab/highway-datagen/utils/randengine"
)

// 方位常量
const (
	LEFT   = 0 // 左侧（车道编号减小的一侧）
	RIGHT  = 1 // 右侧（车道编号增大的一侧）
	BEFORE = 0 // 后方
	AFTER  = 1 // 前方
)

const (
	laneWidth  = 4.0     // 车道宽度（米）
	roadLength = 10000.0 // 道路长度（米）
)

type vehicleNode = container.ListNode[*Vehicle, struct{}]
type vehicleList = container.List[*Vehicle, struct{}]

// Lane 直线车道
// 功能：车道中心线为y=index*laneWidth的直线，沿x轴正方向行驶
type Lane struct {
	road       *Road
	index      int          // 车道编号，0为最左侧车道
	y          float64      // 中心线的y坐标
	maxV       float64      // 限速（米/秒）
	vehicles   *vehicleList // 车道上的车辆（按x升序）
	neighbours [2]*Lane     // 左/右相邻车道
}

func (l *Lane) String() string {
	return fmt.Sprintf("Lane{%d}", l.index)
}

// Index 车道编号
func (l *Lane) Index() int {
	return l.index
}

// MaxV 车道限速
func (l *Lane) MaxV() float64 {
	return l.maxV
}

// Width 车道宽度
func (l *Lane) Width() float64 {
	return laneWidth
}

// Length 车道长度
func (l *Lane) Length() float64 {
	return roadLength
}

// NeighborLane 相邻车道，不存在时返回nil
func (l *Lane) NeighborLane(side int) *Lane {
	return l.neighbours[side]
}

// LocalCoordinates 将坐标转换为车道坐标系（纵向距离，横向偏移）
func (l *Lane) LocalCoordinates(x, y float64) (long, lat float64) {
	return x, y - l.y
}

// HeadingAt 车道在纵向位置s处的方向（直线车道恒为0）
func (l *Lane) HeadingAt(float64) float64 {
	return 0
}

// End 车道终点坐标
func (l *Lane) End() (x, y float64) {
	return l.Length(), l.y
}

// Neighbours 查找车辆在本车道上的前后车
// 功能：按纵向位置查找本车道上离车辆最近的后车与前车（不含车辆自身）
func (l *Lane) Neighbours(v *Vehicle) (rear, front *Vehicle) {
	behind, ahead := l.vehicles.Around(v.x, v.node)
	if behind != nil {
		rear = behind.Value
	}
	if ahead != nil {
		front = ahead.Value
	}
	return
}

// Road 多车道直线道路
type Road struct {
	lanes    []*Lane
	vehicles []*Vehicle
	nextID   int32
}

// newRoad 创建道路
func newRoad(lanesCount int, speedLimit float64) *Road {
	r := &Road{}
	r.lanes = make([]*Lane, lanesCount)
	for i := range r.lanes {
		r.lanes[i] = &Lane{
			road:     r,
			index:    i,
			y:        float64(i) * laneWidth,
			maxV:     speedLimit,
			vehicles: &vehicleList{ID: fmt.Sprintf("lane %d vehicles", i)},
		}
	}
	for i, l := range r.lanes {
		if i > 0 {
			l.neighbours[LEFT] = r.lanes[i-1]
		}
		if i+1 < len(r.lanes) {
			l.neighbours[RIGHT] = r.lanes[i+1]
		}
	}
	return r
}

// Lanes 全部车道
func (r *Road) Lanes() []*Lane {
	return r.lanes
}

// Vehicles 全部车辆（按生成顺序，受控车辆在前）
func (r *Road) Vehicles() []*Vehicle {
	return r.vehicles
}

// closestLane 离y最近的车道
func (r *Road) closestLane(y float64) *Lane {
	i := int(math.Round(y / laneWidth))
	return r.lanes[lo.Clamp(i, 0, len(r.lanes)-1)]
}

// OnRoad 坐标是否在路面范围内
func (r *Road) OnRoad(x, y float64) bool {
	top := r.lanes[len(r.lanes)-1]
	half := top.Width() / 2
	return x >= 0 && x <= top.Length() && y >= -half && y <= top.y+half
}

// merging 查找正在从其他车道并入target、且纵向位置相对self在(-behind, ahead)内的车辆
// 说明：同一帧内先作出决策的车辆已经设置了targetLane，后决策的车辆可以看到
func (r *Road) merging(self *Vehicle, target *Lane, behind, ahead float64) *Vehicle {
	for _, v := range r.vehicles {
		if v == self || v.crashed || v.targetLane != target || v.lane == target {
			continue
		}
		if dx := v.x - self.x; dx > -behind && dx < ahead {
			return v
		}
	}
	return nil
}

// addVehicle 将车辆加入道路与车道链表
func (r *Road) addVehicle(v *Vehicle) {
	v.id = r.nextID
	r.nextID++
	v.road = r
	v.lane = r.closestLane(v.y)
	v.targetLane = v.lane
	v.node = &vehicleNode{S: v.x, Value: v}
	v.lane.vehicles.Merge([]*vehicleNode{v.node})
	r.vehicles = append(r.vehicles, v)
}

// createRandom 在随机车道上、当前最前方车辆之前生成一辆车
// 功能：按车辆密度与车道数决定与前车的间距，速度未指定时在限速的[0.7,0.8]倍之间采样
// 参数：speed-初始速度（负数表示随机），spacing-间距系数，generator-随机数引擎
// 算法说明：
// 1. offset = spacing * (12 + speed) * exp(-5/40 * 车道数)
// 2. x0 = 现有车辆最大x（无车辆时为3*offset），再加上offset*U(0.9,1.1)
func (r *Road) createRandom(speed, spacing float64, generator *randengine.Engine) *Vehicle {
	lane := r.lanes[generator.Intn(len(r.lanes))]
	if speed < 0 {
		speed = generator.Uniform(0.7*lane.maxV, 0.8*lane.maxV)
	}
	defaultSpacing := 12 + speed
	offset := spacing * defaultSpacing * math.Exp(-5.0/40*float64(len(r.lanes)))
	x0 := 3 * offset
	if len(r.vehicles) > 0 {
		x0 = lo.MaxBy(r.vehicles, func(a, b *Vehicle) bool { return a.x > b.x }).x
	}
	x0 += offset * generator.Uniform(0.9, 1.1)
	v := newVehicle(x0, lane.y, lane.HeadingAt(x0), speed)
	r.addVehicle(v)
	return v
}

// nearSplit 将n尽量均匀地分成bins份
func nearSplit(n, bins int) []int {
	q, rem := n/bins, n%bins
	parts := make([]int, bins)
	for i := range parts {
		parts[i] = q
		if i < rem {
			parts[i]++
		}
	}
	return parts
}

// populate 生成全部车辆
// 功能：依次生成每辆受控车辆及其后的背景车辆
// 返回：受控车辆列表
func (r *Road) populate(c config.Env, generator *randengine.Engine) []*Vehicle {
	controlled := make([]*Vehicle, 0, c.ControlledVehicles)
	for _, others := range nearSplit(c.VehiclesCount, c.ControlledVehicles) {
		ego := r.createRandom(c.EgoSpeed, c.EgoSpacing, generator)
		ego.controlled = true
		ego.controller = newController(ego, defaultBehavior(), generator)
		controlled = append(controlled, ego)
		for i := 0; i < others; i++ {
			v := r.createRandom(-1, 1/c.VehiclesDensity, generator)
			b := defaultBehavior()
			if c.RandomizeBehavior {
				b = randomBehavior(generator)
			}
			v.controller = newController(v, b, generator)
		}
	}
	return controlled
}

// act 所有车辆计算本帧动作
func (r *Road) act(t, dt float64) {
	for _, v := range r.vehicles {
		v.act(t, dt)
	}
}

// step 所有车辆按本帧动作运动
func (r *Road) step(dt float64) {
	for _, v := range r.vehicles {
		v.step(dt)
	}
}

// prepare 运动后维护车道链表
// 功能：更新链表键值，处理换道车辆在车道链表间的迁移，并恢复链表有序
func (r *Road) prepare() {
	for _, v := range r.vehicles {
		v.node.S = v.x
		lane := r.closestLane(v.y)
		if lane != v.lane {
			v.lane.vehicles.Remove(v.node)
			v.lane = lane
			lane.vehicles.Merge([]*vehicleNode{v.node})
		}
	}
	for _, l := range r.lanes {
		l.vehicles.Resort()
	}
}

// checkCollisions 碰撞检测，相撞的两车都标记为crashed
func (r *Road) checkCollisions() {
	for i, a := range r.vehicles {
		for _, b := range r.vehicles[i+1:] {
			if a.crashed && b.crashed {
				continue
			}
			if a.collides(b) {
				a.crashed = true
				b.crashed = true
			}
		}
	}
}
