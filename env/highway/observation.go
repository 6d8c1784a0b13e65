package highway

import (
	"math"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/highway-datagen/env"
	"github.com/tsinghua-fib-lab/highway-datagen/utils/config"
	"github.com/tsinghua-fib-lab/highway-datagen/utils/container"
)

const (
	perceptionDistance = 5 * maxSpeed // 感知距离（米）
)

// featureFunc 单个特征的计算函数，origin非nil时返回相对origin的值
type featureFunc func(v, origin *Vehicle) float64

// featureCatalogue Kinematics观测的特征表
var featureCatalogue = map[string]featureFunc{
	"presence": func(*Vehicle, *Vehicle) float64 { return 1 },
	"x": func(v, o *Vehicle) float64 {
		if o != nil {
			return v.x - o.x
		}
		return v.x
	},
	"y": func(v, o *Vehicle) float64 {
		if o != nil {
			return v.y - o.y
		}
		return v.y
	},
	"vx": func(v, o *Vehicle) float64 {
		vx, _ := v.velocity()
		if o != nil {
			ovx, _ := o.velocity()
			vx -= ovx
		}
		return vx
	},
	"vy": func(v, o *Vehicle) float64 {
		_, vy := v.velocity()
		if o != nil {
			_, ovy := o.velocity()
			vy -= ovy
		}
		return vy
	},
	"heading": func(v, _ *Vehicle) float64 { return v.heading },
	"cos_h":   func(v, _ *Vehicle) float64 { return math.Cos(v.heading) },
	"sin_h":   func(v, _ *Vehicle) float64 { return math.Sin(v.heading) },
	"cos_d": func(v, _ *Vehicle) float64 {
		cx, _ := v.destinationDirection()
		return cx
	},
	"sin_d": func(v, _ *Vehicle) float64 {
		_, cy := v.destinationDirection()
		return cy
	},
	"long_off": func(v, _ *Vehicle) float64 {
		long, _, _ := v.laneOffset()
		return long
	},
	"lat_off": func(v, _ *Vehicle) float64 {
		_, lat, _ := v.laneOffset()
		return lat
	},
	"ang_off": func(v, _ *Vehicle) float64 {
		_, _, ang := v.laneOffset()
		return ang
	},
}

// kinematics Kinematics观测生成器
type kinematics struct {
	c     config.Observation
	lanes int
}

// ranges 需要归一化的特征及其取值范围
func (k kinematics) ranges() map[string][2]float64 {
	y := laneWidth * float64(k.lanes)
	return map[string][2]float64{
		"x":  {-5 * maxSpeed, 5 * maxSpeed},
		"y":  {-y, y},
		"vx": {-2 * maxSpeed, 2 * maxSpeed},
		"vy": {-2 * maxSpeed, 2 * maxSpeed},
	}
}

// closeVehicles 观测者周围的车辆
// 功能：选取感知距离内的其他车辆（不观测后方时只保留后方2个车长以内的车辆），按纵向距离由近及远取前n辆
func (k kinematics) closeVehicles(road *Road, observer *Vehicle, n int) []*Vehicle {
	q := container.NewPriorityQueue[*Vehicle]()
	for _, v := range road.vehicles {
		if v == observer {
			continue
		}
		if math.Hypot(v.x-observer.x, v.y-observer.y) >= perceptionDistance {
			continue
		}
		dx := v.x - observer.x
		if !k.c.SeeBehind && dx <= -2*vehicleLength {
			continue
		}
		q.Push(v, math.Abs(dx))
	}
	q.Heapify()
	return q.PopN(n)
}

// observe 生成观测
// 功能：第一行为观测者自身（绝对坐标），其余行为最近的车辆，不足时补零
// 算法说明：
// 1. 按配置的特征顺序计算每行特征，非absolute时其余车辆的x/y/vx/vy为相对值
// 2. normalize时将x/y/vx/vy线性映射到[-1,1]，clip时截断
func (k kinematics) observe(road *Road, observer *Vehicle) env.Observation {
	obs := env.NewObservation(k.c.VehiclesCount, len(k.c.Features))
	rows := append([]*Vehicle{observer}, k.closeVehicles(road, observer, k.c.VehiclesCount-1)...)
	ranges := k.ranges()
	for i, v := range rows {
		var origin *Vehicle
		if i > 0 && !k.c.Absolute {
			origin = observer
		}
		row := obs.Row(i)
		for j, name := range k.c.Features {
			value := featureCatalogue[name](v, origin)
			if r, ok := ranges[name]; ok && k.c.Normalize {
				value = lmap(value, r, [2]float64{-1, 1})
				if k.c.Clip {
					value = lo.Clamp(value, -1, 1)
				}
			}
			row[j] = float32(value)
		}
	}
	return obs
}

// lmap 将v从区间x线性映射到区间y
func lmap(v float64, x, y [2]float64) float64 {
	return y[0] + (v-x[0])*(y[1]-y[0])/(x[1]-x[0])
}
