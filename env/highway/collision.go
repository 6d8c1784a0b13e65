package highway

import "math"

type vec2 struct{ x, y float64 }

func (a vec2) dot(b vec2) float64 { return a.x*b.x + a.y*b.y }

// corners 车辆矩形的四个顶点
func (v *Vehicle) corners() [4]vec2 {
	c, s := math.Cos(v.heading), math.Sin(v.heading)
	hl, hw := vehicleLength/2, vehicleWidth/2
	var out [4]vec2
	for i, p := range [4]vec2{{-hl, -hw}, {-hl, hw}, {hl, hw}, {hl, -hw}} {
		out[i] = vec2{v.x + p.x*c - p.y*s, v.y + p.x*s + p.y*c}
	}
	return out
}

// axes 车辆矩形的两条边方向（分离轴候选）
func (v *Vehicle) axes() [2]vec2 {
	c, s := math.Cos(v.heading), math.Sin(v.heading)
	return [2]vec2{{c, s}, {-s, c}}
}

func project(corners [4]vec2, axis vec2) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, p := range corners {
		d := p.dot(axis)
		lo = math.Min(lo, d)
		hi = math.Max(hi, d)
	}
	return
}

// collides 判断两车的有向矩形是否相交
// 算法说明：
// 1. 中心距离超过对角线长度时必然不相交
// 2. 分离轴定理：在两车的4条边法向上投影，任一方向投影不重叠即不相交
func (v *Vehicle) collides(o *Vehicle) bool {
	if v == o {
		return false
	}
	if math.Hypot(o.x-v.x, o.y-v.y) > math.Hypot(vehicleLength, vehicleWidth) {
		return false
	}
	ca, cb := v.corners(), o.corners()
	va, vb := v.axes(), o.axes()
	for _, axis := range [4]vec2{va[0], va[1], vb[0], vb[1]} {
		minA, maxA := project(ca, axis)
		minB, maxB := project(cb, axis)
		if maxA <= minB || maxB <= minA {
			return false
		}
	}
	return true
}
