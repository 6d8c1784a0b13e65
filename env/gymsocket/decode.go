package gymsocket

import (
	"fmt"

	"github.com/tsinghua-fib-lab/highway-datagen/env"
)

// decodeObservation 将JSON解码得到的观测（一维或二维数值数组）转换为Observation
func decodeObservation(raw any) (env.Observation, error) {
	items, ok := raw.([]any)
	if !ok {
		return env.Observation{}, fmt.Errorf("gymsocket: observation is %T, want array", raw)
	}
	if len(items) == 0 {
		return env.Observation{}, nil
	}
	if _, nested := items[0].([]any); !nested {
		data, err := toFloat32s(items)
		if err != nil {
			return env.Observation{}, err
		}
		return env.Observation{Rows: 1, Cols: len(data), Data: data}, nil
	}
	var obs env.Observation
	for i, item := range items {
		row, ok := item.([]any)
		if !ok {
			return env.Observation{}, fmt.Errorf("gymsocket: observation row %d is %T", i, item)
		}
		data, err := toFloat32s(row)
		if err != nil {
			return env.Observation{}, err
		}
		if i == 0 {
			obs.Cols = len(data)
		} else if len(data) != obs.Cols {
			return env.Observation{}, fmt.Errorf("gymsocket: ragged observation row %d: %d != %d", i, len(data), obs.Cols)
		}
		obs.Data = append(obs.Data, data...)
		obs.Rows++
	}
	return obs, nil
}

func toFloat32s(items []any) ([]float32, error) {
	out := make([]float32, len(items))
	for i, item := range items {
		f, ok := toFloat(item)
		if !ok {
			return nil, fmt.Errorf("gymsocket: observation value %v is %T", item, item)
		}
		out[i] = float32(f)
	}
	return out, nil
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// decodeInfo 解析step返回的info字典
// 说明：demo_action可以是[加速度, 转角]数组或{"acceleration":..,"steering":..}对象；缺失时DemoAction为nil
// 返回：info，以及服务端是否标记了截断（TimeLimit.truncated或truncated）
func decodeInfo(raw any, action int) (info env.Info, truncated bool) {
	info.Action = action
	m, ok := raw.(map[string]any)
	if !ok {
		return info, false
	}
	if v, ok := toFloat(m["speed"]); ok {
		info.Speed = v
	}
	if v, ok := m["crashed"].(bool); ok {
		info.Crashed = v
	}
	switch d := m["demo_action"].(type) {
	case []any:
		if len(d) == 2 {
			a, okA := toFloat(d[0])
			s, okS := toFloat(d[1])
			if okA && okS {
				info.DemoAction = &env.DemoAction{Acceleration: a, Steering: s}
			}
		}
	case map[string]any:
		a, okA := toFloat(d["acceleration"])
		s, okS := toFloat(d["steering"])
		if okA && okS {
			info.DemoAction = &env.DemoAction{Acceleration: a, Steering: s}
		}
	}
	if rewards, ok := m["rewards"].(map[string]any); ok {
		info.Rewards = make(map[string]float64, len(rewards))
		for k, v := range rewards {
			if f, ok := toFloat(v); ok {
				info.Rewards[k] = f
			}
		}
	}
	for _, key := range []string{"TimeLimit.truncated", "truncated"} {
		if v, ok := m[key].(bool); ok && v {
			truncated = true
		}
	}
	return info, truncated
}
