package env

// flattenEnv 将结构化观测展平为一维向量的包装
type flattenEnv struct {
	Env
}

// Flatten 包装环境，使Reset/Step返回1×N的观测
func Flatten(e Env) Env {
	if _, ok := e.(*flattenEnv); ok {
		return e
	}
	return &flattenEnv{Env: e}
}

// Unwrap 获取被包装的环境
func (f *flattenEnv) Unwrap() Env {
	return f.Env
}

func (f *flattenEnv) Reset(seed uint64) (Observation, Info, error) {
	obs, info, err := f.Env.Reset(seed)
	return obs.Flat(), info, err
}

func (f *flattenEnv) Step(action int) (StepResult, error) {
	res, err := f.Env.Step(action)
	res.Obs = res.Obs.Flat()
	return res, err
}

// Unwrap 逐层剥除包装，返回最内层环境
func Unwrap(e Env) Env {
	for {
		w, ok := e.(interface{ Unwrap() Env })
		if !ok {
			return e
		}
		e = w.Unwrap()
	}
}
