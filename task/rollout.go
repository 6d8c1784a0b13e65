package task

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/tsinghua-fib-lab/highway-datagen/dataset"
	"github.com/tsinghua-fib-lab/highway-datagen/env"
	"github.com/tsinghua-fib-lab/highway-datagen/utils/randengine"
)

var (
	heartBeatInterval = flag.Int("log.heartbeat_interval", 10, "心跳日志间隔episode数")
)

// ErrStopped 任务被Close中止
var ErrStopped = errors.New("task stopped")

// Run 运行
// 功能：依次采集配置数量的episode，每个episode结束后立即交给写出端
// 返回：运行统计；出错或ctx取消时返回已完成部分的统计与错误
// 算法说明：
// 1. 可选地在每个episode开始前重新应用环境配置
// 2. 以episode编号为种子reset环境，首个episode开始时写出数据集描述
// 3. 每步从动作空间采样并step，记录观测（与控制器实际动作）
// 4. 环境终止、按配置的截断或达到步数上限时结束episode
// 5. 无论成功与否都关闭写出端，已写出的episode得以保留
func (ctx *Context) Run(c context.Context) (summary Summary, err error) {
	start := time.Now()
	defer func() {
		if cerr := ctx.sink.Close(); cerr != nil {
			if err == nil {
				err = fmt.Errorf("close sink: %w", cerr)
			} else {
				log.Errorf("close sink: %v", cerr)
			}
		}
		ctx.summary.Elapsed = time.Since(start)
		summary = ctx.summary
	}()

	cc := ctx.runtimeConfig.All.Collect
	for i := 0; i < cc.Episodes; i++ {
		if err := ctx.interrupted(c); err != nil {
			log.Warnf("stopped before episode %d: %v", i, err)
			return Summary{}, err
		}
		ep, err := ctx.episode(c, i)
		if err != nil {
			return Summary{}, fmt.Errorf("episode %d: %w", i, err)
		}
		if err := ctx.sink.WriteEpisode(c, ep); err != nil {
			return Summary{}, fmt.Errorf("write episode %d: %w", i, err)
		}
		ctx.account(ep)
		if (i+1)%max(*heartBeatInterval, 1) == 0 {
			log.Infof("EPISODE: %d/%d steps=%d", i+1, cc.Episodes, ctx.summary.Steps)
		}
	}
	ctx.summary.Elapsed = time.Since(start)
	log.Infof("run complete: %v", ctx.summary)
	return ctx.summary, nil
}

// interrupted ctx被取消或任务被Close时返回错误
func (ctx *Context) interrupted(c context.Context) error {
	if err := c.Err(); err != nil {
		return err
	}
	if ctx.closed.Load() {
		return ErrStopped
	}
	return nil
}

// episode 采集一个episode
// 说明：中途取消时丢弃未完成的episode
func (ctx *Context) episode(c context.Context, index int) (dataset.Episode, error) {
	rc := ctx.runtimeConfig
	cc := rc.All.Collect
	if cc.ReconfigureEachEpisode {
		if err := ctx.env.Configure(rc.All.Env); err != nil {
			return dataset.Episode{}, fmt.Errorf("configure: %w", err)
		}
	}
	seed := uint64(index)
	if _, _, err := ctx.env.Reset(seed); err != nil {
		return dataset.Episode{}, fmt.Errorf("reset: %w", err)
	}
	if err := ctx.begin(c); err != nil {
		return dataset.Episode{}, err
	}

	// 环境内部的随机数引擎会叠加种子偏移量，记录实际使用的种子
	ep := dataset.Episode{Index: index, Seed: seed + randengine.SeedOffset(), Rows: make([][]float32, 0, cc.StepCap)}
	space := ctx.env.ActionSpace()
	for len(ep.Rows) < cc.StepCap {
		if err := ctx.interrupted(c); err != nil {
			return dataset.Episode{}, err
		}
		res, err := ctx.env.Step(space.Sample())
		if err != nil {
			return dataset.Episode{}, fmt.Errorf("step %d: %w", len(ep.Rows), err)
		}
		row, err := ctx.row(res)
		if err != nil {
			return dataset.Episode{}, fmt.Errorf("step %d: %w", len(ep.Rows), err)
		}
		ep.Rows = append(ep.Rows, row)
		if res.Terminated {
			ep.Terminated = true
			break
		}
		if res.Truncated && cc.StopOnTruncation {
			ep.Truncated = true
			break
		}
	}
	log.Debugf("episode %d: steps=%d terminated=%v truncated=%v", index, ep.Steps(), ep.Terminated, ep.Truncated)
	return ep, nil
}

// begin 首次调用时生成数据集描述并交给写出端
func (ctx *Context) begin(c context.Context) error {
	if ctx.schema != nil {
		return nil
	}
	s := dataset.NewSchema(ctx.runtimeConfig, ctx.env.FeatureNames())
	if err := ctx.sink.Begin(c, s); err != nil {
		return fmt.Errorf("begin dataset: %w", err)
	}
	ctx.schema = &s
	log.Infof("dataset %s: %d columns", s.RunID, s.Width())
	return nil
}

// row 一步的记录：展平的观测，按配置附加(加速度, 转角)
func (ctx *Context) row(res env.StepResult) ([]float32, error) {
	rc := ctx.runtimeConfig
	if res.Obs.Len() != rc.ObsWidth {
		return nil, fmt.Errorf("observation has %d values, want %d", res.Obs.Len(), rc.ObsWidth)
	}
	row := make([]float32, rc.ObsWidth, rc.RowWidth)
	copy(row, res.Obs.Data)
	if !rc.All.Collect.RecordAction {
		return row, nil
	}
	demo := res.Info.DemoAction
	if demo == nil {
		log.Warn("step info carries no demo action, recording zeros")
		demo = &env.DemoAction{}
	}
	return append(row, float32(demo.Acceleration), float32(demo.Steering)), nil
}

// account 累计统计
func (ctx *Context) account(ep dataset.Episode) {
	s := &ctx.summary
	s.Episodes++
	s.Steps += ep.Steps()
	switch {
	case ep.Terminated:
		s.Terminated++
	case ep.Truncated:
		s.Truncated++
	default:
		s.Capped++
	}
}
