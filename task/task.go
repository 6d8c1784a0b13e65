package task

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/tsinghua-fib-lab/highway-datagen/dataset"
	"github.com/tsinghua-fib-lab/highway-datagen/env"
	"github.com/tsinghua-fib-lab/highway-datagen/utils/config"
)

// Summary 一次运行的统计
type Summary struct {
	Episodes   int           // 写出的episode数
	Steps      int           // 总步数
	Terminated int           // 因碰撞终止的episode数
	Truncated  int           // 因到达时长结束的episode数
	Capped     int           // 因到达步数上限结束的episode数
	Elapsed    time.Duration // 耗时
}

func (s Summary) String() string {
	return fmt.Sprintf(
		"episodes=%d steps=%d terminated=%d truncated=%d capped=%d elapsed=%v",
		s.Episodes, s.Steps, s.Terminated, s.Truncated, s.Capped, s.Elapsed.Round(time.Millisecond),
	)
}

// Context 数据采集任务上下文
// 功能：持有一次采集任务的环境、写出端与运行时配置
// 说明：环境在episode之间复用（只reset不重建），由调用方负责关闭
type Context struct {
	// 关闭指令
	closed atomic.Bool

	// 运行时配置文件
	runtimeConfig *config.RuntimeConfig
	// 环境
	env env.Env
	// 数据集写出端
	sink dataset.Sink
	// 数据集描述，首个episode开始时生成
	schema *dataset.Schema

	summary Summary
}

// NewContext 创建数据采集任务上下文
// 参数：
//   - rc: 运行时配置
//   - e: 环境
//   - sink: 数据集写出端，Run结束时关闭
func NewContext(rc *config.RuntimeConfig, e env.Env, sink dataset.Sink) *Context {
	return &Context{
		runtimeConfig: rc,
		env:           e,
		sink:          sink,
	}
}

func (ctx *Context) RuntimeConfig() *config.RuntimeConfig {
	return ctx.runtimeConfig
}

func (ctx *Context) Env() env.Env {
	return ctx.env
}

// Schema 数据集描述，Run开始前为nil
func (ctx *Context) Schema() *dataset.Schema {
	return ctx.schema
}

// Summary 当前的统计
func (ctx *Context) Summary() Summary {
	return ctx.summary
}

// Close 请求在当前步结束后停止
func (ctx *Context) Close() {
	ctx.closed.Store(true)
}
