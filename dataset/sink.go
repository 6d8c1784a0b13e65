// Package dataset 数据集的写出与读取
// 支持堆叠的npy矩阵、按episode分开的npz/protobuf流，以及逐episode写入MongoDB
package dataset

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/tsinghua-fib-lab/highway-datagen/utils/config"
)

var (
	ErrUnknownFormat = errors.New("unknown dataset format")
	ErrBadFormat     = errors.New("bad dataset file")
)

// Sink 数据集写出端
// 说明：调用顺序为Begin、若干次WriteEpisode、Close；出错或中断时仍需调用Close，已写入的episode会被保留
type Sink interface {
	// Begin 写出数据集描述
	Begin(ctx context.Context, s Schema) error
	// WriteEpisode 写出一个episode
	WriteEpisode(ctx context.Context, ep Episode) error
	// Close 完成写出并释放资源
	Close() error
}

// New 根据输出配置创建写出端
func New(out config.Output) (Sink, error) {
	switch out.Format {
	case config.FormatNPY:
		return NewStackedSink(out.Path), nil
	case config.FormatNPZ:
		return NewNPZSink(out.Path), nil
	case config.FormatPB:
		return NewPBSink(out.Path), nil
	case config.FormatMongo:
		return NewMongoSink(out.Mongo)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, out.Format)
	}
}

// withExt 路径没有扩展名时补上ext
func withExt(path, ext string) string {
	if filepath.Ext(path) == "" {
		return path + ext
	}
	return path
}

func checkWidth(s Schema, ep Episode) error {
	for i, row := range ep.Rows {
		if len(row) != s.Width() {
			return fmt.Errorf("episode %d step %d: row width %d, schema width %d", ep.Index, i, len(row), s.Width())
		}
	}
	return nil
}
