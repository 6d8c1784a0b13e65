package highway

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

var recorderHeader = []string{
	"step", "t", "vehicle", "controlled", "lane", "x", "y", "heading", "speed", "acceleration", "steering", "crashed",
}

// recorder 帧录制器
// 功能：每个episode一个CSV文件，逐仿真帧记录所有车辆的状态
type recorder struct {
	dir    string
	file   *os.File
	writer *csv.Writer
}

// newRecorder 创建录制器，目录不存在时自动创建
func newRecorder(dir string) (*recorder, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create record dir: %w", err)
	}
	return &recorder{dir: dir}, nil
}

// begin 结束上一个episode的录制并开始新的episode
func (r *recorder) begin(seed uint64) error {
	if err := r.end(); err != nil {
		return err
	}
	path := filepath.Join(r.dir, fmt.Sprintf("episode_%06d.csv", seed))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create record file: %w", err)
	}
	r.file = f
	r.writer = csv.NewWriter(f)
	return r.writer.Write(recorderHeader)
}

// frame 记录一帧
func (r *recorder) frame(step int32, t float64, road *Road) error {
	if r.writer == nil {
		return nil
	}
	f := func(x float64) string { return strconv.FormatFloat(x, 'f', 4, 64) }
	for _, v := range road.vehicles {
		row := []string{
			strconv.Itoa(int(step)),
			f(t),
			strconv.Itoa(int(v.id)),
			strconv.FormatBool(v.controlled),
			strconv.Itoa(v.lane.index),
			f(v.x),
			f(v.y),
			f(v.heading),
			f(v.speed),
			f(v.action.A),
			f(v.action.Steering),
			strconv.FormatBool(v.crashed),
		}
		if err := r.writer.Write(row); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
	}
	return nil
}

// end 刷新并关闭当前文件
func (r *recorder) end() error {
	if r.writer == nil {
		return nil
	}
	r.writer.Flush()
	err := r.writer.Error()
	if cerr := r.file.Close(); err == nil {
		err = cerr
	}
	r.writer, r.file = nil, nil
	return err
}
