package dataset

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v2"
)

// StackedSink 堆叠格式写出端
// 功能：将所有episode的每步记录首列附加episode编号后纵向堆叠，转置为(列数, 总步数)的矩阵写为一个npy文件
// 说明：矩阵在Close时一次写出，描述写在同名的.schema.yaml中
type StackedSink struct {
	path     string
	schema   Schema
	episodes []Episode
	total    int
	began    bool
}

// NewStackedSink 创建堆叠格式写出端，path无扩展名时补.npy
func NewStackedSink(path string) *StackedSink {
	return &StackedSink{path: withExt(path, ".npy")}
}

// Path 输出文件路径
func (s *StackedSink) Path() string {
	return s.path
}

// SchemaPath 描述文件路径
func (s *StackedSink) SchemaPath() string {
	return strings.TrimSuffix(s.path, filepath.Ext(s.path)) + ".schema.yaml"
}

func (s *StackedSink) Begin(_ context.Context, schema Schema) error {
	schema.IndexColumn = true
	s.schema = schema
	s.began = true
	return nil
}

func (s *StackedSink) WriteEpisode(_ context.Context, ep Episode) error {
	if err := checkWidth(s.schema, ep); err != nil {
		return err
	}
	s.episodes = append(s.episodes, ep)
	s.total += ep.Steps()
	return nil
}

// matrix 堆叠并转置
// 返回：(1+列数)×总步数的数组，第0行为episode编号
func (s *StackedSink) matrix() Array {
	width := s.schema.Width() + 1
	if s.total == 0 {
		return Array{Shape: []int{width, 0}}
	}
	stacked := mat.NewDense(s.total, width, nil)
	r := 0
	row := make([]float64, width)
	for _, ep := range s.episodes {
		for _, step := range ep.Rows {
			row[0] = float64(ep.Index)
			for j, v := range step {
				row[j+1] = float64(v)
			}
			stacked.SetRow(r, row)
			r++
		}
	}
	transposed := mat.DenseCopyOf(stacked.T())
	raw := transposed.RawMatrix()
	data := make([]float32, 0, raw.Rows*raw.Cols)
	for i := 0; i < raw.Rows; i++ {
		for _, v := range raw.Data[i*raw.Stride : i*raw.Stride+raw.Cols] {
			data = append(data, float32(v))
		}
	}
	return Array{Shape: []int{raw.Rows, raw.Cols}, Data: data}
}

// Close 写出npy与描述文件
// 说明：未调用Begin时不写任何文件
func (s *StackedSink) Close() error {
	if !s.began {
		return nil
	}
	s.began = false
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(s.path)
	if err != nil {
		return fmt.Errorf("create %s: %w", s.path, err)
	}
	a := s.matrix()
	if err := writeNPY(f, a); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", s.path, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	schema, err := yaml.Marshal(s.schema)
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.SchemaPath(), schema, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", s.SchemaPath(), err)
	}
	log.Infof("wrote %s with shape %v (%d episodes)", s.path, a.Shape, len(s.episodes))
	return nil
}

// ReadSchemaFile 读取YAML描述文件
func ReadSchemaFile(path string) (Schema, error) {
	var s Schema
	data, err := os.ReadFile(path)
	if err != nil {
		return s, err
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("%w: %v", ErrBadFormat, err)
	}
	return s, nil
}

// ReadNPY 读取npy文件
func ReadNPY(path string) (Array, error) {
	f, err := os.Open(path)
	if err != nil {
		return Array{}, err
	}
	defer f.Close()
	return readNPY(f)
}
