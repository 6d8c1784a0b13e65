package dataset

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v2"
)

const npzSchemaEntry = "schema.yaml"

// NPZSink 按episode分开的npz写出端
// 功能：每个episode写为zip中的arr_<i>.npy（形状为(步数, 列数)），与numpy.savez的命名一致
type NPZSink struct {
	path   string
	schema Schema
	file   *os.File
	zw     *zip.Writer
	count  int
}

// NewNPZSink 创建npz写出端，path无扩展名时补.npz
func NewNPZSink(path string) *NPZSink {
	return &NPZSink{path: withExt(path, ".npz")}
}

// Path 输出文件路径
func (s *NPZSink) Path() string {
	return s.path
}

func (s *NPZSink) Begin(_ context.Context, schema Schema) error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(s.path)
	if err != nil {
		return fmt.Errorf("create %s: %w", s.path, err)
	}
	s.file = f
	s.zw = zip.NewWriter(f)
	s.schema = schema
	data, err := yaml.Marshal(schema)
	if err != nil {
		return err
	}
	w, err := s.zw.Create(npzSchemaEntry)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func (s *NPZSink) WriteEpisode(_ context.Context, ep Episode) error {
	if s.zw == nil {
		return fmt.Errorf("npz: WriteEpisode before Begin")
	}
	if err := checkWidth(s.schema, ep); err != nil {
		return err
	}
	w, err := s.zw.Create(fmt.Sprintf("arr_%d.npy", s.count))
	if err != nil {
		return err
	}
	a := Array{Shape: []int{ep.Steps(), s.schema.Width()}, Data: make([]float32, 0, ep.Steps()*s.schema.Width())}
	for _, row := range ep.Rows {
		a.Data = append(a.Data, row...)
	}
	if err := writeNPY(w, a); err != nil {
		return err
	}
	s.count++
	return nil
}

func (s *NPZSink) Close() error {
	if s.zw == nil {
		return nil
	}
	err := s.zw.Close()
	if cerr := s.file.Close(); err == nil {
		err = cerr
	}
	s.zw, s.file = nil, nil
	if err == nil {
		log.Infof("wrote %s (%d episodes)", s.path, s.count)
	}
	return err
}

// ReadNPZ 读取npz文件
// 返回：按arr_<i>编号排序的数组列表，以及描述（文件中没有描述时为nil）
func ReadNPZ(path string) ([]Array, *Schema, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, nil, err
	}
	defer zr.Close()
	type indexed struct {
		i int
		a Array
	}
	var (
		arrays []indexed
		schema *Schema
	)
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			return nil, nil, err
		}
		switch {
		case f.Name == npzSchemaEntry:
			var s Schema
			data, rerr := io.ReadAll(rc)
			if rerr == nil {
				rerr = yaml.Unmarshal(data, &s)
			}
			if rerr != nil {
				rc.Close()
				return nil, nil, fmt.Errorf("%w: %s: %v", ErrBadFormat, f.Name, rerr)
			}
			schema = &s
		case strings.HasPrefix(f.Name, "arr_") && strings.HasSuffix(f.Name, ".npy"):
			i, aerr := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(f.Name, "arr_"), ".npy"))
			if aerr != nil {
				rc.Close()
				return nil, nil, fmt.Errorf("%w: entry %s", ErrBadFormat, f.Name)
			}
			a, rerr := readNPY(rc)
			if rerr != nil {
				rc.Close()
				return nil, nil, fmt.Errorf("%s: %w", f.Name, rerr)
			}
			arrays = append(arrays, indexed{i, a})
		}
		rc.Close()
	}
	slices.SortFunc(arrays, func(a, b indexed) int { return a.i - b.i })
	out := make([]Array, len(arrays))
	for i, a := range arrays {
		out[i] = a.a
	}
	return out, schema, nil
}
