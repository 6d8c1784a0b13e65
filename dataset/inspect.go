package dataset

import (
	"fmt"
	"io"
	"path/filepath"
	"text/tabwriter"

	"gonum.org/v1/gonum/stat"
)

// Summary 数据集概要
type Summary struct {
	Path     string    // 文件路径
	Format   string    // 扩展名
	Shape    []int     // npy为矩阵形状；npz/pb为(episode数, 总步数, 列数)
	Episodes int       // episode数
	Columns  []string  // 列名（无描述时为空）
	Mean     []float64 // 每列均值
	Std      []float64 // 每列标准差
	Steps    []int     // 每个episode的步数（npy为空）
	Schema   *Schema   // 数据集描述
}

// Inspect 读取数据集并计算每列的均值与标准差
// 说明：堆叠格式的npy中每行是一个特征，其余格式中每列是一个特征
func Inspect(path string) (Summary, error) {
	sum := Summary{Path: path, Format: filepath.Ext(path)}
	var columns [][]float64
	switch sum.Format {
	case ".npy":
		a, err := ReadNPY(path)
		if err != nil {
			return sum, err
		}
		if len(a.Shape) != 2 {
			return sum, fmt.Errorf("%w: expected a 2-D array, got shape %v", ErrBadFormat, a.Shape)
		}
		sum.Shape = a.Shape
		columns = make([][]float64, a.Shape[0])
		for i := range columns {
			columns[i] = make([]float64, a.Shape[1])
			for j := range columns[i] {
				columns[i][j] = float64(a.Data[i*a.Shape[1]+j])
			}
		}
		if a.Shape[1] > 0 {
			// 第0行为episode编号，按采集顺序递增
			sum.Episodes = int(a.Data[a.Shape[1]-1]) + 1
		}
		if s, err := ReadSchemaFile(path[:len(path)-len(sum.Format)] + ".schema.yaml"); err == nil {
			sum.Schema = &s
			sum.Columns = append([]string{ColumnIndex}, s.Columns...)
		}
	case ".npz":
		arrays, schema, err := ReadNPZ(path)
		if err != nil {
			return sum, err
		}
		sum.Schema = schema
		episodes := make([]Episode, len(arrays))
		for i, a := range arrays {
			if len(a.Shape) != 2 {
				return sum, fmt.Errorf("%w: arr_%d has shape %v", ErrBadFormat, i, a.Shape)
			}
			episodes[i].Index = i
			for r, rows := 0, a.Shape[0]; r < rows; r++ {
				episodes[i].Rows = append(episodes[i].Rows, a.Data[r*a.Shape[1]:(r+1)*a.Shape[1]])
			}
		}
		if columns, err = sum.fromEpisodes(episodes); err != nil {
			return sum, err
		}
	case ".pb":
		schema, episodes, err := ReadPB(path)
		if err != nil {
			return sum, err
		}
		sum.Schema = &schema
		if columns, err = sum.fromEpisodes(episodes); err != nil {
			return sum, err
		}
	default:
		return sum, fmt.Errorf("%w: %q", ErrUnknownFormat, sum.Format)
	}
	if sum.Columns == nil && sum.Schema != nil {
		sum.Columns = sum.Schema.Columns
	}
	sum.Mean = make([]float64, len(columns))
	sum.Std = make([]float64, len(columns))
	for i, c := range columns {
		if len(c) == 0 {
			continue
		}
		sum.Mean[i], sum.Std[i] = stat.MeanStdDev(c, nil)
	}
	return sum, nil
}

// fromEpisodes 统计episode步数并按列收集数据
func (s *Summary) fromEpisodes(episodes []Episode) ([][]float64, error) {
	s.Episodes = len(episodes)
	var columns [][]float64
	total := 0
	for _, ep := range episodes {
		s.Steps = append(s.Steps, ep.Steps())
		total += ep.Steps()
		for r, row := range ep.Rows {
			if columns == nil {
				columns = make([][]float64, len(row))
			}
			if len(row) != len(columns) {
				return nil, fmt.Errorf("%w: episode %d step %d has %d columns, want %d",
					ErrBadFormat, ep.Index, r, len(row), len(columns))
			}
			for j, v := range row {
				columns[j] = append(columns[j], float64(v))
			}
		}
	}
	s.Shape = []int{len(episodes), total, len(columns)}
	return columns, nil
}

// Print 以表格形式输出概要
func (s Summary) Print(w io.Writer) error {
	fmt.Fprintf(w, "%s: format=%s shape=%v episodes=%d\n", s.Path, s.Format, s.Shape, s.Episodes)
	if s.Schema != nil {
		fmt.Fprintf(w, "run=%s env=%s created=%s\n", s.Schema.RunID, s.Schema.EnvID, s.Schema.CreatedAt)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "column\tmean\tstd")
	for i := range s.Mean {
		name := fmt.Sprintf("#%d", i)
		if i < len(s.Columns) {
			name = s.Columns[i]
		}
		fmt.Fprintf(tw, "%s\t%.4f\t%.4f\n", name, s.Mean[i], s.Std[i])
	}
	return tw.Flush()
}
