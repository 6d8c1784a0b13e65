package dataset

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/highway-datagen/utils/config"
	"go.mongodb.org/mongo-driver/bson"
)

func testSchema(t *testing.T, recordAction bool) Schema {
	t.Helper()
	c, err := config.Preset(config.PresetStacked)
	require.NoError(t, err)
	c.Collect.RecordAction = recordAction
	rc, err := config.NewRuntimeConfig(c)
	require.NoError(t, err)
	return NewSchema(rc, c.Env.Observation.Features)
}

// testEpisode 生成步数为steps的episode，第r步第j列的值为index*1000+r*100+j
func testEpisode(index, steps, width int) Episode {
	ep := Episode{Index: index, Seed: uint64(index)}
	for r := 0; r < steps; r++ {
		row := make([]float32, width)
		for j := range row {
			row[j] = float32(index*1000 + r*100 + j)
		}
		ep.Rows = append(ep.Rows, row)
	}
	return ep
}

func TestSchema(t *testing.T) {
	s := testSchema(t, false)
	assert.Equal(t, 65, s.Width())
	assert.Equal(t, "v0.presence", s.Columns[0])
	assert.Equal(t, "v4.ang_off", s.Columns[64])
	assert.Equal(t, 5, s.VehiclesCount)
	assert.Equal(t, 13, s.FeaturesPerVehicle)
	assert.NotEmpty(t, s.RunID)

	s = testSchema(t, true)
	assert.Equal(t, 67, s.Width())
	assert.Equal(t, []string{ColumnAcceleration, ColumnSteering}, s.Columns[65:])
	assert.True(t, s.HasAction)
}

func TestNPYRoundTrip(t *testing.T) {
	for _, shape := range [][]int{{2, 3}, {4}, {66, 0}} {
		n := 1
		for _, d := range shape {
			n *= d
		}
		a := Array{Shape: shape, Data: make([]float32, n)}
		for i := range a.Data {
			a.Data[i] = float32(i) * 0.5
		}
		var buf bytes.Buffer
		require.NoError(t, writeNPY(&buf, a))
		// 头部按64字节对齐
		headerLen := int(buf.Bytes()[8]) | int(buf.Bytes()[9])<<8
		assert.Zero(t, (10+headerLen)%64)
		got, err := readNPY(&buf)
		require.NoError(t, err)
		assert.Equal(t, a.Shape, got.Shape)
		assert.Equal(t, a.Data, got.Data)
	}

	_, err := readNPY(bytes.NewReader([]byte("not numpy")))
	assert.ErrorIs(t, err, ErrBadFormat)

	// 头部声明的形状不合法或与数据不符
	for _, shape := range []string{"(-1, 2)", "(100000, 100000)", "(1000, 2)", "(2, x)"} {
		_, err := readNPY(bytes.NewReader(npyWithHeader(shape)))
		assert.ErrorIs(t, err, ErrBadFormat, shape)
	}
}

// npyWithHeader 构造只有头部（外加一个元素）的npy数据
func npyWithHeader(shape string) []byte {
	header := fmt.Sprintf("{'descr': '<f4', 'fortran_order': False, 'shape': %s, }\n", shape)
	var buf bytes.Buffer
	buf.WriteString("\x93NUMPY")
	buf.Write([]byte{1, 0, byte(len(header)), byte(len(header) >> 8)})
	buf.WriteString(header)
	buf.Write([]byte{0, 0, 0x80, 0x3f})
	return buf.Bytes()
}

func TestSummaryRejectsRaggedColumns(t *testing.T) {
	var sum Summary
	_, err := sum.fromEpisodes([]Episode{
		{Index: 0, Rows: [][]float32{{1, 2}}},
		{Index: 1, Rows: [][]float32{{1, 2}, {1, 2, 3}}},
	})
	assert.ErrorIs(t, err, ErrBadFormat)
}

func TestStackedSink(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "sample_acc_n5")
	s := testSchema(t, false)
	sink := NewStackedSink(path)
	assert.Equal(t, path+".npy", sink.Path())
	require.NoError(t, sink.Begin(ctx, s))
	steps := []int{3, 1, 4, 2, 5}
	total := 0
	for i, n := range steps {
		require.NoError(t, sink.WriteEpisode(ctx, testEpisode(i, n, s.Width())))
		total += n
	}
	require.NoError(t, sink.Close())

	a, err := ReadNPY(sink.Path())
	require.NoError(t, err)
	assert.Equal(t, []int{66, total}, a.Shape)
	// 第0行为episode编号
	var index []float32
	for i, n := range steps {
		for j := 0; j < n; j++ {
			index = append(index, float32(i))
		}
	}
	assert.Equal(t, index, a.Data[:total])
	// 第j+1行为原第j列，第0列是episode 0第0步
	assert.EqualValues(t, 7, a.Data[8*total])
	assert.EqualValues(t, 1000+7, a.Data[8*total+3])

	schema, err := ReadSchemaFile(sink.SchemaPath())
	require.NoError(t, err)
	assert.True(t, schema.IndexColumn)
	assert.Equal(t, s.Columns, schema.Columns)

	sum, err := Inspect(sink.Path())
	require.NoError(t, err)
	assert.Equal(t, 5, sum.Episodes)
	assert.Equal(t, ColumnIndex, sum.Columns[0])
	assert.Len(t, sum.Mean, 66)
	assert.InDelta(t, 35.0/15, sum.Mean[0], 1e-6)
}

func TestStackedSinkRejectsWidth(t *testing.T) {
	sink := NewStackedSink(filepath.Join(t.TempDir(), "x"))
	require.NoError(t, sink.Begin(context.Background(), testSchema(t, false)))
	assert.Error(t, sink.WriteEpisode(context.Background(), testEpisode(0, 2, 10)))
}

func TestStackedSinkEmpty(t *testing.T) {
	sink := NewStackedSink(filepath.Join(t.TempDir(), "empty.npy"))
	require.NoError(t, sink.Begin(context.Background(), testSchema(t, false)))
	require.NoError(t, sink.Close())
	a, err := ReadNPY(sink.Path())
	require.NoError(t, err)
	assert.Equal(t, []int{66, 0}, a.Shape)
}

func TestNPZSink(t *testing.T) {
	ctx := context.Background()
	s := testSchema(t, true)
	sink := NewNPZSink(filepath.Join(t.TempDir(), "sample200"))
	require.NoError(t, sink.Begin(ctx, s))
	for i := 0; i < 12; i++ {
		require.NoError(t, sink.WriteEpisode(ctx, testEpisode(i, i%4+1, s.Width())))
	}
	require.NoError(t, sink.Close())

	arrays, schema, err := ReadNPZ(sink.Path())
	require.NoError(t, err)
	require.NotNil(t, schema)
	assert.Equal(t, s.RunID, schema.RunID)
	require.Len(t, arrays, 12)
	for i, a := range arrays {
		assert.Equal(t, []int{i%4 + 1, 67}, a.Shape, "arr_%d", i)
		assert.EqualValues(t, i*1000+66, a.Data[66])
	}

	sum, err := Inspect(sink.Path())
	require.NoError(t, err)
	assert.Equal(t, 12, sum.Episodes)
	assert.Len(t, sum.Mean, 67)
}

func TestPBSink(t *testing.T) {
	ctx := context.Background()
	s := testSchema(t, true)
	path := filepath.Join(t.TempDir(), "sample200")
	sink := NewPBSink(path)
	require.NoError(t, sink.Begin(ctx, s))
	want := []Episode{testEpisode(0, 3, s.Width()), testEpisode(1, 1, s.Width()), testEpisode(2, 0, s.Width())}
	want[0].Terminated = true
	want[2].Truncated = true
	for _, ep := range want {
		require.NoError(t, sink.WriteEpisode(ctx, ep))
	}
	require.NoError(t, sink.Close())

	schema, episodes, err := ReadPB(sink.Path())
	require.NoError(t, err)
	assert.Equal(t, s.RunID, schema.RunID)
	assert.Equal(t, s.Columns, schema.Columns)
	assert.Equal(t, s.HasAction, schema.HasAction)
	assert.True(t, s.CreatedAt.Equal(schema.CreatedAt))
	require.Len(t, episodes, 3)
	for i := range want {
		assert.Equal(t, want[i].Index, episodes[i].Index)
		assert.Equal(t, want[i].Seed, episodes[i].Seed)
		assert.Equal(t, want[i].Terminated, episodes[i].Terminated)
		assert.Equal(t, want[i].Truncated, episodes[i].Truncated)
		assert.Equal(t, want[i].Steps(), episodes[i].Steps())
		for r := range want[i].Rows {
			assert.Equal(t, want[i].Rows[r], episodes[i].Rows[r])
		}
	}
	assert.True(t, episodes[1].Capped())
}

func TestPBPartialFile(t *testing.T) {
	ctx := context.Background()
	s := testSchema(t, false)
	sink := NewPBSink(filepath.Join(t.TempDir(), "partial.pb"))
	require.NoError(t, sink.Begin(ctx, s))
	require.NoError(t, sink.WriteEpisode(ctx, testEpisode(0, 2, s.Width())))
	require.NoError(t, sink.WriteEpisode(ctx, testEpisode(1, 2, s.Width())))
	require.NoError(t, sink.Close())

	// 模拟写出最后一个episode时中断
	data, err := os.ReadFile(sink.Path())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(sink.Path(), data[:len(data)-10], 0o644))
	_, episodes, err := ReadPB(sink.Path())
	require.NoError(t, err)
	assert.Len(t, episodes, 1)
}

func TestNew(t *testing.T) {
	sink, err := New(config.Output{Format: config.FormatNPY, Path: "a"})
	require.NoError(t, err)
	assert.IsType(t, &StackedSink{}, sink)
	sink, err = New(config.Output{Format: config.FormatPB, Path: "a"})
	require.NoError(t, err)
	assert.IsType(t, &PBSink{}, sink)
	sink, err = New(config.Output{Format: config.FormatNPZ, Path: "a"})
	require.NoError(t, err)
	assert.IsType(t, &NPZSink{}, sink)
	_, err = New(config.Output{Format: "csv", Path: "a"})
	assert.ErrorIs(t, err, ErrUnknownFormat)
	_, err = New(config.Output{Format: config.FormatMongo})
	assert.Error(t, err)
}

func TestMongoDocuments(t *testing.T) {
	s := testSchema(t, true)
	doc := schemaDocument(s)
	assert.Equal(t, docTypeSchema, doc["type"])
	assert.Equal(t, s.RunID, doc["_id"])

	ep := testEpisode(3, 2, s.Width())
	ep.Terminated = true
	doc = episodeDocument(s.RunID, ep)
	assert.Equal(t, s.RunID+"/3", doc["_id"])
	assert.Equal(t, 2, doc["steps"])
	assert.Equal(t, true, doc["terminated"])

	raw, err := bson.Marshal(doc)
	require.NoError(t, err)
	var back struct {
		Rows [][]float64 `bson:"rows"`
		Seed int64       `bson:"seed"`
	}
	require.NoError(t, bson.Unmarshal(raw, &back))
	assert.EqualValues(t, 3, back.Seed)
	assert.Len(t, back.Rows, 2)
	assert.Equal(t, float64(3000+100+5), back.Rows[1][5])
}

func TestInspectUnknown(t *testing.T) {
	_, err := Inspect("data.csv")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestSummaryPrint(t *testing.T) {
	sum := Summary{Path: "x.npy", Format: ".npy", Shape: []int{2, 3}, Columns: []string{"a"}, Mean: []float64{1, 2}, Std: []float64{0, 1}}
	var buf bytes.Buffer
	require.NoError(t, sum.Print(&buf))
	assert.Contains(t, buf.String(), "shape=[2 3]")
	assert.Contains(t, buf.String(), "#1")
}
