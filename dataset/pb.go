package dataset

import (
	"bufio"
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// protobuf流的字段编号
// 流本身是一个消息：1=描述（google.protobuf.Struct），2=episode（可重复）
// episode消息：1=编号，2=种子，3=列数，4=数据（packed float），5=terminated，6=truncated
const (
	pbFieldSchema  protowire.Number = 1
	pbFieldEpisode protowire.Number = 2

	pbEpisodeIndex      protowire.Number = 1
	pbEpisodeSeed       protowire.Number = 2
	pbEpisodeCols       protowire.Number = 3
	pbEpisodeData       protowire.Number = 4
	pbEpisodeTerminated protowire.Number = 5
	pbEpisodeTruncated  protowire.Number = 6
)

// PBSink protobuf流写出端
// 功能：描述与每个episode依次追加写入并立即刷新，进程中断时文件仍是合法的消息前缀
type PBSink struct {
	path   string
	schema Schema
	file   *os.File
	bw     *bufio.Writer
	count  int
}

// NewPBSink 创建protobuf流写出端，path无扩展名时补.pb
func NewPBSink(path string) *PBSink {
	return &PBSink{path: withExt(path, ".pb")}
}

// Path 输出文件路径
func (s *PBSink) Path() string {
	return s.path
}

func (s *PBSink) Begin(_ context.Context, schema Schema) error {
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
	s.bw = bufio.NewWriter(f)
	s.schema = schema
	msg, err := marshalSchema(schema)
	if err != nil {
		return err
	}
	return s.append(pbFieldSchema, msg)
}

func (s *PBSink) WriteEpisode(_ context.Context, ep Episode) error {
	if s.bw == nil {
		return fmt.Errorf("pb: WriteEpisode before Begin")
	}
	if err := checkWidth(s.schema, ep); err != nil {
		return err
	}
	if err := s.append(pbFieldEpisode, marshalEpisode(ep, s.schema.Width())); err != nil {
		return err
	}
	s.count++
	return nil
}

func (s *PBSink) append(num protowire.Number, msg []byte) error {
	var b []byte
	b = protowire.AppendTag(b, num, protowire.BytesType)
	b = protowire.AppendBytes(b, msg)
	if _, err := s.bw.Write(b); err != nil {
		return err
	}
	return s.bw.Flush()
}

func (s *PBSink) Close() error {
	if s.file == nil {
		return nil
	}
	err := s.bw.Flush()
	if cerr := s.file.Close(); err == nil {
		err = cerr
	}
	s.file, s.bw = nil, nil
	if err == nil {
		log.Infof("wrote %s (%d episodes)", s.path, s.count)
	}
	return err
}

func marshalSchema(s Schema) ([]byte, error) {
	columns := make([]any, len(s.Columns))
	for i, c := range s.Columns {
		columns[i] = c
	}
	st, err := structpb.NewStruct(map[string]any{
		"version":              s.Version,
		"run_id":               s.RunID,
		"env_id":               s.EnvID,
		"columns":              columns,
		"vehicles_count":       s.VehiclesCount,
		"features_per_vehicle": s.FeaturesPerVehicle,
		"has_action":           s.HasAction,
		"index_column":         s.IndexColumn,
		"created_at":           s.CreatedAt.Format(time.RFC3339),
	})
	if err != nil {
		return nil, err
	}
	return proto.MarshalOptions{Deterministic: true}.Marshal(st)
}

func unmarshalSchema(b []byte) (Schema, error) {
	var st structpb.Struct
	if err := proto.Unmarshal(b, &st); err != nil {
		return Schema{}, fmt.Errorf("%w: schema: %v", ErrBadFormat, err)
	}
	f := st.GetFields()
	s := Schema{
		Version:            int(f["version"].GetNumberValue()),
		RunID:              f["run_id"].GetStringValue(),
		EnvID:              f["env_id"].GetStringValue(),
		VehiclesCount:      int(f["vehicles_count"].GetNumberValue()),
		FeaturesPerVehicle: int(f["features_per_vehicle"].GetNumberValue()),
		HasAction:          f["has_action"].GetBoolValue(),
		IndexColumn:        f["index_column"].GetBoolValue(),
	}
	for _, v := range f["columns"].GetListValue().GetValues() {
		s.Columns = append(s.Columns, v.GetStringValue())
	}
	if t, err := time.Parse(time.RFC3339, f["created_at"].GetStringValue()); err == nil {
		s.CreatedAt = t
	}
	return s, nil
}

func marshalEpisode(ep Episode, cols int) []byte {
	var b []byte
	b = protowire.AppendTag(b, pbEpisodeIndex, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(ep.Index))
	b = protowire.AppendTag(b, pbEpisodeSeed, protowire.VarintType)
	b = protowire.AppendVarint(b, ep.Seed)
	b = protowire.AppendTag(b, pbEpisodeCols, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(cols))
	var data []byte
	for _, row := range ep.Rows {
		for _, v := range row {
			data = protowire.AppendFixed32(data, math.Float32bits(v))
		}
	}
	b = protowire.AppendTag(b, pbEpisodeData, protowire.BytesType)
	b = protowire.AppendBytes(b, data)
	b = protowire.AppendTag(b, pbEpisodeTerminated, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeBool(ep.Terminated))
	b = protowire.AppendTag(b, pbEpisodeTruncated, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeBool(ep.Truncated))
	return b
}

func unmarshalEpisode(b []byte) (Episode, error) {
	var (
		ep   Episode
		cols int
		data []float32
	)
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return ep, fmt.Errorf("%w: episode tag: %v", ErrBadFormat, protowire.ParseError(n))
		}
		b = b[n:]
		switch {
		case num == pbEpisodeData && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 || len(v)%4 != 0 {
				return ep, fmt.Errorf("%w: episode data", ErrBadFormat)
			}
			for len(v) > 0 {
				bits, m := protowire.ConsumeFixed32(v)
				data = append(data, math.Float32frombits(bits))
				v = v[m:]
			}
			b = b[n:]
		case typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return ep, fmt.Errorf("%w: episode field %d", ErrBadFormat, num)
			}
			switch num {
			case pbEpisodeIndex:
				ep.Index = int(v)
			case pbEpisodeSeed:
				ep.Seed = v
			case pbEpisodeCols:
				cols = int(v)
			case pbEpisodeTerminated:
				ep.Terminated = protowire.DecodeBool(v)
			case pbEpisodeTruncated:
				ep.Truncated = protowire.DecodeBool(v)
			}
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return ep, fmt.Errorf("%w: episode field %d", ErrBadFormat, num)
			}
			b = b[n:]
		}
	}
	if cols <= 0 {
		if len(data) > 0 {
			return ep, fmt.Errorf("%w: episode %d has data but no column count", ErrBadFormat, ep.Index)
		}
		return ep, nil
	}
	if len(data)%cols != 0 {
		return ep, fmt.Errorf("%w: episode %d has %d values, not a multiple of %d", ErrBadFormat, ep.Index, len(data), cols)
	}
	for i := 0; i < len(data); i += cols {
		ep.Rows = append(ep.Rows, data[i:i+cols])
	}
	return ep, nil
}

// ReadPB 读取protobuf流
// 说明：文件末尾不完整的记录（写出过程被中断）会被丢弃并记录警告
func ReadPB(path string) (Schema, []Episode, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Schema{}, nil, err
	}
	var (
		schema    Schema
		hasSchema bool
		episodes  []Episode
	)
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return schema, episodes, fmt.Errorf("%w: %v", ErrBadFormat, protowire.ParseError(n))
		}
		if typ != protowire.BytesType {
			return schema, episodes, fmt.Errorf("%w: field %d has wire type %d", ErrBadFormat, num, typ)
		}
		v, m := protowire.ConsumeBytes(b[n:])
		if m < 0 {
			log.Warnf("%s: truncated record after %d episodes", path, len(episodes))
			break
		}
		b = b[n+m:]
		switch num {
		case pbFieldSchema:
			if schema, err = unmarshalSchema(v); err != nil {
				return schema, episodes, err
			}
			hasSchema = true
		case pbFieldEpisode:
			ep, err := unmarshalEpisode(v)
			if err != nil {
				return schema, episodes, err
			}
			episodes = append(episodes, ep)
		}
	}
	if !hasSchema {
		return schema, episodes, fmt.Errorf("%w: %s has no schema", ErrBadFormat, path)
	}
	return schema, episodes, nil
}
