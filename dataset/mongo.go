package dataset

import (
	"context"
	"fmt"

	"git.fiblab.net/general/common/v2/mongoutil"
	"github.com/tsinghua-fib-lab/highway-datagen/utils/config"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// 文档类型
const (
	docTypeSchema  = "schema"
	docTypeEpisode = "episode"
)

// MongoSink MongoDB写出端
// 功能：Begin时写入一条描述文档，之后每个episode一条文档，均以run_id关联
type MongoSink struct {
	client *mongo.Client
	col    *mongo.Collection
	runID  string
	count  int
}

// NewMongoSink 连接MongoDB并创建写出端
func NewMongoSink(c config.Mongo) (*MongoSink, error) {
	if c.URI == "" {
		return nil, fmt.Errorf("mongo: empty uri")
	}
	client := mongoutil.NewClient(c.URI)
	return &MongoSink{
		client: client,
		col:    client.Database(c.DB).Collection(c.Col),
	}, nil
}

func (s *MongoSink) Begin(ctx context.Context, schema Schema) error {
	s.runID = schema.RunID
	if _, err := s.col.InsertOne(ctx, schemaDocument(schema)); err != nil {
		return fmt.Errorf("mongo: insert schema: %w", err)
	}
	log.Infof("writing run %s to %s.%s", s.runID, s.col.Database().Name(), s.col.Name())
	return nil
}

func (s *MongoSink) WriteEpisode(ctx context.Context, ep Episode) error {
	if _, err := s.col.InsertOne(ctx, episodeDocument(s.runID, ep)); err != nil {
		return fmt.Errorf("mongo: insert episode %d: %w", ep.Index, err)
	}
	s.count++
	return nil
}

func (s *MongoSink) Close() error {
	if s.client == nil {
		return nil
	}
	err := s.client.Disconnect(context.Background())
	s.client = nil
	if err == nil {
		log.Infof("wrote run %s (%d episodes)", s.runID, s.count)
	}
	return err
}

func schemaDocument(schema Schema) bson.M {
	return bson.M{
		"_id":    schema.RunID,
		"type":   docTypeSchema,
		"run_id": schema.RunID,
		"schema": schema,
	}
}

func episodeDocument(runID string, ep Episode) bson.M {
	return bson.M{
		"_id":        fmt.Sprintf("%s/%d", runID, ep.Index),
		"type":       docTypeEpisode,
		"run_id":     runID,
		"index":      ep.Index,
		"seed":       int64(ep.Seed),
		"steps":      ep.Steps(),
		"terminated": ep.Terminated,
		"truncated":  ep.Truncated,
		"rows":       ep.Rows,
	}
}
