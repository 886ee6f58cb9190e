package settings

import (
	"context"
	"time"

	errs "LiveGateway/tools/errs"

	pkgerrors "github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	defaultMaxPoolSize = 20
	defaultMaxRetry    = 3
)

// Config represents the MongoDB configuration.
type Config struct {
	URI         string
	Database    string
	Collection  string
	MaxPoolSize int
	MaxRetry    int
}

func (c *Config) norm() error {
	if c.URI == "" {
		return errs.New("mongo uri is required")
	}
	if c.Database == "" {
		return errs.New("mongo database is required")
	}
	if c.Collection == "" {
		c.Collection = "settings"
	}
	if c.MaxPoolSize <= 0 {
		c.MaxPoolSize = defaultMaxPoolSize
	}
	if c.MaxRetry <= 0 {
		c.MaxRetry = defaultMaxRetry
	}
	return nil
}

type MongoStore struct {
	col *mongo.Collection
}

// NewMongoStore connects with bounded retries and pings before returning.
func NewMongoStore(ctx context.Context, cfg Config) (*MongoStore, error) {
	if err := cfg.norm(); err != nil {
		return nil, err
	}

	opts := options.Client().ApplyURI(cfg.URI).SetMaxPoolSize(uint64(cfg.MaxPoolSize))

	var (
		cli *mongo.Client
		err error
	)
	for i := 0; i < cfg.MaxRetry; i++ {
		cli, err = connectMongo(ctx, opts)
		if err != nil && shouldRetry(ctx, err) {
			time.Sleep(time.Second / 2)
			continue
		}
		break
	}
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "connect to mongo %q", cfg.URI)
	}

	return &MongoStore{col: cli.Database(cfg.Database).Collection(cfg.Collection)}, nil
}

func connectMongo(ctx context.Context, opts *options.ClientOptions) (*mongo.Client, error) {
	cli, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}
	if err := cli.Ping(ctx, nil); err != nil {
		return nil, err
	}
	return cli, nil
}

// shouldRetry determines whether an error should trigger a retry.
func shouldRetry(ctx context.Context, err error) bool {
	select {
	case <-ctx.Done():
		return false
	default:
		if cmdErr, ok := err.(mongo.CommandError); ok {
			return cmdErr.Code != 13 && cmdErr.Code != 18
		}
		return true
	}
}

func (s *MongoStore) Get(ctx context.Context, key string) (*Setting, error) {
	var out Setting
	err := s.col.FindOne(ctx, bson.M{"key": key}).Decode(&out)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound.Wrap()
	}
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "fetch setting %q", key)
	}
	return &out, nil
}
