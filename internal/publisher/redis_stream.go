package publisher

import (
	"context"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"

	"github.com/fortuna/headshot/internal/patch"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Stream names
const (
	PatchStream = "headshot.patches"
	PassStream  = "headshot.passes"
)

// streamMaxLen caps each stream; trimming is approximate.
const streamMaxLen = 10000

// RedisStreamPublisher publishes patch events to Redis streams
type RedisStreamPublisher struct {
	client *redis.Client
}

// NewRedisStreamPublisher creates a new Redis stream publisher from existing client
func NewRedisStreamPublisher(client *redis.Client) *RedisStreamPublisher {
	return &RedisStreamPublisher{
		client: client,
	}
}

// NewRedisPublisher connects to redisURL and creates a publisher
func NewRedisPublisher(redisURL string) (*RedisStreamPublisher, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opt)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	return &RedisStreamPublisher{
		client: client,
	}, nil
}

// Close closes the Redis connection
func (rsp *RedisStreamPublisher) Close() error {
	return rsp.client.Close()
}

// Record publishes one slot event. It satisfies patch.Recorder.
func (rsp *RedisStreamPublisher) Record(ctx context.Context, ev patch.Event) error {
	return rsp.publish(ctx, PatchStream, string(ev.Outcome), ev)
}

// PublishPass publishes the summary of a finished pass.
func (rsp *RedisStreamPublisher) PublishPass(ctx context.Context, res patch.PassResult) error {
	return rsp.publish(ctx, PassStream, "pass", res)
}

func (rsp *RedisStreamPublisher) publish(ctx context.Context, stream, kind string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	return rsp.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"type":      kind,
			"data":      string(data),
			"timestamp": time.Now().Unix(),
		},
	}).Err()
}
