package cmd

import (
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/ecospheres/isomorphe/pkg/eventbus"
	"github.com/ecospheres/isomorphe/pkg/queue"
)

// NewJobQueue builds the Redis-backed job queue from a connection URL,
// announcing queued jobs on bus. The returned close function releases the
// underlying client.
func NewJobQueue(redisURL string, bus eventbus.EventPublisher, logger *slog.Logger) (*queue.Queue, func() error, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, nil, err
	}

	rdb := redis.NewClient(opts)

	return queue.New(rdb, bus, logger), rdb.Close, nil
}
