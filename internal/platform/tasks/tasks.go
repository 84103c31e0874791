package tasks

import (
	"github.com/hibiken/asynq"

	"tokoscout/internal/platform/redis"
)

// Client enqueues background work onto the asynq queue backed by the shared
// Redis instance.
type Client struct{ c *asynq.Client }

func New(r *redis.Service) *Client { return &Client{c: asynq.NewClient(r.AsynqRedisOpt())} }

func (t *Client) Enqueue(task *asynq.Task, queue string, maxRetries int) error {
	_, err := t.c.Enqueue(task, asynq.Queue(queue), asynq.MaxRetry(maxRetries))
	return err
}

func (t *Client) Close() error { return t.c.Close() }
