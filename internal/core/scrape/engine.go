package scrape

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	redisv8 "github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"

	"tokoscout/internal/core/result"
	"tokoscout/internal/core/session"
	"tokoscout/internal/logger"
	rds "tokoscout/internal/platform/redis"
	"tokoscout/internal/platform/tasks"
)

// TaskTypeSearch is the asynq task type for one scrape session.
const TaskTypeSearch = "search:session"

const queueDefault = "default"

func sessionChannel(id string) string { return "session:" + id }

type taskPayload struct {
	SessionID string          `json:"session_id"`
	Queries   []string        `json:"queries"`
	Platform  result.Platform `json:"platform"`
}

// Engine is the collaborator side of the session contract: submission goes
// through the asynq queue, events come back over Redis pub/sub on the
// session's channel.
type Engine struct {
	tasks      *tasks.Client
	redis      *rds.Service
	log        *logger.Logger
	maxRetries int
}

var _ session.Engine = (*Engine)(nil)

func NewEngine(taskClient *tasks.Client, redis *rds.Service, maxRetries int) *Engine {
	return &Engine{tasks: taskClient, redis: redis, log: logger.New("ScrapeEngine"), maxRetries: maxRetries}
}

func (e *Engine) SubmitScrape(ctx context.Context, sessionID string, queries []string, platform result.Platform) error {
	b, err := json.Marshal(taskPayload{SessionID: sessionID, Queries: queries, Platform: platform})
	if err != nil {
		return err
	}
	if err := e.tasks.Enqueue(asynq.NewTask(TaskTypeSearch, b), queueDefault, e.maxRetries); err != nil {
		return fmt.Errorf("enqueue search task: %w", err)
	}
	e.log.LogDebugf("session %s enqueued (%d queries, %s)", sessionID, len(queries), platform)
	return nil
}

func (e *Engine) Subscribe(ctx context.Context, sessionID string) (session.Subscription, error) {
	ps := e.redis.Client().Subscribe(ctx, sessionChannel(sessionID))
	// Confirm the subscription before the task can start publishing.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe session %s: %w", sessionID, err)
	}
	sub := &pubsubSubscription{
		ps:     ps,
		events: make(chan session.Event, 16),
		done:   make(chan struct{}),
	}
	go sub.pump(e.log)
	return sub, nil
}

// pubsubSubscription adapts a Redis pub/sub channel to the session contract.
type pubsubSubscription struct {
	ps     *redisv8.PubSub
	events chan session.Event
	done   chan struct{}
	once   sync.Once
}

func (s *pubsubSubscription) Events() <-chan session.Event { return s.events }

func (s *pubsubSubscription) Close() error {
	s.once.Do(func() { close(s.done) })
	return s.ps.Close()
}

func (s *pubsubSubscription) pump(log *logger.Logger) {
	defer close(s.events)
	for msg := range s.ps.Channel() {
		var ev session.Event
		if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
			log.LogWarnf("undecodable session event dropped: %v", err)
			continue
		}
		select {
		case s.events <- ev:
		case <-s.done:
			return
		}
		if ev.Kind == session.EventDone || ev.Kind == session.EventError {
			_ = s.ps.Close()
			return
		}
	}
}
