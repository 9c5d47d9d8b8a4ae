package taskqueue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	pkgredis "github.com/kasumi-cms/core/internal/pkg/redis"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Task is a unit of background work stored in a Redis list.
type Task struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// HandlerFunc processes a dequeued task. Errors are logged, never retried:
// all queued work in this application is best-effort (mail notification).
type HandlerFunc func(ctx context.Context, task *Task) error

const (
	queueKey    = "kasumi:tasks"
	popTimeout  = 5 * time.Second
	maxQueueLen = 10000
)

// Queue is a Redis-backed fire-and-forget task queue.
type Queue struct {
	rc       *pkgredis.Client
	log      *zap.Logger
	handlers map[string]HandlerFunc
}

func New(rc *pkgredis.Client, log *zap.Logger) *Queue {
	return &Queue{rc: rc, log: log, handlers: make(map[string]HandlerFunc)}
}

// Handle registers the processor for a task type (call before Run).
func (q *Queue) Handle(taskType string, fn HandlerFunc) {
	q.handlers[taskType] = fn
}

// Enqueue pushes a task. The caller gets no completion signal; failure to
// enqueue is reported so the caller can decide whether to fall back to a
// synchronous path.
func (q *Queue) Enqueue(ctx context.Context, taskType string, payload interface{}) error {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	task := Task{
		ID:        uuid.New().String(),
		Type:      taskType,
		Payload:   payloadBytes,
		CreatedAt: time.Now(),
	}
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}

	pipe := q.rc.Raw().TxPipeline()
	pipe.RPush(ctx, queueKey, data)
	pipe.LTrim(ctx, queueKey, -maxQueueLen, -1)
	_, err = pipe.Exec(ctx)
	return err
}

// Run consumes tasks until ctx is cancelled. Intended to run in its own
// goroutine started at app boot.
func (q *Queue) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		res, err := q.rc.Raw().BLPop(ctx, popTimeout, queueKey).Result()
		if err != nil {
			if err == redis.Nil || ctx.Err() != nil {
				continue
			}
			q.log.Warn("task queue pop failed", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}
		if len(res) < 2 {
			continue
		}

		var task Task
		if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
			q.log.Warn("discarding malformed task", zap.Error(err))
			continue
		}

		handler, ok := q.handlers[task.Type]
		if !ok {
			q.log.Warn("no handler for task type", zap.String("type", task.Type))
			continue
		}
		if err := handler(ctx, &task); err != nil {
			q.log.Warn("task failed",
				zap.String("type", task.Type),
				zap.String("id", task.ID),
				zap.Error(err),
			)
		}
	}
}
