package mail

import (
	"context"
	"encoding/json"

	"github.com/kasumi-cms/core/internal/pkg/taskqueue"
	"go.uber.org/zap"
)

// TaskType identifies mail tasks on the shared queue.
const TaskType = "mail.send"

// Dispatcher is the capability request handlers use to send notification
// mail. Delivery is strictly fire-and-forget: failures are logged, never
// surfaced to the originating request.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg Message)
}

// SyncDispatcher sends on the calling goroutine's behalf without a broker.
type SyncDispatcher struct {
	sender *Sender
	log    *zap.Logger
}

func NewSyncDispatcher(sender *Sender, log *zap.Logger) *SyncDispatcher {
	return &SyncDispatcher{sender: sender, log: log}
}

func (d *SyncDispatcher) Dispatch(_ context.Context, msg Message) {
	go func() {
		if err := d.sender.Send(msg); err != nil {
			d.log.Warn("mail send failed", zap.Strings("to", msg.To), zap.Error(err))
		}
	}()
}

// QueueDispatcher hands delivery to the Redis task queue so the request is
// never blocked on SMTP latency.
type QueueDispatcher struct {
	queue *taskqueue.Queue
	log   *zap.Logger
}

func NewQueueDispatcher(queue *taskqueue.Queue, sender *Sender, log *zap.Logger) *QueueDispatcher {
	queue.Handle(TaskType, func(_ context.Context, task *taskqueue.Task) error {
		var msg Message
		if err := json.Unmarshal(task.Payload, &msg); err != nil {
			return err
		}
		return sender.Send(msg)
	})
	return &QueueDispatcher{queue: queue, log: log}
}

func (d *QueueDispatcher) Dispatch(ctx context.Context, msg Message) {
	if err := d.queue.Enqueue(ctx, TaskType, msg); err != nil {
		d.log.Warn("mail enqueue failed", zap.Strings("to", msg.To), zap.Error(err))
	}
}
