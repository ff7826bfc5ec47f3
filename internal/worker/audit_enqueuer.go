package worker

import (
	"context"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"party-rooms/internal/domain"
	"party-rooms/internal/service"
	"party-rooms/internal/tasks"
)

// TaskEnqueuer 是 *asynq.Client 中用到的部分
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// AuditEnqueuer 把审计记录放入 asynq 队列，入队失败时交给 fallback 同步写入。
type AuditEnqueuer struct {
	client   TaskEnqueuer
	fallback service.AuditSink
}

var _ service.AuditSink = (*AuditEnqueuer)(nil)

func NewAuditEnqueuer(client TaskEnqueuer, fallback service.AuditSink) *AuditEnqueuer {
	if client == nil {
		panic("TaskEnqueuer cannot be nil for AuditEnqueuer")
	}
	return &AuditEnqueuer{client: client, fallback: fallback}
}

func (e *AuditEnqueuer) Record(ctx context.Context, entry domain.AuditLog) {
	logCtx := logrus.WithField("action", entry.Action)
	task, err := tasks.NewAuditRecordTask(entry)
	if err == nil {
		if _, err = e.client.EnqueueContext(ctx, task); err == nil {
			return
		}
	}
	logCtx.WithError(err).Warn("Failed to enqueue audit record")
	if e.fallback != nil {
		e.fallback.Record(ctx, entry)
	}
}
