package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"party-rooms/internal/repository"
	"party-rooms/internal/tasks"
)

// taskLogger 构造带任务元信息的日志上下文
func taskLogger(ctx context.Context, t *asynq.Task) *logrus.Entry {
	taskID := ""
	if rw := t.ResultWriter(); rw != nil {
		taskID = rw.TaskID()
	}
	currentRetry, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)
	return logrus.WithFields(logrus.Fields{
		"task_id":   taskID,
		"task_type": t.Type(),
		"retry":     currentRetry,
		"max_retry": maxRetry,
	})
}

// AuditRecordHandler 处理审计写入任务
type AuditRecordHandler struct {
	auditRepo repository.AuditRepository
}

// NewAuditRecordHandler 创建 Handler 实例
func NewAuditRecordHandler(auditRepo repository.AuditRepository) *AuditRecordHandler {
	if auditRepo == nil {
		panic("AuditRepository cannot be nil for AuditRecordHandler")
	}
	return &AuditRecordHandler{auditRepo: auditRepo}
}

// ProcessTask 实现 asynq.Handler 接口
func (h *AuditRecordHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	logCtx := taskLogger(ctx, t)

	var payload tasks.AuditRecordPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		logCtx.WithError(err).Error("Failed to unmarshal task payload")
		return fmt.Errorf("failed to unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}

	entry := payload.Entry
	entry.ID = 0
	if err := h.auditRepo.Save(ctx, &entry); err != nil {
		logCtx.WithError(err).WithField("action", entry.Action).Error("Failed to save audit log")
		return fmt.Errorf("failed to save audit log %s: %w", entry.Action, err)
	}

	logCtx.WithField("action", entry.Action).Debug("Audit record task processed successfully")
	return nil
}

// ShareLinkPurger 由 MembershipService 实现
type ShareLinkPurger interface {
	PurgeStaleShareLinks(ctx context.Context, retention time.Duration) (int64, error)
}

// ShareLinkPurgeHandler 处理周期性的分享链接清理任务
type ShareLinkPurgeHandler struct {
	purger ShareLinkPurger
}

func NewShareLinkPurgeHandler(purger ShareLinkPurger) *ShareLinkPurgeHandler {
	if purger == nil {
		panic("ShareLinkPurger cannot be nil for ShareLinkPurgeHandler")
	}
	return &ShareLinkPurgeHandler{purger: purger}
}

// ProcessTask 实现 asynq.Handler 接口
func (h *ShareLinkPurgeHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	logCtx := taskLogger(ctx, t)

	var payload tasks.ShareLinkPurgePayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			logCtx.WithError(err).Error("Failed to unmarshal task payload")
			return fmt.Errorf("failed to unmarshal payload: %v: %w", err, asynq.SkipRetry)
		}
	}

	purgeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	deleted, err := h.purger.PurgeStaleShareLinks(purgeCtx, payload.Retention())
	if err != nil {
		logCtx.WithError(err).Error("Share link purge failed")
		return fmt.Errorf("purge share links: %w", err)
	}
	logCtx.WithField("deleted", deleted).Info("Share link purge completed")
	return nil
}
