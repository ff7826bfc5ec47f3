package tasks

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"party-rooms/internal/domain"
)

// 任务类型常量
const (
	TypeAuditRecord    = "audit:record"
	TypeShareLinkPurge = "sharelink:purge"
)

// DefaultShareLinkRetention 过期或撤销超过该时长的分享链接会被清理
const DefaultShareLinkRetention = 7 * 24 * time.Hour

// AuditRecordPayload 定义了审计写入任务的数据结构
type AuditRecordPayload struct {
	Entry domain.AuditLog
}

// NewAuditRecordTask 创建一个审计写入任务
func NewAuditRecordTask(entry domain.AuditLog) (*asynq.Task, error) {
	payload, err := json.Marshal(AuditRecordPayload{Entry: entry})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeAuditRecord, payload, asynq.MaxRetry(5), asynq.Queue("low")), nil
}

// ShareLinkPurgePayload 定义了分享链接清理任务的数据结构
type ShareLinkPurgePayload struct {
	RetentionSeconds int64 `json:"retention_seconds"`
}

// NewShareLinkPurgeTask 创建一个分享链接清理任务
func NewShareLinkPurgeTask(retention time.Duration) (*asynq.Task, error) {
	payload, err := json.Marshal(ShareLinkPurgePayload{RetentionSeconds: int64(retention / time.Second)})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeShareLinkPurge, payload, asynq.MaxRetry(1)), nil
}

// Retention 返回清理保留时长，未设置时使用默认值
func (p ShareLinkPurgePayload) Retention() time.Duration {
	if p.RetentionSeconds <= 0 {
		return DefaultShareLinkRetention
	}
	return time.Duration(p.RetentionSeconds) * time.Second
}
