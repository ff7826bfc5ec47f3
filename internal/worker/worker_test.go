package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"party-rooms/internal/domain"
	"party-rooms/internal/tasks"
)

type fakeAuditRepo struct {
	saved []domain.AuditLog
	err   error
}

func (r *fakeAuditRepo) Save(_ context.Context, entry *domain.AuditLog) error {
	if r.err != nil {
		return r.err
	}
	entry.ID = uint(len(r.saved) + 1)
	r.saved = append(r.saved, *entry)
	return nil
}

type fakePurger struct {
	retention time.Duration
	deleted   int64
	err       error
}

func (p *fakePurger) PurgeStaleShareLinks(_ context.Context, retention time.Duration) (int64, error) {
	p.retention = retention
	return p.deleted, p.err
}

type fakeEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (e *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if e.err != nil {
		return nil, e.err
	}
	e.tasks = append(e.tasks, task)
	return &asynq.TaskInfo{}, nil
}

type fakeSink struct {
	recorded []domain.AuditLog
}

func (s *fakeSink) Record(_ context.Context, entry domain.AuditLog) {
	s.recorded = append(s.recorded, entry)
}

func TestAuditRecordHandler_ProcessTask(t *testing.T) {
	repo := &fakeAuditRepo{}
	handler := NewAuditRecordHandler(repo)
	entry := domain.NewAuditLog(7, "room.join", "room", "3", map[string]interface{}{"mode": "PARTICIPANT"})
	task, err := tasks.NewAuditRecordTask(entry)
	require.NoError(t, err)

	require.NoError(t, handler.ProcessTask(context.Background(), task))

	require.Len(t, repo.saved, 1)
	assert.Equal(t, "room.join", repo.saved[0].Action)
	require.NotNil(t, repo.saved[0].ActorID)
	assert.Equal(t, uint(7), *repo.saved[0].ActorID)
	assert.JSONEq(t, `{"mode":"PARTICIPANT"}`, string(repo.saved[0].Metadata))
}

func TestAuditRecordHandler_BadPayloadSkipsRetry(t *testing.T) {
	handler := NewAuditRecordHandler(&fakeAuditRepo{})

	err := handler.ProcessTask(context.Background(), asynq.NewTask(tasks.TypeAuditRecord, []byte("{")))

	require.Error(t, err)
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestAuditRecordHandler_SaveErrorIsRetried(t *testing.T) {
	handler := NewAuditRecordHandler(&fakeAuditRepo{err: errors.New("db down")})
	task, err := tasks.NewAuditRecordTask(domain.NewAuditLog(1, "room.leave", "room", "1", nil))
	require.NoError(t, err)

	err = handler.ProcessTask(context.Background(), task)

	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
}

func TestShareLinkPurgeHandler(t *testing.T) {
	purger := &fakePurger{deleted: 4}
	handler := NewShareLinkPurgeHandler(purger)

	task, err := tasks.NewShareLinkPurgeTask(48 * time.Hour)
	require.NoError(t, err)
	require.NoError(t, handler.ProcessTask(context.Background(), task))
	assert.Equal(t, 48*time.Hour, purger.retention)

	// 空 payload 使用默认保留时长
	require.NoError(t, handler.ProcessTask(context.Background(), asynq.NewTask(tasks.TypeShareLinkPurge, nil)))
	assert.Equal(t, tasks.DefaultShareLinkRetention, purger.retention)

	purger.err = errors.New("db down")
	assert.Error(t, handler.ProcessTask(context.Background(), task))
}

func TestAuditEnqueuer(t *testing.T) {
	client := &fakeEnqueuer{}
	fallback := &fakeSink{}
	enqueuer := NewAuditEnqueuer(client, fallback)
	entry := domain.NewAuditLog(2, "dice.penalty", "room", "9", nil)

	enqueuer.Record(context.Background(), entry)

	require.Len(t, client.tasks, 1)
	assert.Equal(t, tasks.TypeAuditRecord, client.tasks[0].Type())
	var payload tasks.AuditRecordPayload
	require.NoError(t, json.Unmarshal(client.tasks[0].Payload(), &payload))
	assert.Equal(t, "dice.penalty", payload.Entry.Action)
	assert.Empty(t, fallback.recorded)

	client.err = errors.New("redis down")
	enqueuer.Record(context.Background(), entry)
	require.Len(t, fallback.recorded, 1)
	assert.Equal(t, "dice.penalty", fallback.recorded[0].Action)
}
