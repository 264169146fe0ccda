package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

const (
	TaskEntryRecorded = "lottery:entry_recorded"
	TaskDrawClosed    = "lottery:draw_closed"
)

type Queue struct {
	client    *asynq.Client
	server    *asynq.Server
	mux       *asynq.ServeMux
	inspector *asynq.Inspector
	log       *zap.Logger
}

func NewQueue(redisAddr string, concurrency int, log *zap.Logger) *Queue {
	if concurrency <= 0 {
		concurrency = 2
	}
	redisOpt := asynq.RedisClientOpt{Addr: redisAddr}
	client := asynq.NewClient(redisOpt)
	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			Logger: log.Sugar(),
		},
	)
	mux := asynq.NewServeMux()
	inspector := asynq.NewInspector(redisOpt)
	return &Queue{client: client, server: server, mux: mux, inspector: inspector, log: log.With(zap.String("component", "queue"))}
}

// isTaskConflict checks whether the error indicates a task ID conflict,
// using errors.Is for unwrapped sentinel values and a string fallback.
func isTaskConflict(err error) bool {
	if errors.Is(err, asynq.ErrDuplicateTask) || errors.Is(err, asynq.ErrTaskIDConflict) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "task ID conflicts") || strings.Contains(msg, "duplicate task")
}

// EnqueueUnique enqueues a task with a deterministic TaskID. If a task with
// the same ID is pending or active the enqueue is skipped. A completed or
// archived task with the same ID is deleted first so the new one can run.
func (q *Queue) EnqueueUnique(ctx context.Context, taskType string, payload interface{}, uniqueID string, opts ...asynq.Option) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	opts = append(opts, asynq.TaskID(uniqueID))
	task := asynq.NewTask(taskType, data, opts...)
	info, err := q.client.EnqueueContext(ctx, task)
	if err == nil {
		return info.ID, nil
	}
	if !isTaskConflict(err) {
		return "", fmt.Errorf("enqueue: %w", err)
	}

	cleared := false
	for _, queueName := range []string{"default", "critical", "low"} {
		if delErr := q.inspector.DeleteTask(queueName, uniqueID); delErr == nil {
			q.log.Info("cleared finished task", zap.String("task_id", uniqueID), zap.String("queue", queueName))
			cleared = true
			break
		}
	}
	if cleared {
		info, err = q.client.EnqueueContext(ctx, task)
		if err == nil {
			return info.ID, nil
		}
	}

	if isTaskConflict(err) {
		q.log.Debug("task already active, skipping", zap.String("type", taskType), zap.String("task_id", uniqueID))
		return uniqueID, nil
	}
	return "", fmt.Errorf("enqueue: %w", err)
}

func (q *Queue) RegisterHandler(taskType string, handler asynq.Handler) {
	q.mux.Handle(taskType, handler)
}

// Run processes tasks until ctx is cancelled.
func (q *Queue) Run(ctx context.Context) error {
	q.log.Info("job queue worker starting")
	if err := q.server.Start(q.mux); err != nil {
		return err
	}
	<-ctx.Done()
	q.server.Shutdown()
	return nil
}

func (q *Queue) Close() {
	q.client.Close()
	q.inspector.Close()
}
