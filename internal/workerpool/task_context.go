package workerpool

import (
	"context"
	"sync"
	"time"

	"github.com/jpp0ca/tunesync-core/internal/domain"
	"github.com/jpp0ca/tunesync-core/internal/taskstore"
)

// TaskContext is the handle a Handler uses to observe and mutate the task
// record it owns for the duration of one dispatch. It serializes access
// between the handler goroutine and the background heartbeat goroutine,
// mirroring the shared WorkerContext.current_task object in
// dispatcher.py.
type TaskContext struct {
	store      *taskstore.Store
	key        string
	workerName string

	mu   sync.Mutex
	task domain.Task
}

func newTaskContext(store *taskstore.Store, key string, task domain.Task, workerName string) *TaskContext {
	return &TaskContext{store: store, key: key, task: task, workerName: workerName}
}

// Key returns the Redis key backing this task record.
func (tc *TaskContext) Key() string { return tc.key }

// Task returns a snapshot of the current record.
func (tc *TaskContext) Task() domain.Task {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return tc.task
}

// Reload re-reads the record from the store, so the handler can observe
// cancellation writes made by another process (spec.md §4.7's
// cancellation check).
func (tc *TaskContext) Reload(ctx context.Context) (domain.Task, bool, error) {
	task, found, err := tc.store.Load(ctx, tc.key)
	if err != nil {
		return domain.Task{}, false, err
	}
	if found {
		tc.mu.Lock()
		tc.task = task
		tc.mu.Unlock()
	}
	return task, found, nil
}

// IsCancelled reports whether the task was deleted out from under the
// worker, or had its status set to CANCELED by another process — the two
// conditions spec.md §4.7 treats identically.
func (tc *TaskContext) IsCancelled(ctx context.Context) (bool, error) {
	task, found, err := tc.Reload(ctx)
	if err != nil {
		return false, err
	}
	if !found {
		return true, nil
	}
	return task.Status == domain.TaskCanceled, nil
}

// Update mutates the in-memory task record under lock, without persisting.
func (tc *TaskContext) Update(fn func(*domain.Task)) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	fn(&tc.task)
}

// Save persists the current in-memory record as-is.
func (tc *TaskContext) Save(ctx context.Context) error {
	tc.mu.Lock()
	task := tc.task
	tc.mu.Unlock()
	return tc.store.Save(ctx, tc.key, task)
}

// Heartbeat refreshes last_heartbeat/worker_id and persists, refreshing
// the RUNNING TTL. Mirrors dispatcher.py's update_heartbeat.
func (tc *TaskContext) Heartbeat(ctx context.Context) error {
	now := time.Now().Unix()
	tc.Update(func(t *domain.Task) {
		t.LastHeartbeat = &now
		t.WorkerID = &tc.workerName
	})
	return tc.Save(ctx)
}

// TransitionRunning clears the status reason and moves the record to
// RUNNING, then persists — used between ON_HOLD pauses and at the start
// of each per-track iteration.
func (tc *TaskContext) TransitionRunning(ctx context.Context) error {
	tc.Update(func(t *domain.Task) {
		t.Status = domain.TaskRunning
		t.ClearReason()
	})
	return tc.Save(ctx)
}

// Hold transitions to ON_HOLD with reason and persists.
func (tc *TaskContext) Hold(ctx context.Context, reason string) error {
	tc.Update(func(t *domain.Task) {
		t.Status = domain.TaskOnHold
		t.Reason(reason)
	})
	return tc.Save(ctx)
}

// Finish transitions to FINISHED and persists.
func (tc *TaskContext) Finish(ctx context.Context) error {
	now := time.Now().Unix()
	tc.Update(func(t *domain.Task) {
		t.Status = domain.TaskFinished
		t.ClearReason()
		t.DoneAt = &now
	})
	return tc.Save(ctx)
}

// Fail transitions to FAILED with reason and persists.
func (tc *TaskContext) Fail(ctx context.Context, reason string) error {
	now := time.Now().Unix()
	tc.Update(func(t *domain.Task) {
		t.Status = domain.TaskFailed
		t.Reason(reason)
		t.DoneAt = &now
	})
	return tc.Save(ctx)
}

// Cancel transitions to CANCELED with reason and persists.
func (tc *TaskContext) Cancel(ctx context.Context, reason string) error {
	now := time.Now().Unix()
	tc.Update(func(t *domain.Task) {
		t.Status = domain.TaskCanceled
		t.Reason(reason)
		t.DoneAt = &now
	})
	return tc.Save(ctx)
}
