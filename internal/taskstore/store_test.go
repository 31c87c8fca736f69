package taskstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jpp0ca/tunesync-core/internal/domain"
)

// fakeRedis is a minimal in-memory redisCommands, enough to exercise
// Store's logic without a live Redis instance.
type fakeRedis struct {
	mu     sync.Mutex
	values map[string]string
	queue  []string
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: make(map[string]string)}
}

func (f *fakeRedis) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = value
	return nil
}

func (f *fakeRedis) Get(ctx context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[key]
	return v, ok, nil
}

func (f *fakeRedis) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.values, key)
	return nil
}

func (f *fakeRedis) RPush(ctx context.Context, list, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append(f.queue, value)
	return nil
}

func (f *fakeRedis) BLPop(ctx context.Context, list string, timeout time.Duration) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queue) == 0 {
		return "", false, nil
	}
	v := f.queue[0]
	f.queue = f.queue[1:]
	return v, true, nil
}

func (f *fakeRedis) ScanKeys(ctx context.Context, pattern string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	// pattern is always one of "user_tasks:*:{user_id}:*" or
	// "user_tasks:*:*:*" in this package; matchesUserTasksPattern compares
	// the key's parsed user id against those two shapes.
	var keys []string
	for k := range f.values {
		if matchesUserTasksPattern(k, pattern) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func matchesUserTasksPattern(key, pattern string) bool {
	_, userID, _, err := ParseTaskKey(key)
	if err != nil {
		return false
	}
	if pattern == MakeRunningTasksPattern() {
		return true
	}
	return pattern == MakeUserTasksPattern(userID)
}

func TestEnqueueAndPopNext(t *testing.T) {
	redis := newFakeRedis()
	store := New(redis)
	ctx := context.Background()

	task := domain.Task{
		TaskID: "task-1", UserID: "user-1", Kind: domain.TaskKindPlaylistTransfer,
		Status: domain.TaskQueued, QueuedAt: time.Now().Unix(),
	}
	if err := store.Enqueue(ctx, task); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	popped, key, ok, err := store.PopNext(ctx, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatalf("expected a task to be popped")
	}
	if popped.TaskID != "task-1" {
		t.Fatalf("expected task-1, got %+v", popped)
	}
	if key != MakeTaskKey(domain.TaskKindPlaylistTransfer, "user-1", "task-1") {
		t.Fatalf("unexpected key: %s", key)
	}
}

func TestPopNextEmptyQueue(t *testing.T) {
	store := New(newFakeRedis())
	_, _, ok, err := store.PopNext(context.Background(), time.Millisecond)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected no task from an empty queue")
	}
}

func TestPopNextDiscardsExpiredRecord(t *testing.T) {
	redis := newFakeRedis()
	store := New(redis)
	ctx := context.Background()

	// Push a queue entry whose record was never written (simulating TTL
	// expiry between enqueue and pop).
	key := MakeTaskKey(domain.TaskKindPlaylistTransfer, "user-1", "ghost")
	if err := redis.RPush(ctx, TaskQueueName, key); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, _, ok, err := store.PopNext(ctx, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected the stale queue entry to be discarded")
	}
}

func TestMarkCancelled(t *testing.T) {
	redis := newFakeRedis()
	store := New(redis)
	ctx := context.Background()

	task := domain.Task{
		TaskID: "task-1", UserID: "user-1", Kind: domain.TaskKindPlaylistTransfer,
		Status: domain.TaskRunning, QueuedAt: time.Now().Unix(),
	}
	if err := store.Enqueue(ctx, task); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := store.MarkCancelled(ctx, "user-1", "task-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	reloaded, found, err := store.Load(ctx, MakeTaskKey(domain.TaskKindPlaylistTransfer, "user-1", "task-1"))
	if err != nil || !found {
		t.Fatalf("expected to reload the task, found=%v err=%v", found, err)
	}
	if reloaded.Status != domain.TaskCanceled {
		t.Fatalf("expected CANCELED, got %s", reloaded.Status)
	}
	if reloaded.DoneAt == nil {
		t.Fatalf("expected done_at to be set")
	}
}

func TestMarkCancelledOnTerminalTaskIsNoop(t *testing.T) {
	redis := newFakeRedis()
	store := New(redis)
	ctx := context.Background()

	task := domain.Task{
		TaskID: "task-1", UserID: "user-1", Kind: domain.TaskKindPlaylistTransfer,
		Status: domain.TaskFinished, QueuedAt: time.Now().Unix(),
	}
	if err := store.Enqueue(ctx, task); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := store.MarkCancelled(ctx, "user-1", "task-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	reloaded, _, _ := store.Load(ctx, MakeTaskKey(domain.TaskKindPlaylistTransfer, "user-1", "task-1"))
	if reloaded.Status != domain.TaskFinished {
		t.Fatalf("expected terminal status to remain FINISHED, got %s", reloaded.Status)
	}
}

func TestListForUser(t *testing.T) {
	redis := newFakeRedis()
	store := New(redis)
	ctx := context.Background()

	for i, uid := range []string{"user-1", "user-1", "user-2"} {
		task := domain.Task{
			TaskID: "task-" + string(rune('a'+i)), UserID: uid, Kind: domain.TaskKindPlaylistTransfer,
			Status: domain.TaskQueued, QueuedAt: time.Now().Unix(),
		}
		if err := store.Enqueue(ctx, task); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	tasks, err := store.ListForUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks for user-1, got %d", len(tasks))
	}
}

func TestParseTaskKeyRoundTrip(t *testing.T) {
	key := MakeTaskKey(domain.TaskKindPlaylistTransfer, "42", "abc-123")
	kind, userID, taskID, err := ParseTaskKey(key)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if kind != domain.TaskKindPlaylistTransfer || userID != "42" || taskID != "abc-123" {
		t.Fatalf("unexpected parse result: kind=%s userID=%s taskID=%s", kind, userID, taskID)
	}
}

func TestParseTaskKeyInvalid(t *testing.T) {
	if _, _, _, err := ParseTaskKey("not:a:valid:key:at:all"); err == nil {
		t.Fatalf("expected an error for a malformed key")
	}
}
