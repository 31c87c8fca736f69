package workerpool

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jpp0ca/tunesync-core/internal/domain"
	"github.com/jpp0ca/tunesync-core/internal/taskstore"
)

// fakeRedis mirrors taskstore's own test fake; kept local since the
// underlying interface is package-private.
type fakeRedis struct {
	mu     sync.Mutex
	values map[string]string
	queue  []string
}

func newFakeRedis() *fakeRedis { return &fakeRedis{values: make(map[string]string)} }

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
	if len(f.queue) > 0 {
		v := f.queue[0]
		f.queue = f.queue[1:]
		f.mu.Unlock()
		return v, true, nil
	}
	f.mu.Unlock()

	select {
	case <-time.After(timeout):
		return "", false, nil
	case <-ctx.Done():
		return "", false, nil
	}
}

func (f *fakeRedis) ScanKeys(ctx context.Context, pattern string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0, len(f.values))
	for k := range f.values {
		keys = append(keys, k)
	}
	return keys, nil
}

type fakeHandler struct {
	mu       sync.Mutex
	handled  int
	behavior func(tc *TaskContext) error
}

func (h *fakeHandler) Handle(ctx context.Context, tc *TaskContext) error {
	h.mu.Lock()
	h.handled++
	h.mu.Unlock()
	if h.behavior != nil {
		return h.behavior(tc)
	}
	return tc.Finish(ctx)
}

func TestPoolDispatchesKnownKindAndFinishes(t *testing.T) {
	redis := newFakeRedis()
	store := taskstore.New(redis)
	ctx := context.Background()

	task := domain.Task{
		TaskID: "task-1", UserID: "user-1", Kind: domain.TaskKindPlaylistTransfer,
		Status: domain.TaskQueued, QueuedAt: time.Now().Unix(),
	}
	if err := store.Enqueue(ctx, task); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	handler := &fakeHandler{}
	pool := New(store, map[domain.TaskKind]Handler{domain.TaskKindPlaylistTransfer: handler}, 1)

	runCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		pool.Run(runCtx)
		close(done)
	}()

	// give the single worker a beat to pop and finish the one task, then
	// cancel so Run returns.
	time.Sleep(100 * time.Millisecond)
	cancel()
	<-done

	if handler.handled != 1 {
		t.Fatalf("expected the handler to run exactly once, got %d", handler.handled)
	}

	key := taskstore.MakeTaskKey(domain.TaskKindPlaylistTransfer, "user-1", "task-1")
	reloaded, found, err := store.Load(context.Background(), key)
	if err != nil || !found {
		t.Fatalf("expected to reload task, found=%v err=%v", found, err)
	}
	if reloaded.Status != domain.TaskFinished {
		t.Fatalf("expected FINISHED, got %s", reloaded.Status)
	}
}

func TestPoolMarksFailedForUnknownKind(t *testing.T) {
	redis := newFakeRedis()
	store := taskstore.New(redis)
	ctx := context.Background()

	task := domain.Task{
		TaskID: "task-1", UserID: "user-1", Kind: domain.TaskKind("mystery"),
		Status: domain.TaskQueued, QueuedAt: time.Now().Unix(),
	}
	if err := store.Enqueue(ctx, task); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pool := New(store, map[domain.TaskKind]Handler{}, 1)
	runCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		pool.Run(runCtx)
		close(done)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()
	<-done

	key := taskstore.MakeTaskKey(domain.TaskKind("mystery"), "user-1", "task-1")
	reloaded, found, err := store.Load(context.Background(), key)
	if err != nil || !found {
		t.Fatalf("expected to reload task, found=%v err=%v", found, err)
	}
	if reloaded.Status != domain.TaskFailed {
		t.Fatalf("expected FAILED for an unknown kind, got %s", reloaded.Status)
	}
}

func TestPoolHandlerErrorMarksFailed(t *testing.T) {
	redis := newFakeRedis()
	store := taskstore.New(redis)
	ctx := context.Background()

	task := domain.Task{
		TaskID: "task-1", UserID: "user-1", Kind: domain.TaskKindPlaylistTransfer,
		Status: domain.TaskQueued, QueuedAt: time.Now().Unix(),
	}
	if err := store.Enqueue(ctx, task); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	handler := &fakeHandler{behavior: func(tc *TaskContext) error {
		return errUnexpected
	}}
	pool := New(store, map[domain.TaskKind]Handler{domain.TaskKindPlaylistTransfer: handler}, 1)

	runCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		pool.Run(runCtx)
		close(done)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()
	<-done

	key := taskstore.MakeTaskKey(domain.TaskKindPlaylistTransfer, "user-1", "task-1")
	reloaded, found, err := store.Load(context.Background(), key)
	if err != nil || !found {
		t.Fatalf("expected to reload task, found=%v err=%v", found, err)
	}
	if reloaded.Status != domain.TaskFailed {
		t.Fatalf("expected FAILED after handler error, got %s", reloaded.Status)
	}
}

var errUnexpected = &testError{"boom"}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }
