package taskstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/jpp0ca/tunesync-core/internal/domain"
)

// redisCommands is the narrow slice of Redis semantics the store needs:
// a TTL'd string KV, an atomic list push, a blocking pop, and a cursor
// scan. Satisfied by *RedisAdapter (over a *redis.Client) in production
// and by an in-memory fake in tests.
type redisCommands interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, bool, error)
	Delete(ctx context.Context, key string) error
	RPush(ctx context.Context, list, value string) error
	BLPop(ctx context.Context, list string, timeout time.Duration) (string, bool, error)
	ScanKeys(ctx context.Context, pattern string) ([]string, error)
}

// Store is the durable task record + work queue described in spec.md §4.6.
type Store struct {
	redis redisCommands
}

// New builds a Store over a redisCommands implementation.
func New(redis redisCommands) *Store {
	return &Store{redis: redis}
}

// Enqueue persists a fresh QUEUED task record and pushes its key onto the
// work queue. Callers are expected to have set task.Status to TaskQueued
// and task.QueuedAt already.
func (s *Store) Enqueue(ctx context.Context, task domain.Task) error {
	key := MakeTaskKey(task.Kind, task.UserID, task.TaskID)

	raw, err := json.Marshal(task)
	if err != nil {
		return errors.Wrap(err, "taskstore: marshal task")
	}
	if err := s.redis.Set(ctx, key, string(raw), ttlForStatus(task.Status)); err != nil {
		return errors.Wrap(err, "taskstore: persist task record")
	}
	if err := s.redis.RPush(ctx, TaskQueueName, key); err != nil {
		return errors.Wrap(err, "taskstore: push task onto queue")
	}
	return nil
}

// PopNext blocks up to timeout for the next queued task key and loads its
// record. A worker that pops a key whose record has since expired or been
// deleted gets (domain.Task{}, "", false, nil) — the pop is simply discarded,
// matching spec.md §4.6's "atomic enough" note.
func (s *Store) PopNext(ctx context.Context, timeout time.Duration) (domain.Task, string, bool, error) {
	key, ok, err := s.redis.BLPop(ctx, TaskQueueName, timeout)
	if err != nil {
		return domain.Task{}, "", false, errors.Wrap(err, "taskstore: blocking pop")
	}
	if !ok {
		return domain.Task{}, "", false, nil
	}

	task, found, err := s.Load(ctx, key)
	if err != nil {
		return domain.Task{}, "", false, err
	}
	if !found {
		return domain.Task{}, "", false, nil
	}
	return task, key, true, nil
}

// Load reads and decodes the task record at key, if present.
func (s *Store) Load(ctx context.Context, key string) (domain.Task, bool, error) {
	raw, ok, err := s.redis.Get(ctx, key)
	if err != nil {
		return domain.Task{}, false, errors.Wrap(err, "taskstore: load task record")
	}
	if !ok {
		return domain.Task{}, false, nil
	}

	var task domain.Task
	if err := json.Unmarshal([]byte(raw), &task); err != nil {
		return domain.Task{}, false, errors.Wrap(err, "taskstore: decode task record")
	}
	return task, true, nil
}

// Save persists task at key with the TTL appropriate to its current
// status (queued/running TTLs are 1h, terminal states get 24h).
func (s *Store) Save(ctx context.Context, key string, task domain.Task) error {
	raw, err := json.Marshal(task)
	if err != nil {
		return errors.Wrap(err, "taskstore: marshal task")
	}
	if err := s.redis.Set(ctx, key, string(raw), ttlForStatus(task.Status)); err != nil {
		return errors.Wrap(err, "taskstore: persist task record")
	}
	return nil
}

// ListForUser scans for every task key belonging to userID and returns
// the decoded records it can still load (keys that expired between scan
// and load are silently skipped).
func (s *Store) ListForUser(ctx context.Context, userID string) ([]domain.Task, error) {
	keys, err := s.redis.ScanKeys(ctx, MakeUserTasksPattern(userID))
	if err != nil {
		return nil, errors.Wrap(err, "taskstore: scan user tasks")
	}

	tasks := make([]domain.Task, 0, len(keys))
	for _, key := range keys {
		task, found, err := s.Load(ctx, key)
		if err != nil {
			return nil, err
		}
		if found {
			tasks = append(tasks, task)
		}
	}
	return tasks, nil
}

// ScanRunning scans for every task key of any kind/user, used by the
// recovery sweeper to find stale RUNNING tasks.
func (s *Store) ScanRunning(ctx context.Context) ([]string, error) {
	keys, err := s.redis.ScanKeys(ctx, MakeRunningTasksPattern())
	if err != nil {
		return nil, errors.Wrap(err, "taskstore: scan running tasks")
	}
	return keys, nil
}

// MarkCancelled finds the unique task matching (userID, taskID), sets it
// to CANCELED with a done_at timestamp, and persists it with the terminal
// TTL. The worker observes this at its next cooperative cancellation
// check (spec.md §4.7) — this call never touches a running process
// directly.
func (s *Store) MarkCancelled(ctx context.Context, userID, taskID string) error {
	keys, err := s.redis.ScanKeys(ctx, MakeUserTasksPattern(userID))
	if err != nil {
		return errors.Wrap(err, "taskstore: scan user tasks")
	}

	for _, key := range keys {
		_, _, parsedTaskID, parseErr := ParseTaskKey(key)
		if parseErr != nil || parsedTaskID != taskID {
			continue
		}

		task, found, loadErr := s.Load(ctx, key)
		if loadErr != nil {
			return loadErr
		}
		if !found {
			return errors.Newf("taskstore: task %s not found", taskID)
		}

		if task.Status.IsTerminal() {
			return nil
		}

		now := formatUnix(time.Now())
		task.Status = domain.TaskCanceled
		task.DoneAt = &now
		task.Reason("Canceled by user.")

		return s.Save(ctx, key, task)
	}

	return errors.Newf("taskstore: no task %s for user %s", taskID, userID)
}

// NewTaskID generates a fresh task identifier.
func NewTaskID() string { return uuid.NewString() }
