// Package recovery implements the startup stale-task sweep (spec.md §4.9).
// Grounded on original_source/webui/api/workers/recovery.go's
// recover_stale_tasks.
package recovery

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog/log"

	"github.com/jpp0ca/tunesync-core/internal/domain"
	"github.com/jpp0ca/tunesync-core/internal/taskstore"
)

// scanner is the narrow slice of taskstore.Store the sweeper needs: a
// pattern scan and per-key load/save. Satisfied by *taskstore.Store.
type scanner interface {
	ScanRunning(ctx context.Context) ([]string, error)
	Load(ctx context.Context, key string) (domain.Task, bool, error)
	Save(ctx context.Context, key string, task domain.Task) error
}

// Sweeper scans for RUNNING tasks whose heartbeat (or, failing that,
// started_at) has gone stale and marks them FAILED, so a crashed worker
// doesn't leave a task stuck RUNNING forever.
type Sweeper struct {
	store scanner
}

// New builds a Sweeper over store.
func New(store scanner) *Sweeper {
	return &Sweeper{store: store}
}

// Run performs one sweep and returns the number of tasks it recovered.
func (s *Sweeper) Run(ctx context.Context) (int, error) {
	keys, err := s.store.ScanRunning(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "recovery: scan running tasks")
	}

	now := time.Now().Unix()
	recovered := 0

	for _, key := range keys {
		task, found, err := s.store.Load(ctx, key)
		if err != nil {
			return recovered, errors.Wrap(err, "recovery: load task record")
		}
		if !found || task.Status != domain.TaskRunning {
			continue
		}

		stale := isStale(task, now)
		if !stale {
			continue
		}

		log.Warn().Str("task", task.TaskID).Msg("recovery: found stale RUNNING task, marking FAILED")

		task.Status = domain.TaskFailed
		task.Reason("Worker died unexpectedly. Task was not completed.")
		task.DoneAt = &now

		if err := s.store.Save(ctx, key, task); err != nil {
			return recovered, errors.Wrap(err, "recovery: persist recovered task")
		}
		recovered++
	}

	return recovered, nil
}

func isStale(task domain.Task, now int64) bool {
	threshold := int64(taskstore.HeartbeatStaleThreshold / time.Second)

	if task.LastHeartbeat != nil {
		return now-*task.LastHeartbeat > threshold
	}
	if task.StartedAt != nil {
		return now-*task.StartedAt > threshold
	}
	return false
}
