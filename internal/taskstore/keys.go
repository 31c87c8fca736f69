// Package taskstore is the durable task record and work queue backing the
// background task runtime (spec.md §4.6). Grounded on
// original_source/webui/api/workers/keys.py and dispatcher.py/recovery.py's
// use of Redis as both a keyed store and a blocking work queue.
package taskstore

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/jpp0ca/tunesync-core/internal/domain"
)

// TTLs and heartbeat settings, ported verbatim from keys.py's constants.
const (
	TTLQueued   = time.Hour
	TTLRunning  = time.Hour
	TTLFinished = 24 * time.Hour

	HeartbeatInterval      = 30 * time.Second
	HeartbeatStaleThreshold = 120 * time.Second
)

// TaskQueueName is the single Redis list every queued task key is pushed
// onto.
const TaskQueueName = "user_tasks_queue"

// MakeTaskKey builds the Redis key for a task record: user_tasks:{kind}:{user_id}:{task_id}.
func MakeTaskKey(kind domain.TaskKind, userID, taskID string) string {
	return "user_tasks:" + string(kind) + ":" + userID + ":" + taskID
}

// ParseTaskKey splits a task key back into its components.
func ParseTaskKey(key string) (kind domain.TaskKind, userID, taskID string, err error) {
	parts := strings.Split(key, ":")
	if len(parts) != 4 || parts[0] != "user_tasks" {
		return "", "", "", errors.Wrapf(domain.ErrInvalidArgument, "invalid task key format: %s", key)
	}
	return domain.TaskKind(parts[1]), parts[2], parts[3], nil
}

// MakeUserTasksPattern builds a SCAN pattern matching every task key
// belonging to userID, of any kind.
func MakeUserTasksPattern(userID string) string {
	return "user_tasks:*:" + userID + ":*"
}

// MakeRunningTasksPattern builds a SCAN pattern matching every task key,
// used by the recovery sweeper to find stale RUNNING tasks.
func MakeRunningTasksPattern() string {
	return "user_tasks:*:*:*"
}

// ttlForStatus returns the TTL a task record should carry once saved in
// the given status, per spec.md §4.6.
func ttlForStatus(status domain.TaskStatus) time.Duration {
	switch status {
	case domain.TaskQueued:
		return TTLQueued
	case domain.TaskRunning, domain.TaskOnHold:
		return TTLRunning
	default:
		return TTLFinished
	}
}

func formatUnix(t time.Time) int64 { return t.Unix() }
