// Package workerpool is the fixed-N cooperative task runtime described in
// spec.md §4.7. Grounded on
// original_source/webui/api/workers/dispatcher.py's worker loop, translated
// from asyncio tasks + redis.asyncio into goroutines + context.Context.
package workerpool

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog/log"

	"github.com/jpp0ca/tunesync-core/internal/domain"
	"github.com/jpp0ca/tunesync-core/internal/taskstore"
)

const (
	popTimeout    = 5 * time.Second
	idleSleep     = time.Second
	shutdownNote  = "Worker shutdown. Task will be retried."
)

// Handler processes one task of a specific kind. It owns the final save:
// it is responsible for transitioning the task to a terminal status
// (FINISHED, FAILED, or CANCELED) before returning nil. A non-nil error
// return represents a bug or truly unexpected failure the handler could
// not itself record — the pool marks the task FAILED on its behalf.
type Handler interface {
	Handle(ctx context.Context, tc *TaskContext) error
}

// Pool runs a fixed number of workers pulling from a Store's queue.
type Pool struct {
	store      *taskstore.Store
	handlers   map[domain.TaskKind]Handler
	numWorkers int
}

// New builds a Pool with numWorkers concurrent workers, dispatching by
// task kind per handlers.
func New(store *taskstore.Store, handlers map[domain.TaskKind]Handler, numWorkers int) *Pool {
	if numWorkers <= 0 {
		numWorkers = 3
	}
	return &Pool{store: store, handlers: handlers, numWorkers: numWorkers}
}

// Run starts numWorkers workers and blocks until ctx is canceled, at which
// point each worker finishes its current iteration, puts any in-flight
// task ON_HOLD, and returns.
func (p *Pool) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < p.numWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			p.runWorker(ctx, workerID)
		}(i)
	}
	wg.Wait()
}

func (p *Pool) runWorker(ctx context.Context, workerID int) {
	name := workerName(workerID)
	log.Info().Str("worker", name).Msg("workerpool: starting up")

	for {
		if ctx.Err() != nil {
			log.Info().Str("worker", name).Msg("workerpool: received shutdown signal")
			return
		}

		processed, err := p.processOne(ctx, name)
		if err != nil {
			log.Error().Str("worker", name).Err(err).Msg("workerpool: unexpected error, worker exiting")
			return
		}
		if processed {
			select {
			case <-ctx.Done():
				return
			case <-time.After(idleSleep):
			}
		}
	}
}

// processOne runs one iteration of the loop in spec.md §4.7's pseudocode.
// It returns (true, nil) if a task was popped and dispatched (regardless
// of whether the handler ultimately succeeded — the handler is
// responsible for recording its own outcome), and (false, nil) if the
// queue was empty.
func (p *Pool) processOne(ctx context.Context, workerName string) (bool, error) {
	task, key, ok, err := p.store.PopNext(ctx, popTimeout)
	if err != nil {
		return false, errors.Wrap(err, "workerpool: pop next task")
	}
	if !ok {
		return false, nil
	}

	if task.Status != domain.TaskQueued {
		log.Warn().Str("worker", workerName).Str("task", task.TaskID).Str("status", string(task.Status)).
			Msg("workerpool: task status is not QUEUED, skipping")
		return true, nil
	}

	now := time.Now().Unix()
	task.Status = domain.TaskRunning
	task.StartedAt = &now
	task.LastHeartbeat = &now
	task.WorkerID = &workerName
	task.ClearReason()

	if err := p.store.Save(ctx, key, task); err != nil {
		return false, errors.Wrap(err, "workerpool: persist RUNNING transition")
	}
	log.Info().Str("worker", workerName).Str("task", task.TaskID).Msg("workerpool: QUEUED -> RUNNING")

	tc := newTaskContext(p.store, key, task, workerName)

	heartbeatCtx, stopHeartbeat := context.WithCancel(ctx)
	var heartbeatWG sync.WaitGroup
	heartbeatWG.Add(1)
	go func() {
		defer heartbeatWG.Done()
		runHeartbeat(heartbeatCtx, tc)
	}()

	handler, known := p.handlers[task.Kind]
	var handleErr error
	if !known {
		handleErr = tc.Fail(ctx, "Unknown task type: "+string(task.Kind))
	} else {
		handleErr = handler.Handle(ctx, tc)
	}

	stopHeartbeat()
	heartbeatWG.Wait()

	if ctx.Err() != nil {
		log.Info().Str("worker", workerName).Str("task", task.TaskID).Msg("workerpool: marking ON_HOLD due to shutdown")
		_ = tc.Hold(context.Background(), shutdownNote)
		return true, nil
	}

	if handleErr != nil {
		log.Error().Str("worker", workerName).Str("task", task.TaskID).Err(handleErr).Msg("workerpool: handler returned an error")
		_ = tc.Fail(context.Background(), "Worker error: "+handleErr.Error())
	}

	return true, nil
}

func runHeartbeat(ctx context.Context, tc *TaskContext) {
	ticker := time.NewTicker(taskstore.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := tc.Heartbeat(ctx); err != nil {
				log.Debug().Err(err).Msg("workerpool: heartbeat update failed")
			}
		}
	}
}

func workerName(id int) string {
	return "worker-" + strconv.Itoa(id)
}
