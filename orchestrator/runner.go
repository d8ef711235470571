package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/yllada/ncconnect/common"
)

// Thunk is the body of a background task. Only the realm fetch returns
// realms.
type Thunk func(ctx context.Context) ([]string, error)

// Runner executes thunks off the dispatch goroutine and delivers each
// outcome back to the mailbox as a TaskResult.
type Runner struct {
	ctx     context.Context
	cancel  context.CancelFunc
	timeout time.Duration
	deliver func(TaskResult)
	wg      sync.WaitGroup

	mu          sync.Mutex
	batch       context.Context
	cancelBatch context.CancelFunc
}

// NewRunner creates a runner whose tasks get at most timeout each.
func NewRunner(timeout time.Duration, deliver func(TaskResult)) *Runner {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Runner{
		ctx:     ctx,
		cancel:  cancel,
		timeout: timeout,
		deliver: deliver,
	}
	r.batch, r.cancelBatch = context.WithCancel(ctx)
	return r
}

// Go starts fn and returns the task ID. The result carries epoch so the
// reducer can tell results of an abandoned session apart. A panic in fn
// is recovered and reported as the task's error.
func (r *Runner) Go(kind TaskKind, epoch uint64, fn Thunk) string {
	id := common.GenerateID()
	r.wg.Add(1)

	r.mu.Lock()
	ctx := r.batch
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()

		res := TaskResult{ID: id, Kind: kind, Epoch: epoch}
		defer func() {
			if p := recover(); p != nil {
				res.Realms = nil
				res.Err = fmt.Errorf("task %s panicked: %v", kind, p)
			}
			r.deliver(res)
		}()

		if r.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, r.timeout)
			defer cancel()
		}
		common.LogDebug("Task %s (%s) started", kind, id)
		res.Realms, res.Err = fn(ctx)
	}()

	return id
}

// CancelAll cancels the running tasks. Tasks started afterwards are not
// affected.
func (r *Runner) CancelAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelBatch()
	r.batch, r.cancelBatch = context.WithCancel(r.ctx)
}

// Stop cancels running tasks and waits for them to return.
func (r *Runner) Stop() {
	r.cancel()
	r.wg.Wait()
}

// Wait blocks until every started task has delivered its result.
func (r *Runner) Wait() {
	r.wg.Wait()
}
