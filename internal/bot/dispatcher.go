package bot

import (
	"context"
	"errors"
	log "log/slog"
	"sync"
)

var ErrStopped = errors.New("dispatcher stopped")

// Submitter accepts updates from a transport.
type Submitter interface {
	Submit(ctx context.Context, r Responder, u Update) error
}

type job struct {
	r Responder
	u Update
}

// Dispatcher runs updates on a fixed set of workers. All updates of one
// user land on the same worker, so they are handled in arrival order.
type Dispatcher struct {
	h      Handler
	queues []chan job
	wg     sync.WaitGroup

	mu      sync.RWMutex
	stopped bool
}

func NewDispatcher(workers, queue int, h Handler) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	if queue < 0 {
		queue = 0
	}
	d := &Dispatcher{h: h, queues: make([]chan job, workers)}
	for i := range d.queues {
		d.queues[i] = make(chan job, queue)
	}
	return d
}

// Start launches the workers. Handlers get ctx.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, q := range d.queues {
		d.wg.Add(1)
		go func(id int, q <-chan job) {
			defer d.wg.Done()
			for j := range q {
				d.h.Handle(ctx, j.r, j.u)
			}
			log.Debug("Worker stopped", "worker", id)
		}(i, q)
	}
}

// Submit queues u for its user's worker, blocking while that worker is busy.
func (d *Dispatcher) Submit(ctx context.Context, r Responder, u Update) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		return ErrStopped
	}

	select {
	case d.queues[d.shard(u.UserID)] <- job{r: r, u: u}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop rejects new updates and waits for queued ones to finish.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	for _, q := range d.queues {
		close(q)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) shard(userID int64) int {
	return int(uint64(userID) % uint64(len(d.queues)))
}
