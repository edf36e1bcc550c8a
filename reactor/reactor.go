package reactor

import (
	"context"
	"log/slog"
	"runtime"
	"sync"

	"code.hybscloud.com/atomix"
	"github.com/pkg/errors"
)

var (
	ErrClosed        = errors.New("reactor is closed")
	ErrDuplicateTask = errors.New("task is already in flight")
)

type Options struct {
	// Lanes is the number of lanes. Default is runtime.GOMAXPROCS(0).
	Lanes int
}

// Task is anything kept in the arena while in flight.
type Task interface {
	ID() uint32
}

type Reactor struct {
	lanes  []*Lane
	cursor atomix.Uint32 // round robin.
	serial atomix.Uint32

	mu       sync.Mutex
	tasks    map[uint32]Task // protected by mu.
	closed   bool            // protected by mu.
	inFlight sync.WaitGroup

	stopOnce sync.Once

	logger *slog.Logger
}

func New(opts Options, logger *slog.Logger) *Reactor {
	n := opts.Lanes
	if n <= 0 {
		n = runtime.GOMAXPROCS(0)
	}

	r := &Reactor{
		lanes:  make([]*Lane, n),
		tasks:  make(map[uint32]Task),
		logger: logger,
	}
	for i := range r.lanes {
		r.lanes[i] = newLane(i, logger)
		go r.lanes[i].run()
	}

	return r
}

// NextID returns a serial unique within the reactor. It is never zero.
func (r *Reactor) NextID() uint32 {
	for {
		if id := r.serial.Add(1); id != 0 {
			return id
		}
	}
}

// Lane picks a lane in round robin.
func (r *Reactor) Lane() *Lane {
	i := r.cursor.Add(1)
	return r.lanes[int(i%uint32(len(r.lanes)))]
}

// Acquire puts t in the arena. release removes it; calling release more
// than once is harmless.
func (r *Reactor) Acquire(t Task) (release func(), err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrClosed
	}
	if _, ok := r.tasks[t.ID()]; ok {
		return nil, errors.Wrapf(ErrDuplicateTask, "id %d", t.ID())
	}

	r.tasks[t.ID()] = t
	r.inFlight.Add(1)

	var once sync.Once
	release = func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.tasks, t.ID())
			r.mu.Unlock()

			r.inFlight.Done()
		})
	}

	return release, nil
}

func (r *Reactor) InFlight() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}

func (r *Reactor) Lookup(id uint32) (Task, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	return t, ok
}

// Shutdown refuses new tasks and waits for in-flight ones to be released,
// then stops every lane. If ctx ends first, lanes keep running and
// Shutdown may be called again.
func (r *Reactor) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	remaining := len(r.tasks)
	r.mu.Unlock()

	if remaining > 0 {
		r.logger.Info("waiting for in-flight tasks", "count", remaining)
	}

	done := make(chan struct{})
	go func() {
		r.inFlight.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "waiting for in-flight tasks")
	case <-done:
	}

	r.stopOnce.Do(func() {
		for _, l := range r.lanes {
			l.stop()
		}
	})

	return nil
}
