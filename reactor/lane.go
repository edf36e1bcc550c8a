package reactor

import (
	"log/slog"
	"sync"

	"github.com/eapache/queue"
)

type Lane struct {
	id int

	mu      sync.Mutex
	q       *queue.Queue // of func(), protected by mu.
	stopped bool

	wake chan struct{}
	done chan struct{}

	logger *slog.Logger
}

func newLane(id int, logger *slog.Logger) *Lane {
	return &Lane{
		id:     id,
		q:      queue.New(),
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		logger: logger.With("lane", id),
	}
}

func (l *Lane) ID() int { return l.id }

// Post enqueues fn. It fails only after the lane is stopped.
func (l *Lane) Post(fn func()) error {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return ErrClosed
	}
	l.q.Add(fn)
	l.mu.Unlock()

	l.notify()
	return nil
}

// Go runs op on its own goroutine and posts done to the lane after op
// returns. op must not touch state owned by the lane.
func (l *Lane) Go(op func(), done func()) {
	go func() {
		op()
		if err := l.Post(done); err != nil {
			l.logger.Error("dropping completion", "error", err)
		}
	}()
}

func (l *Lane) notify() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *Lane) run() {
	defer close(l.done)

	for {
		l.mu.Lock()
		for l.q.Length() == 0 {
			if l.stopped {
				l.mu.Unlock()
				return
			}
			l.mu.Unlock()
			<-l.wake
			l.mu.Lock()
		}
		fn := l.q.Remove().(func())
		l.mu.Unlock()

		fn()
	}
}

// stop lets the lane finish what is queued, then waits for it to exit.
func (l *Lane) stop() {
	l.mu.Lock()
	l.stopped = true
	l.mu.Unlock()

	l.notify()
	<-l.done
}
