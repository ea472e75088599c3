package gspawn

import (
	"context"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
)

type (
	// WorkerState is the lifecycle position of a Worker.
	WorkerState int32

	// Worker is an isolated unit serving exactly one connection.
	Worker interface {
		// ID is the pid of a process worker, a sequence number otherwise.
		ID() int
		ParentID() int
		State() WorkerState
		// Wait blocks until the worker exits and reclaims it.
		Wait() error
		// TryReap reclaims the worker if it has exited, without blocking.
		TryReap() (bool, error)
	}

	// Dispatcher creates a worker for an accepted connection. The parent
	// ref stays owned by the caller; the worker gets its own reference.
	Dispatcher interface {
		Spawn(ctx context.Context, parent *Ref) (Worker, error)
	}

	// GoroutineDispatcher runs each worker on its own goroutine. The worker
	// owns exactly one Ref and nothing else.
	GoroutineDispatcher struct {
		Handler ConnHandler
		Logger  Logger
		// Done is called with the connection after the handler returned,
		// before the worker releases its reference.
		Done func(Conn)

		seq int64
	}

	goroutineWorker struct {
		id    int
		ppid  int
		state atomic.Int32
		done  chan struct{}
		once  sync.Once
	}
)

const (
	WorkerSpawned WorkerState = iota
	WorkerRunning
	WorkerExited
	WorkerReclaimed
)

func (s WorkerState) String() string {
	switch s {
	case WorkerSpawned:
		return "spawned"
	case WorkerRunning:
		return "running"
	case WorkerExited:
		return "exited"
	case WorkerReclaimed:
		return "reclaimed"
	}
	return "unknown"
}

func (gd *GoroutineDispatcher) Spawn(ctx context.Context, parent *Ref) (Worker, error) {
	if gd.Handler == nil {
		panic("gspawn: nil handler")
	}
	logger := gd.Logger
	if logger == nil {
		logger = DefaultLogger
	}
	w := &goroutineWorker{
		id:   int(atomic.AddInt64(&gd.seq, 1)),
		ppid: os.Getpid(),
		done: make(chan struct{}),
	}
	ref := parent.Dup()
	go func() {
		conn := ref.Handle().Conn()
		defer func() {
			if err := recover(); err != nil && err != ErrAbortHandler {
				const size = 64 << 10
				buf := make([]byte, size)
				buf = buf[:runtime.Stack(buf, false)]
				logger.Errorf("gspawn: panic serving %v: %v\n%s", conn.RemoteAddr(), err, buf)
			}
			if gd.Done != nil {
				gd.Done(conn)
			}
			ref.Release()
			close(w.done)
			w.state.CompareAndSwap(int32(WorkerRunning), int32(WorkerExited))
		}()
		w.state.Store(int32(WorkerRunning))
		// context per connection
		ctx, cancel := context.WithCancel(ctx)
		conn.SetCancelFunc(cancel)
		defer cancel()
		if err := gd.Handler(ctx, conn); err != nil {
			logger.Errorf("gspawn: worker %d serving %v: %v", w.id, conn.RemoteAddr(), err)
		}
	}()
	return w, nil
}

func (w *goroutineWorker) ID() int            { return w.id }
func (w *goroutineWorker) ParentID() int      { return w.ppid }
func (w *goroutineWorker) State() WorkerState { return WorkerState(w.state.Load()) }

func (w *goroutineWorker) Wait() error {
	<-w.done
	w.reclaim()
	return nil
}

func (w *goroutineWorker) TryReap() (bool, error) {
	select {
	case <-w.done:
		w.reclaim()
		return true, nil
	default:
		return false, nil
	}
}

func (w *goroutineWorker) reclaim() {
	w.once.Do(func() {
		w.state.Store(int32(WorkerReclaimed))
	})
}
