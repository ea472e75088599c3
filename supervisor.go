package gspawn

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eapache/queue"
)

type (
	// ReapPolicy decides when exited workers are reclaimed.
	ReapPolicy int

	// Supervisor reclaims the workers handed to Track. Until a worker is
	// reclaimed it keeps its Limiter slot, and a process worker keeps its
	// process table entry as a zombie.
	Supervisor struct {
		Policy ReapPolicy
		// Interval between sweeps under ReapSweep. Zero means DefaultSweepInterval.
		Interval   time.Duration
		Logger     Logger
		Limiters   []Limiter
		Statistics Statistics

		mu        sync.Mutex
		workers   map[Worker]struct{}
		pending   *queue.Queue
		waiters   sync.WaitGroup
		reclaimed uint64 // accessed atomically
		stop      chan struct{}
		stopOnce  sync.Once
		sweeping  bool
	}
)

const (
	// ReapAsync blocks one goroutine in Wait per worker.
	ReapAsync ReapPolicy = iota
	// ReapSweep polls pending workers without blocking every Interval.
	ReapSweep
	// ReapNever leaves exited workers unreclaimed.
	ReapNever
)

const (
	DefaultSweepInterval = time.Second
)

func (p ReapPolicy) String() string {
	switch p {
	case ReapAsync:
		return "async"
	case ReapSweep:
		return "sweep"
	case ReapNever:
		return "never"
	}
	return "unknown"
}

func (s *Supervisor) init() {
	if s.workers == nil {
		s.workers = make(map[Worker]struct{})
		s.pending = queue.New()
		s.stop = make(chan struct{})
	}
	if s.Logger == nil {
		s.Logger = DefaultLogger
	}
}

// Track takes responsibility for reclaiming w.
func (s *Supervisor) Track(w Worker) {
	s.mu.Lock()
	s.init()
	s.workers[w] = struct{}{}
	switch s.Policy {
	case ReapAsync:
		s.waiters.Add(1)
		go func() {
			defer s.waiters.Done()
			s.reclaim(w, w.Wait())
		}()
	case ReapSweep:
		s.pending.Add(w)
		if !s.sweeping {
			s.sweeping = true
			go s.sweepLoop()
		}
	}
	s.mu.Unlock()
}

func (s *Supervisor) sweepLoop() {
	interval := s.Interval
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Sweep reclaims every pending worker that has exited, without blocking,
// and returns how many it reclaimed.
func (s *Supervisor) Sweep() int {
	s.mu.Lock()
	s.init()
	batch := make([]Worker, 0, s.pending.Length())
	for s.pending.Length() > 0 {
		batch = append(batch, s.pending.Remove().(Worker))
	}
	s.mu.Unlock()

	n := 0
	var retry []Worker
	for _, w := range batch {
		ok, err := w.TryReap()
		switch {
		case ok, err != nil:
			// a worker that cannot be waited for is gone either way
			s.reclaim(w, err)
			n++
		default:
			retry = append(retry, w)
		}
	}

	s.mu.Lock()
	for _, w := range retry {
		s.pending.Add(w)
	}
	s.mu.Unlock()
	return n
}

func (s *Supervisor) reclaim(w Worker, err error) {
	if !s.forget(w) {
		return
	}
	if err != nil {
		s.Logger.Errorf("gspawn: worker %d: %v", w.ID(), err)
	}
	atomic.AddUint64(&s.reclaimed, 1)
	for _, limiter := range s.Limiters {
		limiter.OnReclaim(w)
	}
	if s.Statistics != nil {
		s.Statistics.AddEvent(EventReclaimed)
	}
	s.Logger.Debugf("gspawn: worker %d reclaimed", w.ID())
}

func (s *Supervisor) forget(w Worker) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.workers[w]; !ok {
		return false
	}
	delete(s.workers, w)
	return true
}

// Live returns the number of tracked workers not yet reclaimed.
func (s *Supervisor) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.workers)
}

// Zombies returns the number of tracked workers that have exited but have
// not been reclaimed.
func (s *Supervisor) Zombies() int {
	s.mu.Lock()
	workers := make([]Worker, 0, len(s.workers))
	for w := range s.workers {
		workers = append(workers, w)
	}
	s.mu.Unlock()
	n := 0
	for _, w := range workers {
		if w.State() == WorkerExited {
			n++
		}
	}
	return n
}

// Reclaimed returns the number of workers reclaimed so far.
func (s *Supervisor) Reclaimed() uint64 {
	return atomic.LoadUint64(&s.reclaimed)
}

// Close stops the periodic sweep. Workers still tracked stay unreclaimed.
func (s *Supervisor) Close() error {
	s.mu.Lock()
	s.init()
	s.mu.Unlock()
	s.stopOnce.Do(func() { close(s.stop) })
	return nil
}

// Shutdown stops the periodic sweep and reclaims every tracked worker,
// waiting for running ones, regardless of Policy.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.Close()
	s.mu.Lock()
	workers := make([]Worker, 0, len(s.workers))
	for w := range s.workers {
		workers = append(workers, w)
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		var wg sync.WaitGroup
		for _, w := range workers {
			wg.Add(1)
			go func(w Worker) {
				defer wg.Done()
				s.reclaim(w, w.Wait())
			}(w)
		}
		wg.Wait()
		s.waiters.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
