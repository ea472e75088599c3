package gspawn

import "sync/atomic"

type (
	// Limiter admits or refuses new workers. A worker counts against a
	// Limiter from OnSpawn until it is reclaimed, so unreclaimed workers
	// keep their slot the way zombies keep a process table entry.
	Limiter interface {
		OnSpawn(*Handle) bool
		OnReclaim(Worker)
	}

	// MaxWorkerLimiter models a process count ceiling.
	MaxWorkerLimiter struct {
		Max     uint32
		current uint32 // accessed atomically
	}
)

func (ml *MaxWorkerLimiter) OnSpawn(*Handle) bool {
	new := atomic.AddUint32(&ml.current, 1)
	if new > ml.Max {
		atomic.AddUint32(&ml.current, ^uint32(0))
		return false
	}
	return true
}

func (ml *MaxWorkerLimiter) OnReclaim(Worker) {
	atomic.AddUint32(&ml.current, ^uint32(0))
}

// Current returns the number of admitted, unreclaimed workers.
func (ml *MaxWorkerLimiter) Current() uint32 {
	return atomic.LoadUint32(&ml.current)
}
