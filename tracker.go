package gspawn

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

type (
	// HandleTracker follows every handle from accept until it is fully
	// released.
	HandleTracker interface {
		AddHandle(*Handle)
		DelHandle(*Handle)
		// Open returns the number of handles not yet fully released.
		Open() int
		Close() error
		Shutdown(context.Context) error
	}

	// WGHandleTracker only waits for handles to be released.
	WGHandleTracker struct {
		wg   sync.WaitGroup
		open int64
	}

	// MapHandleTracker can also force close the connections of handles
	// that are still referenced.
	MapHandleTracker struct {
		mu         sync.Mutex
		liveHandle map[*Handle]struct{}
	}
)

var (
	shutdownPollInterval = 50 * time.Millisecond
)

func (ht *WGHandleTracker) AddHandle(*Handle) {
	atomic.AddInt64(&ht.open, 1)
	ht.wg.Add(1)
}

func (ht *WGHandleTracker) DelHandle(*Handle) {
	atomic.AddInt64(&ht.open, -1)
	ht.wg.Done()
}

func (ht *WGHandleTracker) Open() int {
	return int(atomic.LoadInt64(&ht.open))
}

func (ht *WGHandleTracker) Close() error {
	ht.wg.Wait()
	return nil
}

func (ht *WGHandleTracker) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		ht.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func NewMapHandleTracker() HandleTracker {
	return &MapHandleTracker{
		liveHandle: make(map[*Handle]struct{}),
	}
}

func (ht *MapHandleTracker) AddHandle(h *Handle) {
	ht.mu.Lock()
	ht.liveHandle[h] = struct{}{}
	ht.mu.Unlock()
}

func (ht *MapHandleTracker) DelHandle(h *Handle) {
	ht.mu.Lock()
	delete(ht.liveHandle, h)
	ht.mu.Unlock()
}

func (ht *MapHandleTracker) Open() int {
	ht.mu.Lock()
	defer ht.mu.Unlock()
	return len(ht.liveHandle)
}

// Close closes the local connection of every live handle regardless of
// outstanding references.
func (ht *MapHandleTracker) Close() error {
	ht.mu.Lock()
	defer ht.mu.Unlock()
	for h := range ht.liveHandle {
		h.Conn().Close()
		delete(ht.liveHandle, h)
	}
	return nil
}

// Shutdown waits until every handle has been fully released.
func (ht *MapHandleTracker) Shutdown(ctx context.Context) error {
	ticker := time.NewTicker(shutdownPollInterval)
	defer ticker.Stop()
	for {
		if ht.Open() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
