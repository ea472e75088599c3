package gspawn

import (
	"fmt"
	"sync"
	"sync/atomic"
)

type (
	// Statistics is the interface that wraps operations for accumulating server statistics.
	Statistics interface {
		// AddConnStats adds a Conn statistics.
		AddConnStats(Conn)
		// AddEvent counts one lifecycle event.
		AddEvent(Event)
		// Reset clears statistics holden now.
		Reset()
		// String returns a string that represents the current statistics.
		String() string
	}

	// Event is a lifecycle event counted by Statistics.
	Event int

	// TrafficStatistics implements Statistics to hold the in/out traffic
	// and lifecycle counters of a gspawn server.
	TrafficStatistics struct {
		mu       sync.RWMutex
		inBytes  int64
		outBytes int64
		events   [numEvents]uint64 // accessed atomically
	}
)

const (
	EventAccepted Event = iota
	EventAcceptFailed
	EventSpawned
	EventSpawnFailed
	EventReclaimed
	numEvents
)

// AddConnStats ingests inBytes and outBytes from conn.
// You need to use StatsConn in Server.NewConn if you want in/out traffic.
func (ts *TrafficStatistics) AddConnStats(conn Conn) {
	in, out := conn.Stats()
	ts.mu.Lock()
	ts.inBytes += in
	ts.outBytes += out
	ts.mu.Unlock()
}

func (ts *TrafficStatistics) AddEvent(e Event) {
	atomic.AddUint64(&ts.events[e], 1)
}

// Count returns how many times e was added.
func (ts *TrafficStatistics) Count(e Event) uint64 {
	return atomic.LoadUint64(&ts.events[e])
}

// Reset clears statistics holden now.
func (ts *TrafficStatistics) Reset() {
	ts.mu.Lock()
	ts.inBytes, ts.outBytes = 0, 0
	ts.mu.Unlock()
	for i := range ts.events {
		atomic.StoreUint64(&ts.events[i], 0)
	}
}

// String returns the statistics of a gspawn server as a json string.
func (ts *TrafficStatistics) String() (str string) {
	ts.mu.RLock()
	str = fmt.Sprintf(`{"in_bytes": %d, "out_bytes": %d, "accepted": %d, "accept_failed": %d, "spawned": %d, "spawn_failed": %d, "reclaimed": %d}`,
		ts.inBytes, ts.outBytes,
		ts.Count(EventAccepted), ts.Count(EventAcceptFailed),
		ts.Count(EventSpawned), ts.Count(EventSpawnFailed),
		ts.Count(EventReclaimed))
	ts.mu.RUnlock()
	return
}
