package gspawn

import (
	"sync"
	"sync/atomic"
)

type (
	// Holder names the execution context owning a Ref.
	Holder int

	// HandleState is the lifecycle position of a Handle.
	HandleState int32

	// Handle is an accepted connection shared by the accepting context and
	// the worker serving it. The connection is closed once the last local
	// Ref is released.
	Handle struct {
		conn Conn

		mu     sync.Mutex
		local  int32
		parent bool // parent released
		child  bool // worker released
		state  HandleState

		onRelease func(*Handle)
	}

	// Ref is one holder's reference to a Handle.
	// Remote refs stand for a descriptor living in another process: the
	// kernel counts them, so they do not hold the local connection open.
	Ref struct {
		h        *Handle
		holder   Holder
		remote   bool
		released atomic.Bool
	}
)

const (
	HolderParent Holder = iota
	HolderWorker
)

const (
	StateAccepted HandleState = iota
	StateDispatched
	StateParentReleased
	StateChildReleased
	StateFullyReleased
)

func (h Holder) String() string {
	switch h {
	case HolderParent:
		return "parent"
	case HolderWorker:
		return "worker"
	}
	return "unknown"
}

func (s HandleState) String() string {
	switch s {
	case StateAccepted:
		return "accepted"
	case StateDispatched:
		return "dispatched"
	case StateParentReleased:
		return "parent-released"
	case StateChildReleased:
		return "child-released"
	case StateFullyReleased:
		return "fully-released"
	}
	return "unknown"
}

// NewHandle wraps an accepted connection and returns the accepting
// context's reference to it.
func NewHandle(conn Conn) (*Handle, *Ref) {
	h := &Handle{conn: conn, local: 1, state: StateAccepted}
	return h, &Ref{h: h, holder: HolderParent}
}

// OnRelease registers fn to run once the handle reaches StateFullyReleased.
// It must be set before the handle is dispatched.
func (h *Handle) OnRelease(fn func(*Handle)) {
	h.mu.Lock()
	h.onRelease = fn
	h.mu.Unlock()
}

// Conn returns the underlying connection.
func (h *Handle) Conn() Conn {
	return h.conn
}

// State returns the current lifecycle state.
func (h *Handle) State() HandleState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Refs returns the number of unreleased local references.
func (h *Handle) Refs() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return int(h.local)
}

func (h *Handle) markDispatched() {
	h.mu.Lock()
	if h.state == StateAccepted {
		h.state = StateDispatched
	}
	h.mu.Unlock()
}

// Handle returns the handle r refers to.
func (r *Ref) Handle() *Handle {
	return r.h
}

// Holder returns the context owning r.
func (r *Ref) Holder() Holder {
	return r.holder
}

// Released reports whether r has been released.
func (r *Ref) Released() bool {
	return r.released.Load()
}

// Dup creates a reference for the worker that shares the local connection,
// the way fork duplicates a descriptor into the child, and marks the handle
// dispatched.
func (r *Ref) Dup() *Ref {
	h := r.h
	h.mu.Lock()
	h.local++
	h.mu.Unlock()
	h.markDispatched()
	return &Ref{h: h, holder: HolderWorker}
}

// Remote creates a worker reference for a descriptor handed to another
// process, and marks the handle dispatched.
func (r *Ref) Remote() *Ref {
	r.h.markDispatched()
	return &Ref{h: r.h, holder: HolderWorker, remote: true}
}

// Release drops r. Releasing the last local reference closes the
// connection. Calling Release more than once is a no-op.
func (r *Ref) Release() (err error) {
	if !r.released.CompareAndSwap(false, true) {
		return nil
	}
	h := r.h
	h.mu.Lock()
	wasFull := h.state == StateFullyReleased
	closeConn := false
	if !r.remote {
		h.local--
		closeConn = h.local == 0
	}
	if r.holder == HolderParent {
		h.parent = true
	} else {
		h.child = true
	}
	switch {
	case wasFull:
	case h.parent && (h.child || h.state == StateAccepted) && h.local == 0:
		h.state = StateFullyReleased
	case h.parent:
		h.state = StateParentReleased
	case h.child:
		h.state = StateChildReleased
	}
	full := !wasFull && h.state == StateFullyReleased
	fn := h.onRelease
	h.mu.Unlock()

	if closeConn {
		err = h.conn.Close()
	}
	if full && fn != nil {
		fn(h)
	}
	return
}
