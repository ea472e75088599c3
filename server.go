package gspawn

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"
)

type (
	Server struct {
		Addr    string
		Backlog int

		// ConnHandler serves connections when Dispatcher is nil.
		ConnHandler ConnHandler
		Dispatcher  Dispatcher
		Discipline  Discipline

		// Configurable components
		NewConn       NewConn
		HandleTracker HandleTracker
		Supervisor    *Supervisor
		Logger        Logger
		Retry         Retry
		Limiters      []Limiter
		Statistics    Statistics

		endpoint *Endpoint

		mu       sync.Mutex
		doneChan chan struct{}
		retained []*Ref
	}

	listenerInheritor interface {
		InheritListener(*Endpoint)
	}
)

func (s *Server) getDoneChan() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getDoneChanLocked()
}

func (s *Server) getDoneChanLocked() chan struct{} {
	if s.doneChan == nil {
		s.doneChan = make(chan struct{})
	}
	return s.doneChan
}

func (s *Server) closeDoneChanLocked() {
	ch := s.getDoneChanLocked()
	select {
	case <-ch:
		// Already closed. Don't close again.
	default:
		// Safe to close here. We're the only closer, guarded
		// by s.mu.
		close(ch)
	}
}

// releaseRetained drops the references kept under Discipline.RetainConns.
func (s *Server) releaseRetained() {
	s.mu.Lock()
	retained := s.retained
	s.retained = nil
	s.mu.Unlock()
	for _, ref := range retained {
		ref.Release()
	}
}

func (s *Server) closeEndpoint() (err error) {
	s.mu.Lock()
	s.closeDoneChanLocked()
	e := s.endpoint
	s.mu.Unlock()
	if e != nil {
		err = e.Close()
	}
	return
}

// Close stops accepting, drops retained references, force closes every
// live connection and stops sweeping. Workers are not waited for.
func (s *Server) Close() (err error) {
	err = s.closeEndpoint()
	s.releaseRetained()
	if s.HandleTracker != nil {
		s.HandleTracker.Close()
	}
	if s.Supervisor != nil {
		s.Supervisor.Close()
	}
	return
}

// Shutdown stops accepting, drops retained references and waits until
// every worker is reclaimed and every handle fully released.
func (s *Server) Shutdown(ctx context.Context) (err error) {
	err = s.closeEndpoint()
	s.releaseRetained()
	if s.Supervisor != nil {
		if e := s.Supervisor.Shutdown(ctx); e != nil {
			return e
		}
	}
	if s.HandleTracker != nil {
		if e := s.HandleTracker.Shutdown(ctx); e != nil {
			return e
		}
	}
	return
}

func (s *Server) ListenAndServe() error {
	addr := s.Addr
	if addr == "" {
		addr = DefaultAddr
	}
	e, err := Listen(addr, s.Backlog)
	if err != nil {
		return err
	}
	return s.Serve(e)
}

func ListenAndServe(addr string, handler ConnHandler) error {
	server := &Server{Addr: addr, ConnHandler: handler}
	return server.ListenAndServe()
}

// ListenerAddr returns the address of the endpoint being served, or nil.
func (s *Server) ListenerAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.endpoint == nil {
		return nil
	}
	return s.endpoint.Addr()
}

// Retained returns the number of parent references kept under
// Discipline.RetainConns.
func (s *Server) Retained() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.retained)
}

// Serve accepts connections on e and dispatches each to its own worker
// until the server is closed.
func (s *Server) Serve(e *Endpoint) error {
	var retry uint64
	defer e.Close()

	if s.Dispatcher == nil && s.ConnHandler == nil {
		panic("gspawn: nil handler")
	}

	// set reasonable default to each component
	if s.Logger == nil {
		s.Logger = DefaultLogger
	}
	if s.HandleTracker == nil {
		s.HandleTracker = NewMapHandleTracker()
	}
	if s.Retry == nil {
		s.Retry = DefaultRetry
	}
	if s.Statistics == nil {
		s.Statistics = &TrafficStatistics{}
	}
	if s.Supervisor == nil {
		s.Supervisor = &Supervisor{}
	}
	if s.Supervisor.Logger == nil {
		s.Supervisor.Logger = s.Logger
	}
	if s.Supervisor.Limiters == nil {
		s.Supervisor.Limiters = s.Limiters
	}
	if s.Supervisor.Statistics == nil {
		s.Supervisor.Statistics = s.Statistics
	}
	if s.Dispatcher == nil {
		s.Dispatcher = &GoroutineDispatcher{
			Handler: s.ConnHandler,
			Logger:  s.Logger,
			Done:    s.Statistics.AddConnStats,
		}
	}
	if s.Discipline.InheritListener {
		if li, ok := s.Dispatcher.(listenerInheritor); ok {
			li.InheritListener(e)
		}
	}

	s.mu.Lock()
	s.endpoint = e
	s.mu.Unlock()

	s.Logger.Infof("gspawn: serving on %v (backlog %d, %s discipline, reap %s, parent pid %d)",
		e.Addr(), e.Backlog(), s.Discipline, s.Supervisor.Policy, os.Getpid())

	base := context.Background()
	for {
		rw, err := e.Accept()
		if err != nil {
			select {
			case <-s.getDoneChan():
				return ErrServerClosed
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			s.Statistics.AddEvent(EventAcceptFailed)
			delay := s.Retry.Backoff(retry)
			s.Logger.Errorf("%v; retrying in %v", err, delay)
			time.Sleep(delay)
			retry += 1
			continue
		}
		retry = 0
		s.Statistics.AddEvent(EventAccepted)
		var conn Conn = NewBaseConn(rw)
		if s.NewConn != nil {
			conn = s.NewConn(conn)
		}
		s.dispatch(base, conn)
	}
}

// dispatch hands conn to a new worker. Whatever happens, the parent's
// reference is released before returning unless the discipline retains it.
func (s *Server) dispatch(ctx context.Context, conn Conn) {
	h, ref := NewHandle(conn)
	s.HandleTracker.AddHandle(h)
	h.OnRelease(s.HandleTracker.DelHandle)

	for i, limiter := range s.Limiters {
		if !limiter.OnSpawn(h) {
			s.unwindLimiters(i)
			s.spawnFailed(ref, ErrLimited)
			return
		}
	}
	w, err := s.Dispatcher.Spawn(ctx, ref)
	if err != nil {
		s.unwindLimiters(len(s.Limiters))
		s.spawnFailed(ref, err)
		return
	}
	s.Statistics.AddEvent(EventSpawned)
	s.Supervisor.Track(w)

	if s.Discipline.RetainConns {
		s.mu.Lock()
		s.retained = append(s.retained, ref)
		n := len(s.retained)
		s.mu.Unlock()
		s.Logger.Infof("gspawn: retaining %d connections", n)
		return
	}
	ref.Release()
}

func (s *Server) unwindLimiters(n int) {
	for _, limiter := range s.Limiters[:n] {
		limiter.OnReclaim(nil)
	}
}

func (s *Server) spawnFailed(ref *Ref, err error) {
	se := &SpawnError{Remote: fmt.Sprint(ref.Handle().Conn().RemoteAddr()), Err: err}
	s.Statistics.AddEvent(EventSpawnFailed)
	s.Logger.Errorf("%v; connection dropped", se)
	ref.Release()
}
