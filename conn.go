package gspawn

import (
	"context"
	"errors"
	"net"
	"os"
	"sync/atomic"
)

type (
	// Conn is the connection a ConnHandler serves.
	Conn interface {
		net.Conn
		Flush() error
		SetCancelFunc(context.CancelFunc)
		Stats() (int64, int64)
		// File returns a duplicate of the underlying descriptor.
		File() (*os.File, error)
	}

	NewConn func(Conn) Conn

	baseConn struct {
		net.Conn
		CancelFunc context.CancelFunc
	}

	StatsConn struct {
		Conn
		InBytes  int64 // accessed atomically
		OutBytes int64 // accessed atomically
	}

	DebugConn struct {
		Conn
		Logger Logger
	}

	filer interface {
		File() (*os.File, error)
	}
)

var (
	ErrNoDescriptor = errors.New("gspawn: connection has no descriptor")
)

func NewBaseConn(conn net.Conn) Conn {
	return &baseConn{
		Conn: conn,
	}
}

func (bc *baseConn) Read(buf []byte) (n int, err error) {
	n, err = bc.Conn.Read(buf)
	if err != nil && bc.CancelFunc != nil {
		bc.CancelFunc()
	}
	return
}

func (bc *baseConn) Write(buf []byte) (n int, err error) {
	n, err = bc.Conn.Write(buf)
	if err != nil && bc.CancelFunc != nil {
		bc.CancelFunc()
	}
	return
}

func (bc *baseConn) Flush() error {
	return nil
}

func (bc *baseConn) SetCancelFunc(cancel context.CancelFunc) {
	bc.CancelFunc = cancel
}

func (bc *baseConn) Stats() (int64, int64) {
	return 0, 0
}

func (bc *baseConn) File() (*os.File, error) {
	if f, ok := bc.Conn.(filer); ok {
		return f.File()
	}
	return nil, ErrNoDescriptor
}

func NewStatsConn(conn Conn) Conn {
	return &StatsConn{Conn: conn}
}

func (s *StatsConn) Read(buf []byte) (n int, err error) {
	n, err = s.Conn.Read(buf)
	atomic.AddInt64(&s.InBytes, int64(n))
	return
}

func (s *StatsConn) Write(buf []byte) (n int, err error) {
	n, err = s.Conn.Write(buf)
	atomic.AddInt64(&s.OutBytes, int64(n))
	return
}

func (s *StatsConn) Stats() (int64, int64) {
	return atomic.LoadInt64(&s.InBytes), atomic.LoadInt64(&s.OutBytes)
}

// NewDebugConn wraps conn to trace every call through DefaultLogger.
func NewDebugConn(conn Conn) Conn {
	return &DebugConn{Conn: conn, Logger: DefaultLogger}
}

func (d *DebugConn) Read(buf []byte) (n int, err error) {
	d.Logger.Debugf("Read(%d) = ....", len(buf))
	n, err = d.Conn.Read(buf)
	d.Logger.Debugf("Read(%d) = %d, %v", len(buf), n, err)
	return
}

func (d *DebugConn) Write(buf []byte) (n int, err error) {
	d.Logger.Debugf("Write(%d) = ....", len(buf))
	n, err = d.Conn.Write(buf)
	d.Logger.Debugf("Write(%d) = %d, %v", len(buf), n, err)
	return
}

func (d *DebugConn) Close() (err error) {
	d.Logger.Debugf("Close() = ...")
	err = d.Conn.Close()
	d.Logger.Debugf("Close() = %v", err)
	return
}
