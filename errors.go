package gspawn

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

type (
	// BindError reports a failure to reserve the listening address.
	// It is fatal at startup.
	BindError struct {
		Addr string
		Err  error
	}

	// AcceptError reports a transient failure of Endpoint.Accept.
	// The accept loop logs it and retries.
	AcceptError struct {
		Err error
	}

	// SpawnError reports a failure to create a worker for an accepted
	// connection. The connection is dropped and its handle released.
	SpawnError struct {
		Remote string
		Err    error
	}

	// IOError reports a read or write failure inside a worker.
	IOError struct {
		Op  string
		Err error
	}
)

var (
	ErrServerClosed = errors.New("gspawn: Server closed")
	ErrAbortHandler = errors.New("gspawn: abort Handler")
	// ErrLimited is the cause of a SpawnError raised by a Limiter.
	ErrLimited = errors.New("gspawn: worker limit reached")
	// ErrDescriptorExhaustion matches errors caused by EMFILE or ENFILE.
	ErrDescriptorExhaustion = errors.New("gspawn: too many open files")
)

func (e *BindError) Error() string {
	return fmt.Sprintf("gspawn: bind %s: %v", e.Addr, e.Err)
}

func (e *BindError) Unwrap() error { return e.Err }

func (e *AcceptError) Error() string {
	return fmt.Sprintf("gspawn: accept: %v", e.Err)
}

func (e *AcceptError) Unwrap() error { return e.Err }

func (e *AcceptError) Is(target error) bool {
	return target == ErrDescriptorExhaustion && isDescriptorExhaustion(e.Err)
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("gspawn: spawn worker for %s: %v", e.Remote, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

func (e *SpawnError) Is(target error) bool {
	return target == ErrDescriptorExhaustion && isDescriptorExhaustion(e.Err)
}

func (e *IOError) Error() string {
	return fmt.Sprintf("gspawn: %s: %v", e.Op, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

func isDescriptorExhaustion(err error) bool {
	return errors.Is(err, unix.EMFILE) || errors.Is(err, unix.ENFILE)
}
