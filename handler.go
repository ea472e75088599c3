package gspawn

import (
	"context"
	"io"
	"time"
)

type (
	// ConnHandler serves exactly one request on conn. It must not close
	// conn; the worker releases its reference once the handler returns.
	ConnHandler func(context.Context, Conn) error

	// HelloHandler drains one request and answers with a fixed response.
	HelloHandler struct {
		// ReadSize bounds the single read draining the request.
		// Zero means DefaultReadSize.
		ReadSize int
		// Delay holds the connection open after the response is written.
		Delay time.Duration
		// Response is written verbatim. Nil means ResponsePayload.
		Response []byte
		// Logger receives the drained request at debug level.
		Logger Logger
	}
)

const (
	DefaultReadSize = 1024
)

var (
	// ResponsePayload is the minimal HTTP/1.1 response every worker sends.
	ResponsePayload = []byte("HTTP/1.1 200 OK\r\n\r\nHello, World!\r\n")
)

// Handler returns the ConnHandler serving hh.
func (hh HelloHandler) Handler() ConnHandler {
	return hh.Serve
}

// Serve reads up to ReadSize bytes, writes the response in full, flushes
// and sleeps for Delay. Read and write failures are returned as *IOError.
// The delay is not interrupted by ctx.
func (hh HelloHandler) Serve(ctx context.Context, conn Conn) error {
	size := hh.ReadSize
	if size <= 0 {
		size = DefaultReadSize
	}
	buf := make([]byte, size)
	n, err := conn.Read(buf)
	if err != nil && err != io.EOF {
		return &IOError{Op: "read", Err: err}
	}
	if hh.Logger != nil {
		hh.Logger.Debugf("gspawn: request from %v: %q", conn.RemoteAddr(), buf[:n])
	}
	resp := hh.Response
	if resp == nil {
		resp = ResponsePayload
	}
	if err = WriteFull(conn, resp); err != nil {
		return &IOError{Op: "write", Err: err}
	}
	if err = conn.Flush(); err != nil {
		return &IOError{Op: "flush", Err: err}
	}
	if hh.Delay > 0 {
		time.Sleep(hh.Delay)
	}
	return nil
}

// WriteFull writes buf to w, retrying short writes until every byte is
// written or an error occurs.
func WriteFull(w io.Writer, buf []byte) error {
	for len(buf) > 0 {
		n, err := w.Write(buf)
		buf = buf[n:]
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
	}
	return nil
}
