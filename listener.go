package gspawn

import (
	"net"
	"os"
	"strconv"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

const (
	// DefaultBacklog is the pending connection queue depth used when none is given.
	DefaultBacklog = 5
	// DefaultAddr is the address ListenAndServe binds when Server.Addr is empty.
	DefaultAddr = ":8888"
)

// Endpoint owns the bound, listening socket of a Server.
type Endpoint struct {
	ln      *net.TCPListener
	backlog int
}

// Listen creates a TCP socket with SO_REUSEADDR, binds it to addr and
// listens with the given backlog. An empty host binds all interfaces.
// Every failure is reported as *BindError.
func Listen(addr string, backlog int) (*Endpoint, error) {
	if backlog <= 0 {
		backlog = DefaultBacklog
	}
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, &BindError{Addr: addr, Err: err}
	}
	sa, family := sockaddr(tcpAddr)
	fd, err := unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return nil, &BindError{Addr: addr, Err: errors.Wrap(err, "socket")}
	}
	if err = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, &BindError{Addr: addr, Err: errors.Wrap(err, "setsockopt SO_REUSEADDR")}
	}
	if err = unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, &BindError{Addr: addr, Err: errors.Wrap(err, "bind")}
	}
	if err = unix.Listen(fd, backlog); err != nil {
		unix.Close(fd)
		return nil, &BindError{Addr: addr, Err: errors.Wrap(err, "listen")}
	}
	// net.FileListener dups the descriptor; the original is ours to close.
	f := os.NewFile(uintptr(fd), "gspawn-listener")
	ln, err := net.FileListener(f)
	f.Close()
	if err != nil {
		return nil, &BindError{Addr: addr, Err: errors.Wrap(err, "file listener")}
	}
	return &Endpoint{ln: ln.(*net.TCPListener), backlog: backlog}, nil
}

func sockaddr(addr *net.TCPAddr) (unix.Sockaddr, int) {
	if ip4 := addr.IP.To4(); ip4 != nil || addr.IP == nil {
		sa := &unix.SockaddrInet4{Port: addr.Port}
		if ip4 != nil {
			copy(sa.Addr[:], ip4)
		}
		return sa, unix.AF_INET
	}
	sa := &unix.SockaddrInet6{Port: addr.Port}
	copy(sa.Addr[:], addr.IP.To16())
	if addr.Zone != "" {
		if ifi, err := net.InterfaceByName(addr.Zone); err == nil {
			sa.ZoneId = uint32(ifi.Index)
		} else if n, err := strconv.Atoi(addr.Zone); err == nil {
			sa.ZoneId = uint32(n)
		}
	}
	return sa, unix.AF_INET6
}

// Accept blocks until a client connects. Failures other than a closed
// endpoint are wrapped in *AcceptError.
func (e *Endpoint) Accept() (net.Conn, error) {
	c, err := e.ln.AcceptTCP()
	if err != nil {
		if errors.Is(err, net.ErrClosed) {
			return nil, err
		}
		return nil, &AcceptError{Err: err}
	}
	return c, nil
}

// Addr returns the bound address, with the real port when bound to port 0.
func (e *Endpoint) Addr() net.Addr {
	return e.ln.Addr()
}

// Backlog returns the queue depth passed to listen(2).
func (e *Endpoint) Backlog() int {
	return e.backlog
}

// File returns a duplicate of the listening descriptor.
// The caller owns it and must close it.
func (e *Endpoint) File() (*os.File, error) {
	return e.ln.File()
}

// Close releases the listening socket.
func (e *Endpoint) Close() error {
	return e.ln.Close()
}
