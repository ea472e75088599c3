package gspawn

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

type (
	// ProcessDispatcher re-executes a binary as a worker process per
	// connection. The child inherits the connection as descriptor 3 and,
	// only when told to inherit the listener, the listening socket as
	// descriptor 4. Every other descriptor is close-on-exec.
	// The binary must call RunWorker when IsWorkerProcess reports true.
	ProcessDispatcher struct {
		// Path of the worker binary. Empty means os.Executable().
		Path string
		// Args for the worker, including argv[0]. Empty means {Path}.
		Args []string
		// Env is appended to the parent's environment.
		Env []string
		// Delay and ReadSize configure the HelloHandler of the worker.
		Delay    time.Duration
		ReadSize int

		listener *Endpoint
	}

	// ProcessWorker is a worker process started by ProcessDispatcher.
	ProcessWorker struct {
		proc  *os.Process
		ref   *Ref
		ppid  int
		state atomic.Int32

		mu  sync.Mutex
		err error
	}
)

const (
	// WorkerEnv marks a process started by ProcessDispatcher.
	WorkerEnv = "GSPAWN_WORKER"

	workerDelayEnv    = "GSPAWN_WORKER_DELAY"
	workerReadSizeEnv = "GSPAWN_WORKER_READ_SIZE"
	workerListenerEnv = "GSPAWN_WORKER_LISTENER"

	workerConnFD     = 3
	workerListenerFD = 4
)

// InheritListener makes every subsequent worker inherit a duplicate of the
// listening socket. Workers never use it.
func (pd *ProcessDispatcher) InheritListener(e *Endpoint) {
	pd.listener = e
}

func (pd *ProcessDispatcher) Spawn(ctx context.Context, parent *Ref) (Worker, error) {
	path := pd.Path
	if path == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, errors.Wrap(err, "executable")
		}
		path = exe
	}
	argv := pd.Args
	if len(argv) == 0 {
		argv = []string{path}
	}
	env := append(os.Environ(),
		WorkerEnv+"=1",
		workerDelayEnv+"="+pd.Delay.String(),
		workerReadSizeEnv+"="+strconv.Itoa(pd.ReadSize),
	)
	env = append(env, pd.Env...)

	cf, err := parent.Handle().Conn().File()
	if err != nil {
		return nil, errors.Wrap(err, "dup connection")
	}
	// The child owns its own copies after StartProcess; the parent's
	// duplicates are released on every path.
	defer cf.Close()
	cfd, err := rawFD(cf)
	if err != nil {
		return nil, errors.Wrap(err, "dup connection")
	}
	fds := []uintptr{uintptr(syscall.Stdin), uintptr(syscall.Stdout), uintptr(syscall.Stderr), cfd}
	if pd.listener != nil {
		lf, err := pd.listener.File()
		if err != nil {
			return nil, errors.Wrap(err, "dup listener")
		}
		defer lf.Close()
		lfd, err := rawFD(lf)
		if err != nil {
			return nil, errors.Wrap(err, "dup listener")
		}
		fds = append(fds, lfd)
		env = append(env, workerListenerEnv+"=1")
	}

	ref := parent.Remote()
	pid, _, err := syscall.StartProcess(path, argv, &syscall.ProcAttr{Env: env, Files: fds})
	if err != nil {
		ref.Release()
		return nil, &os.PathError{Op: "fork/exec", Path: path, Err: err}
	}
	// never fails on Unix
	proc, _ := os.FindProcess(pid)
	w := &ProcessWorker{proc: proc, ref: ref, ppid: os.Getpid()}
	w.state.Store(int32(WorkerRunning))
	if wait, err := exitWatcher(pid); err == nil {
		go func() {
			if wait() == nil {
				w.exited()
			}
		}()
	}
	return w, nil
}

// rawFD returns the descriptor of f without going through f.Fd, which
// would switch the open file description shared with the parent's socket
// to blocking mode.
func rawFD(f *os.File) (fd uintptr, err error) {
	rc, err := f.SyscallConn()
	if err != nil {
		return 0, err
	}
	if cerr := rc.Control(func(v uintptr) { fd = v }); cerr != nil {
		return 0, cerr
	}
	return fd, nil
}

func (w *ProcessWorker) ID() int       { return w.proc.Pid }
func (w *ProcessWorker) ParentID() int { return w.ppid }

// State reports WorkerExited once the process has exited but has not been
// reclaimed.
func (w *ProcessWorker) State() WorkerState {
	s := WorkerState(w.state.Load())
	if s == WorkerRunning && IsZombie(w.proc.Pid) {
		return WorkerExited
	}
	return s
}

// Wait blocks until the process exits and collects its status.
func (w *ProcessWorker) Wait() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.reclaimed() {
		return w.err
	}
	ps, err := w.proc.Wait()
	if err != nil {
		return err
	}
	w.finish(ps.ExitCode())
	return w.err
}

// TryReap collects the exit status with WNOHANG. It reports false while the
// process is running or another goroutine is blocked in Wait.
func (w *ProcessWorker) TryReap() (bool, error) {
	if !w.mu.TryLock() {
		return false, nil
	}
	defer w.mu.Unlock()
	if w.reclaimed() {
		return true, w.err
	}
	var ws unix.WaitStatus
	pid, err := unix.Wait4(w.proc.Pid, &ws, unix.WNOHANG, nil)
	if err != nil {
		return false, errors.Wrapf(err, "wait4 %d", w.proc.Pid)
	}
	if pid == 0 {
		return false, nil
	}
	w.proc.Release()
	w.finish(ws.ExitStatus())
	return true, w.err
}

// exited releases the worker's reference as soon as the process is gone,
// whether or not anyone reclaims it.
func (w *ProcessWorker) exited() {
	w.state.CompareAndSwap(int32(WorkerRunning), int32(WorkerExited))
	w.ref.Release()
}

func (w *ProcessWorker) reclaimed() bool {
	return WorkerState(w.state.Load()) == WorkerReclaimed
}

func (w *ProcessWorker) finish(code int) {
	if code != 0 {
		w.err = fmt.Errorf("gspawn: worker %d exited with status %d", w.proc.Pid, code)
	}
	w.state.Store(int32(WorkerReclaimed))
	w.ref.Release()
}
