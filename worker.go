package gspawn

import (
	"context"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
)

var inheritedListener *os.File

// IsWorkerProcess reports whether the current process was started by
// ProcessDispatcher.
func IsWorkerProcess() bool {
	return os.Getenv(WorkerEnv) == "1"
}

// RunWorker serves the connection inherited on descriptor 3 with a
// HelloHandler configured by the dispatcher, releases it and returns the
// exit code for os.Exit. It never returns to an accept loop.
func RunWorker() int {
	logger := withFields(DefaultLogger, logrus.Fields{
		"pid":  os.Getpid(),
		"ppid": os.Getppid(),
	})
	logger.Infof("gspawn: worker started")

	if os.Getenv(workerListenerEnv) == "1" {
		// Held open, unused, until exit.
		inheritedListener = os.NewFile(workerListenerFD, "listener")
	}

	f := os.NewFile(workerConnFD, "conn")
	nc, err := net.FileConn(f)
	f.Close()
	if err != nil {
		logger.Errorf("gspawn: inherit connection: %v", err)
		return 1
	}
	_, ref := NewHandle(NewBaseConn(nc))
	defer ref.Release()

	hh := HelloHandler{Logger: logger}
	if d, err := time.ParseDuration(os.Getenv(workerDelayEnv)); err == nil {
		hh.Delay = d
	}
	if n, err := strconv.Atoi(os.Getenv(workerReadSizeEnv)); err == nil {
		hh.ReadSize = n
	}
	if err = hh.Serve(context.Background(), ref.Handle().Conn()); err != nil {
		logger.Errorf("gspawn: serving %v: %v", nc.RemoteAddr(), err)
	}
	return 0
}
