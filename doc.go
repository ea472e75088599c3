/*
Package gspawn is a one-worker-per-connection TCP server that answers every
connection with a fixed HTTP/1.1 response. It exists to get the lifecycle of
shared descriptors and workers right, and to reproduce what goes wrong when
it is not.

# Components

  - Endpoint: the listening socket, bound with SO_REUSEADDR and an explicit
    backlog.
  - Handle / Ref: an accepted connection and the references each context
    holds. The connection closes once the last local reference is released.
  - GoroutineDispatcher: runs a worker goroutine owning exactly one Ref.
  - ProcessDispatcher: re-executes the binary with the connection on
    descriptor 3.
  - HelloHandler: drains one request, writes ResponsePayload, optionally
    sleeps.
  - Supervisor: reclaims exited workers asynchronously, by periodic sweep,
    or never.
  - Discipline: Correct releases every unused duplicate; Defective keeps
    them.
  - HandleTracker, Limiter, Retry, Statistics, Logger: pluggable components.

Binaries using ProcessDispatcher must start with

	if gspawn.IsWorkerProcess() {
		os.Exit(gspawn.RunWorker())
	}

Unix only.
*/
package gspawn
