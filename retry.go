package gspawn

import (
	"time"
)

type (
	Retry interface {
		Backoff(uint64) time.Duration
	}

	ExponentialRetry struct {
		InitialDelay time.Duration
		MaxDelay     time.Duration
	}
)

var (
	// DefaultRetry backs off failed accepts the way net/http.Server does
	DefaultRetry Retry = ExponentialRetry{
		InitialDelay: 5 * time.Millisecond,
		MaxDelay:     1 * time.Second,
	}
)

// Backoff doubles InitialDelay per retry, capped at MaxDelay.
func (er ExponentialRetry) Backoff(retry uint64) time.Duration {
	if retry >= 32 {
		return er.MaxDelay
	}
	d := er.InitialDelay * (1 << retry)
	if d > er.MaxDelay {
		d = er.MaxDelay
	}
	return d
}
