package gspawn

import (
	"github.com/sirupsen/logrus"
)

type (
	// Logger is the interface that wraps logging operations.
	// Arguments are handled in the manner of fmt.Printf.
	// *logrus.Logger and *logrus.Entry satisfy it.
	Logger interface {
		// Errorf logs error information.
		Errorf(format string, args ...interface{})
		// Infof logs lifecycle information.
		Infof(format string, args ...interface{})
		// Debugf logs per connection tracing.
		Debugf(format string, args ...interface{})
	}
)

var (
	// DefaultLogger is the default Logger.
	DefaultLogger Logger = logrus.StandardLogger()
)

// withFields attaches fields when l is backed by logrus.
func withFields(l Logger, fields logrus.Fields) Logger {
	switch v := l.(type) {
	case *logrus.Logger:
		return v.WithFields(fields)
	case *logrus.Entry:
		return v.WithFields(fields)
	}
	return l
}
