package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/cat2neat/gspawn"
	"github.com/cat2neat/gspawn/internal/config"
)

func main() {
	// Worker processes re-enter here with the connection on fd 3
	if gspawn.IsWorkerProcess() {
		os.Exit(gspawn.RunWorker())
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	logger := logrus.StandardLogger()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if cfg.Debug {
		logger.SetLevel(logrus.DebugLevel)
	}

	if cfg.MaxOpenFiles > 0 {
		if err := gspawn.SetDescriptorLimit(uint64(cfg.MaxOpenFiles)); err != nil {
			logger.WithError(err).Fatal("Failed to limit open files")
		}
	}
	if cfg.MaxProcs > 0 {
		if err := gspawn.SetProcessLimit(uint64(cfg.MaxProcs)); err != nil {
			logger.WithError(err).Fatal("Failed to limit processes")
		}
	}

	srv := &gspawn.Server{
		Addr:       cfg.Addr(),
		Backlog:    cfg.Backlog,
		Logger:     logger,
		Supervisor: &gspawn.Supervisor{Interval: cfg.SweepInterval},
	}
	if cfg.Debug {
		srv.NewConn = gspawn.NewDebugConn
	}

	switch cfg.Mode {
	case config.ModeGoroutine:
		srv.ConnHandler = gspawn.HelloHandler{Delay: cfg.Delay, Logger: logger}.Handler()
	default:
		srv.Dispatcher = &gspawn.ProcessDispatcher{Delay: cfg.Delay}
	}
	if cfg.Discipline == "defective" {
		srv.Discipline = gspawn.Defective
	}
	switch cfg.Reap {
	case "sweep":
		srv.Supervisor.Policy = gspawn.ReapSweep
	case "never":
		srv.Supervisor.Policy = gspawn.ReapNever
	}
	if cfg.MaxWorkers > 0 {
		srv.Limiters = []gspawn.Limiter{&gspawn.MaxWorkerLimiter{Max: uint32(cfg.MaxWorkers)}}
	}

	logger.WithFields(logrus.Fields{
		"addr":       cfg.Addr(),
		"mode":       cfg.Mode,
		"discipline": cfg.Discipline,
		"reap":       cfg.Reap,
		"delay":      cfg.Delay,
	}).Info("Starting gspawnd")

	// Runs until killed
	if err := srv.ListenAndServe(); err != nil {
		logger.WithError(err).Fatal("Server error")
	}
}
