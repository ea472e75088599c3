//go:build !linux

package gspawn

import "errors"

var errNoProcfs = errors.New("gspawn: procfs not supported on this platform")

func OpenDescriptors() (int, error) { return 0, errNoProcfs }

func IsZombie(pid int) bool { return false }

func ZombieChildren(ppid int) (int, error) { return 0, errNoProcfs }

func exitWatcher(pid int) (func() error, error) { return nil, errNoProcfs }
