package tests

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"
)

// GetProjectRootPath walks up from the working directory to the directory holding go.mod
func GetProjectRootPath() string {
	wd, err := os.Getwd()
	if err != nil {
		panic(err)
	}
	p := wd
	for iterations := 0; iterations < 10; iterations++ {
		if _, err := os.Stat(filepath.Join(p, "go.mod")); err == nil {
			return p
		}
		p = filepath.Dir(p)
	}
	panic("Could not find project root path")
}

// GetFreePort asks the kernel for an unused TCP port
func GetFreePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("failed to listen: %w", err)
	}
	defer func() { _ = l.Close() }()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// WaitFor polls check until it succeeds or ctx expires
func WaitFor(ctx context.Context, interval time.Duration, check func(context.Context) error) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastErr error
	for {
		if lastErr = check(ctx); lastErr == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("timed out waiting: %w", lastErr)
		case <-ticker.C:
		}
	}
}
