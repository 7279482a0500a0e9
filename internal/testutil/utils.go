package testutil

import (
	"log"
	"os"
	"testing"
)

// TestLogger returns a logger writing to stdout so `go test -v` shows
// server output interleaved with the test log.
func TestLogger(t *testing.T) *log.Logger {
	logger := log.New(os.Stdout, "[pairup-test] ", log.LstdFlags)
	t.Cleanup(func() {
		logger.SetOutput(os.Stderr)
	})
	return logger
}
