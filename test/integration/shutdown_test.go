package integration

import (
	"sync"
	"testing"
	"time"

	"github.com/Tyrowin/roomchat/internal/server"
)

// TestGracefulShutdown verifies that a hub shuts down cleanly when asked.
// These tests use standalone hubs so the shared hub keeps serving the other
// integration tests.
func TestGracefulShutdown(t *testing.T) {
	hub := server.NewHub()
	go hub.Run()

	time.Sleep(50 * time.Millisecond)

	if err := hub.Shutdown(5 * time.Second); err != nil {
		t.Errorf("Hub shutdown failed: %v", err)
	}
}

// TestShutdownTimeout verifies that shutdown completes promptly with no
// clients connected even under a short timeout.
func TestShutdownTimeout(t *testing.T) {
	hub := server.NewHub()
	go hub.Run()

	time.Sleep(50 * time.Millisecond)

	start := time.Now()
	err := hub.Shutdown(100 * time.Millisecond)
	elapsed := time.Since(start)

	if elapsed > 500*time.Millisecond {
		t.Errorf("Shutdown took too long: %v", elapsed)
	}
	if err != nil {
		t.Logf("Shutdown returned error (may be expected with short timeout): %v", err)
	}
}

// TestConcurrentShutdown verifies that multiple shutdown calls are safe.
func TestConcurrentShutdown(t *testing.T) {
	hub := server.NewHub()
	go hub.Run()

	time.Sleep(50 * time.Millisecond)

	var wg sync.WaitGroup
	errors := make(chan error, 3)

	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := hub.Shutdown(2 * time.Second); err != nil {
				errors <- err
			}
		}()
	}

	wg.Wait()
	close(errors)

	for err := range errors {
		t.Logf("Shutdown error: %v", err)
	}
}
