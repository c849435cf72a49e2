package deploy

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestInvoker(argv []string, dir string) *Invoker {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	return NewInvoker(argv, dir, logger)
}

func TestInvoker_LaunchSuccess(t *testing.T) {
	iv := newTestInvoker([]string{"/bin/sh", "-c", "exit 0"}, "")

	if !iv.TryAcquire() {
		t.Fatal("expected to acquire deploy slot")
	}
	inv := iv.Launch("push", "delivery-1")

	if got := inv.Wait(); got != StatusSuccess {
		t.Errorf("expected status %q, got %q", StatusSuccess, got)
	}
	if code := inv.ExitCode(); code != 0 {
		t.Errorf("expected exit code 0, got %d", code)
	}

	iv.Wait()
	if iv.InFlight() {
		t.Error("expected slot released after process finished")
	}
}

func TestInvoker_LaunchFailure(t *testing.T) {
	iv := newTestInvoker([]string{"/bin/sh", "-c", "exit 3"}, "")

	if !iv.TryAcquire() {
		t.Fatal("expected to acquire deploy slot")
	}
	inv := iv.Launch("push", "delivery-2")

	if got := inv.Wait(); got != StatusFailure {
		t.Errorf("expected status %q, got %q", StatusFailure, got)
	}
	if code := inv.ExitCode(); code != 3 {
		t.Errorf("expected exit code 3, got %d", code)
	}
	iv.Wait()
}

func TestInvoker_LaunchExecError(t *testing.T) {
	iv := newTestInvoker([]string{"/nonexistent/deploy.sh"}, "")

	if !iv.TryAcquire() {
		t.Fatal("expected to acquire deploy slot")
	}
	inv := iv.Launch("push", "delivery-3")

	// An exec error is resolved synchronously: Launch must return a
	// finished invocation and free the slot itself.
	if got := inv.Wait(); got != StatusExecError {
		t.Errorf("expected status %q, got %q", StatusExecError, got)
	}
	if code := inv.ExitCode(); code != -1 {
		t.Errorf("expected exit code -1, got %d", code)
	}
	if iv.InFlight() {
		t.Error("expected slot released after exec error")
	}
}

func TestInvoker_FireAndForget(t *testing.T) {
	dir := t.TempDir()
	gate := filepath.Join(dir, "gate")
	script := fmt.Sprintf("while [ ! -f %q ]; do sleep 0.01; done", gate)
	iv := newTestInvoker([]string{"/bin/sh", "-c", script}, "")

	if !iv.TryAcquire() {
		t.Fatal("expected to acquire deploy slot")
	}
	inv := iv.Launch("push", "delivery-4")

	// Launch returns while the child is still running.
	select {
	case <-inv.Done():
		t.Fatal("invocation finished before gate file was created")
	default:
	}
	if !iv.InFlight() {
		t.Error("expected deploy in flight while child is running")
	}

	if err := os.WriteFile(gate, []byte("go"), 0o644); err != nil {
		t.Fatalf("failed to write gate file: %v", err)
	}
	if got := inv.Wait(); got != StatusSuccess {
		t.Errorf("expected status %q, got %q", StatusSuccess, got)
	}
	iv.Wait()
}

func TestInvoker_SingleFlight(t *testing.T) {
	dir := t.TempDir()
	gate := filepath.Join(dir, "gate")
	script := fmt.Sprintf("while [ ! -f %q ]; do sleep 0.01; done", gate)
	iv := newTestInvoker([]string{"/bin/sh", "-c", script}, "")

	if !iv.TryAcquire() {
		t.Fatal("expected first acquire to succeed")
	}
	inv := iv.Launch("push", "delivery-5")

	if iv.TryAcquire() {
		t.Error("expected second acquire to fail while deploy is running")
	}

	if err := os.WriteFile(gate, []byte("go"), 0o644); err != nil {
		t.Fatalf("failed to write gate file: %v", err)
	}
	inv.Wait()
	iv.Wait()

	if !iv.TryAcquire() {
		t.Error("expected acquire to succeed after previous deploy finished")
	}
	iv.Release()
}

func TestInvoker_TryAcquireRelease(t *testing.T) {
	iv := newTestInvoker([]string{"/bin/sh", "-c", "exit 0"}, "")

	if !iv.TryAcquire() {
		t.Fatal("expected to acquire free slot")
	}
	if iv.TryAcquire() {
		t.Error("expected acquire to fail while slot is held")
	}
	iv.Release()
	if !iv.TryAcquire() {
		t.Error("expected acquire to succeed after release")
	}
	iv.Release()
}

func TestInvoker_WorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	iv := newTestInvoker([]string{"/bin/sh", "-c", "pwd > marker.txt"}, dir)

	if !iv.TryAcquire() {
		t.Fatal("expected to acquire deploy slot")
	}
	inv := iv.Launch("push", "delivery-6")

	if got := inv.Wait(); got != StatusSuccess {
		t.Fatalf("expected status %q, got %q", StatusSuccess, got)
	}
	iv.Wait()

	marker := filepath.Join(dir, "marker.txt")
	if _, err := os.Stat(marker); err != nil {
		t.Errorf("expected marker file in working directory: %v", err)
	}
}

func TestInvoker_WaitDrainsAll(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, "done")
	script := fmt.Sprintf("sleep 0.05; echo ok > %q", marker)
	iv := newTestInvoker([]string{"/bin/sh", "-c", script}, "")

	if !iv.TryAcquire() {
		t.Fatal("expected to acquire deploy slot")
	}
	start := time.Now()
	iv.Launch("push", "delivery-7")
	iv.Wait()

	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("Wait returned after %v, before the child could finish", elapsed)
	}
	if _, err := os.Stat(marker); err != nil {
		t.Errorf("expected marker written before Wait returned: %v", err)
	}
}
