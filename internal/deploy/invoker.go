// Package deploy launches the external deployment procedure as a
// detached child process.
//
// The invoker is fire-and-forget: the caller learns whether the process
// could be spawned, but its outcome is reported through logs and
// metrics only, never through the HTTP response that triggered it. A
// single-flight slot prevents two deploy processes from racing the
// deployment target.
package deploy

import (
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"pushgate/internal/metrics"
	"pushgate/pkg/cmdutil"
)

// Status is the lifecycle state of one deploy attempt.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSuccess   Status = "success"
	StatusFailure   Status = "failure"
	StatusExecError Status = "exec_error"
)

// Invocation is the ephemeral record of one triggered deploy attempt.
// It lives only as long as the spawned process and its logging
// continuation; nothing about it is persisted.
type Invocation struct {
	Event     string
	Delivery  string
	StartedAt time.Time

	done     chan struct{}
	status   Status
	exitCode int
}

// Wait blocks until the attempt finishes and returns its final status.
func (inv *Invocation) Wait() Status {
	<-inv.done
	return inv.status
}

// Done is closed when the attempt has finished.
func (inv *Invocation) Done() <-chan struct{} {
	return inv.done
}

// ExitCode blocks until the attempt finishes and returns the process
// exit code, or -1 when the process never started.
func (inv *Invocation) ExitCode() int {
	<-inv.done
	return inv.exitCode
}

// Invoker spawns the configured deploy command. The command and its
// working directory are fixed at startup and never mutated afterwards.
type Invoker struct {
	Argv   []string
	Dir    string
	Logger *slog.Logger

	inFlight atomic.Bool
	wg       sync.WaitGroup
}

// NewInvoker creates an invoker for the given command line.
func NewInvoker(argv []string, dir string, logger *slog.Logger) *Invoker {
	return &Invoker{
		Argv:   argv,
		Dir:    dir,
		Logger: logger,
	}
}

// TryAcquire claims the single deploy slot without blocking. It returns
// false while another deploy process is running. Callers that acquire
// the slot must either Launch or Release it.
func (iv *Invoker) TryAcquire() bool {
	return iv.inFlight.CompareAndSwap(false, true)
}

// Release frees the deploy slot without launching. Used by callers that
// abort between TryAcquire and Launch.
func (iv *Invoker) Release() {
	iv.inFlight.Store(false)
}

// InFlight reports whether a deploy process is currently running.
func (iv *Invoker) InFlight() bool {
	return iv.inFlight.Load()
}

// Launch spawns the deploy command as an independent child process and
// returns immediately. The caller must hold the slot via TryAcquire;
// Launch releases it when the process finishes.
//
// The child inherits this process's stdout and stderr so its output is
// visible in the host logs in real time. Launch deliberately does not
// take a context: once spawned, the process outlives the originating
// request and runs to completion or failure with no cancellation.
//
// Two failure classes are distinguished: an exec error (the process
// could not be started at all) is logged synchronously before Launch
// returns; a non-zero exit is logged with its exit code when the
// process ends. Neither reaches the HTTP caller.
func (iv *Invoker) Launch(event, delivery string) *Invocation {
	inv := &Invocation{
		Event:     event,
		Delivery:  delivery,
		StartedAt: time.Now(),
		done:      make(chan struct{}),
		status:    StatusPending,
	}

	command := cmdutil.FormatCommand(iv.Argv)

	cmd := exec.Command(iv.Argv[0], iv.Argv[1:]...)
	cmd.Dir = iv.Dir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	metrics.DeployStarted()

	if err := cmd.Start(); err != nil {
		// Missing script, missing interpreter, permission problem:
		// the procedure never ran.
		iv.Logger.Error("deploy exec error",
			"command", command,
			"event", event,
			"delivery", delivery,
			"error", err)

		inv.status = StatusExecError
		inv.exitCode = -1
		metrics.DeployFinished(string(StatusExecError), time.Since(inv.StartedAt))
		iv.Release()
		close(inv.done)
		return inv
	}

	iv.Logger.Info("deploy started",
		"command", command,
		"pid", cmd.Process.Pid,
		"event", event,
		"delivery", delivery)

	iv.wg.Add(1)
	go func() {
		defer iv.wg.Done()
		defer iv.Release()

		err := cmd.Wait()
		duration := time.Since(inv.StartedAt)

		if err == nil {
			inv.status = StatusSuccess
			inv.exitCode = 0
			iv.Logger.Info("deploy succeeded",
				"event", event,
				"delivery", delivery,
				"duration_ms", duration.Milliseconds())
		} else if exitErr, ok := err.(*exec.ExitError); ok {
			inv.status = StatusFailure
			inv.exitCode = exitErr.ExitCode()
			iv.Logger.Error("deploy failed",
				"event", event,
				"delivery", delivery,
				"exit_code", inv.exitCode,
				"duration_ms", duration.Milliseconds())
		} else {
			inv.status = StatusExecError
			inv.exitCode = -1
			iv.Logger.Error("deploy wait error",
				"event", event,
				"delivery", delivery,
				"error", err)
		}

		metrics.DeployFinished(string(inv.status), duration)
		close(inv.done)
	}()

	return inv
}

// Wait blocks until all in-flight deploy processes have finished. Used
// for graceful shutdown and by tests.
func (iv *Invoker) Wait() {
	iv.wg.Wait()
}
