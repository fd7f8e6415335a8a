package supervise

import (
	"fmt"
	"io"
	"log/slog"
	"os/exec"

	"snag/internal/jobs"
	"snag/internal/logging"
)

// Handle is a live supervised process with its output streams.
type Handle struct {
	cmd    *exec.Cmd
	Stdout io.ReadCloser
	Stderr io.ReadCloser
}

// Pid returns the OS process id.
func (h *Handle) Pid() int {
	if h == nil || h.cmd == nil || h.cmd.Process == nil {
		return 0
	}
	return h.cmd.Process.Pid
}

// ExitStatus describes how a supervised process ended.
type ExitStatus struct {
	// Code is the exit code, or -1 when the process was signaled.
	Code int
	// Signaled is true when the process was terminated by a signal.
	Signaled bool
	// Canceled is true when the user requested a stop before exit.
	Canceled bool
	// WaitErr holds a wait failure that is not a process exit, such as an
	// I/O error collecting the process state. Code and Signaled are not
	// meaningful when it is set.
	WaitErr error
}

// Supervisor launches external processes and tracks them in the job registry.
type Supervisor struct {
	registry *jobs.Registry
	logger   *slog.Logger
}

// New constructs a Supervisor. A nil logger is replaced with a no-op logger.
func New(registry *jobs.Registry, logger *slog.Logger) *Supervisor {
	return &Supervisor{
		registry: registry,
		logger:   logging.WithComponent(logger, "supervise"),
	}
}

// Spawn starts the executable and registers the handle under jobID before
// returning, so a stop request arriving immediately after Spawn can find it.
// Spawn failures surface immediately; everything after Start is reported via
// Wait.
func (s *Supervisor) Spawn(jobID, executable string, args []string) (*Handle, error) {
	cmd := exec.Command(executable, args...) //nolint:gosec
	configureProcAttr(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", executable, err)
	}

	handle := &Handle{cmd: cmd, Stdout: stdout, Stderr: stderr}
	s.registry.Register(jobID, handle)
	s.logger.Debug("process started",
		logging.String(logging.FieldJobID, jobID),
		logging.String("executable", executable),
		logging.Int("pid", handle.Pid()))
	return handle, nil
}

// Wait blocks until the process exits, settles registry bookkeeping for the
// job, and reports how it ended. Callers must have drained (or be draining)
// the handle's output pipes before Wait returns.
func (s *Supervisor) Wait(jobID string, h *Handle) ExitStatus {
	err := h.cmd.Wait()

	status := ExitStatus{Code: 0}
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			status.Code = exitErr.ProcessState.ExitCode()
			status.Signaled = status.Code == -1
		} else {
			status.Code = -1
			status.WaitErr = err
			s.logger.Warn("wait failed",
				logging.String(logging.FieldJobID, jobID),
				logging.Error(err))
		}
	}

	status.Canceled = s.registry.Settle(jobID)
	s.logger.Debug("process exited",
		logging.String(logging.FieldJobID, jobID),
		logging.Int("code", status.Code),
		logging.Bool("canceled", status.Canceled))
	return status
}

// Stop terminates the process tree behind jobID. It returns false when no
// live job matches, which callers treat as "already finished", not an error.
// The cancel mark is set before signaling so the exit handler classifies the
// termination as user-initiated even if the process exits cleanly in the
// race window.
func (s *Supervisor) Stop(jobID string) bool {
	handle, ok := s.registry.Get(jobID)
	if !ok {
		return false
	}

	s.registry.MarkCanceled(jobID)

	if err := terminateTree(handle.Pid()); err != nil {
		// The process may have exited between Get and the signal.
		s.logger.Warn("terminate failed, process may have already exited",
			logging.String(logging.FieldJobID, jobID),
			logging.Int("pid", handle.Pid()),
			logging.Error(err))
	} else {
		s.logger.Info("termination signal issued",
			logging.String(logging.FieldJobID, jobID),
			logging.Int("pid", handle.Pid()))
	}
	return true
}
