package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
)

// ChildSpec describes one process the supervisor runs.
type ChildSpec struct {
	Name string
	Path string
	Args []string
	Env  []string
}

// ExitError reports which child died and with what code so the supervisor
// process can exit the same way.
type ExitError struct {
	Name string
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("child %s exited with code %d", e.Name, e.Code)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// Supervisor runs the API server and the delivery worker as sibling child
// processes in one container. There are no restarts: the first child to die
// unexpectedly takes the whole process group down, and the orchestrator
// restarts the container.
type Supervisor struct {
	children []ChildSpec
	logger   *slog.Logger
}

func New(children []ChildSpec, logger *slog.Logger) *Supervisor {
	return &Supervisor{children: children, logger: logger}
}

type childExit struct {
	spec ChildSpec
	err  error
}

// Run starts every child, forwards SIGTERM/SIGINT to all of them and waits.
// On an unexpected child exit it signals the survivors, waits for them and
// returns an *ExitError carrying the dead child's code. A signal-initiated
// shutdown where every child exits cleanly returns nil.
func (s *Supervisor) Run(ctx context.Context) error {
	if len(s.children) == 0 {
		return errors.New("no children configured")
	}

	cmds := make([]*exec.Cmd, len(s.children))
	exits := make(chan childExit, len(s.children))

	for i, spec := range s.children {
		cmd := exec.Command(spec.Path, spec.Args...)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		cmd.Env = spec.Env
		if cmd.Env == nil {
			cmd.Env = os.Environ()
		}
		if err := cmd.Start(); err != nil {
			s.signalAll(cmds, syscall.SIGTERM)
			s.waitStarted(cmds, exits, i)
			return fmt.Errorf("start child %s: %w", spec.Name, err)
		}
		cmds[i] = cmd
		s.logger.Info("child started", "name", spec.Name, "pid", cmd.Process.Pid)

		go func(spec ChildSpec, cmd *exec.Cmd) {
			exits <- childExit{spec: spec, err: cmd.Wait()}
		}(spec, cmd)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	shuttingDown := false
	remaining := len(s.children)
	var firstErr error
	ctxDone := ctx.Done()

	for remaining > 0 {
		select {
		case sig := <-sigCh:
			s.logger.Info("forwarding signal to children", "signal", sig.String())
			shuttingDown = true
			s.signalAll(cmds, sig)

		case <-ctxDone:
			ctxDone = nil
			if !shuttingDown {
				shuttingDown = true
				s.signalAll(cmds, syscall.SIGTERM)
			}

		case exit := <-exits:
			remaining--
			code := exitCode(exit.err)
			s.logger.Info("child exited", "name", exit.spec.Name, "code", code)

			if !shuttingDown {
				// Fail fast: one dead sibling invalidates the pod.
				shuttingDown = true
				s.signalAll(cmds, syscall.SIGTERM)
				if firstErr == nil {
					firstErr = &ExitError{Name: exit.spec.Name, Code: nonZero(code), Err: exit.err}
				}
			} else if firstErr == nil && exit.err != nil {
				firstErr = &ExitError{Name: exit.spec.Name, Code: nonZero(code), Err: exit.err}
			}
		}
	}

	return firstErr
}

func (s *Supervisor) signalAll(cmds []*exec.Cmd, sig os.Signal) {
	for _, cmd := range cmds {
		if cmd != nil && cmd.Process != nil {
			_ = cmd.Process.Signal(sig)
		}
	}
}

// waitStarted drains exit notifications for the children that did start
// before a later sibling failed to.
func (s *Supervisor) waitStarted(cmds []*exec.Cmd, exits chan childExit, started int) {
	for i := 0; i < started; i++ {
		if cmds[i] != nil {
			<-exits
		}
	}
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return 1
}

func nonZero(code int) int {
	if code == 0 {
		return 1
	}
	return code
}
