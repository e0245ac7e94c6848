// Package tool wraps invocation of the external binaries (extractor,
// transcoder) as opaque capabilities: a command, a timeout, a working
// directory in, exit status and captured output out.
package tool

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// ErrTimeout marks an attempt killed by its own deadline, as opposed to a
// nonzero exit reported by the tool itself.
var ErrTimeout = errors.New("tool execution timed out")

type Command struct {
	Bin     string
	Args    []string
	Dir     string
	Timeout time.Duration
}

type Result struct {
	ExitCode int
	Output   string
}

// Runner executes a Command, optionally surfacing each output line through
// onLine as the tool produces it. A non-nil *Result is returned whenever
// the process ran to an exit status, even a failing one.
type Runner interface {
	Run(ctx context.Context, cmd Command, onLine func(line []byte)) (*Result, error)
}

// ExecRunner runs commands through os/exec. Processes get their own group
// so the tool's children are killed along with it on timeout.
type ExecRunner struct{}

func NewExecRunner() *ExecRunner { return &ExecRunner{} }

func (e *ExecRunner) Run(ctx context.Context, c Command, onLine func([]byte)) (*Result, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, c.Bin, c.Args...)
	cmd.Dir = c.Dir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		// negative pid targets the whole process group
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	var (
		buf bytes.Buffer
		mu  sync.Mutex
		wg  sync.WaitGroup
	)

	sink := func(line []byte) {
		mu.Lock()
		buf.Write(line)
		buf.WriteByte('\n')
		mu.Unlock()

		if onLine != nil {
			onLine(line)
		}
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		scanOutput(stdout, sink)
	}()
	go func() {
		defer wg.Done()
		scanOutput(stderr, sink)
	}()

	wg.Wait()
	err = cmd.Wait()

	res := &Result{
		ExitCode: cmd.ProcessState.ExitCode(),
		Output:   buf.String(),
	}

	if ctx.Err() == context.DeadlineExceeded {
		slog.Warn("tool run timed out",
			slog.String("bin", c.Bin),
			slog.Duration("timeout", c.Timeout),
		)
		return res, ErrTimeout
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		// nonzero exit is reported through ExitCode, not the error
		return res, nil
	}

	return res, err
}
