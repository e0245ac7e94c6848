// Package retry drives an external-tool operation across the spoofed
// client strategy table, retrying failures that look identity-specific and
// stopping dead on anything inherent to the request.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/clipforge/clipforge/server/internal/strategy"
	"github.com/clipforge/clipforge/server/internal/tool"
)

// ErrExhausted is returned when every strategy yielded a retriable
// failure. Callers treat it as the cue to try the mirror fallback.
var ErrExhausted = errors.New("all client strategies exhausted")

// TerminalError carries the classified, human-readable remote failure.
type TerminalError struct {
	Strategy string
	Message  string
}

func (e *TerminalError) Error() string { return e.Message }

const defaultBackoff = 2 * time.Second

type Orchestrator struct {
	runner     tool.Runner
	strategies []strategy.Client
	classify   Classifier
	backoff    time.Duration
}

type Option func(*Orchestrator)

// WithClassifier swaps the error classifier.
func WithClassifier(c Classifier) Option {
	return func(o *Orchestrator) { o.classify = c }
}

// WithBackoff overrides the pause between retriable attempts.
func WithBackoff(d time.Duration) Option {
	return func(o *Orchestrator) { o.backoff = d }
}

func New(runner tool.Runner, strategies []strategy.Client, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		runner:     runner,
		strategies: strategies,
		classify:   Classify,
		backoff:    defaultBackoff,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Attempt describes one operation to resolve across the strategy table.
// Strategy identity args are merged between Args and the target URL.
type Attempt struct {
	Bin      string
	Args     []string
	URL      string
	Dir      string
	Timeout  time.Duration
	Describe string

	// OnLine receives live tool output for the currently running
	// attempt.
	OnLine func(line []byte)
	// OnStrategySwitch fires before every attempt after the first, so
	// callers can reset per-attempt progress state.
	OnStrategySwitch func(name string)
}

// Resolve tries the attempt under each client strategy in order. It
// returns the first successful result, a *TerminalError as soon as a
// failure is classified non-retriable, or ErrExhausted once the whole
// table has been burned through.
func (o *Orchestrator) Resolve(ctx context.Context, a Attempt) (*tool.Result, error) {
	var lastOutput string

	for i, st := range o.strategies {
		if i > 0 {
			if a.OnStrategySwitch != nil {
				a.OnStrategySwitch(st.Name)
			}
			if err := o.pause(ctx); err != nil {
				return nil, err
			}
		}

		slog.Info("attempting resolution",
			slog.String("op", a.Describe),
			slog.String("strategy", st.Name),
			slog.String("url", a.URL),
		)

		args := make([]string, 0, len(a.Args)+len(st.Args)+1)
		args = append(args, a.Args...)
		args = append(args, st.Args...)
		args = append(args, a.URL)

		res, err := o.runner.Run(ctx, tool.Command{
			Bin:     a.Bin,
			Args:    args,
			Dir:     a.Dir,
			Timeout: a.Timeout,
		}, a.OnLine)

		switch {
		case errors.Is(err, tool.ErrTimeout):
			slog.Warn("strategy timed out",
				slog.String("op", a.Describe),
				slog.String("strategy", st.Name),
			)
			if res != nil {
				lastOutput = res.Output
			}
			continue

		case err != nil:
			// the tool could not even be spawned, retrying with a
			// different identity cannot help
			return nil, err
		}

		if res.ExitCode == 0 {
			slog.Info("resolution succeeded",
				slog.String("op", a.Describe),
				slog.String("strategy", st.Name),
			)
			return res, nil
		}

		lastOutput = res.Output
		class := o.classify(res.Output)

		if !class.Retriable() {
			slog.Error("terminal remote error",
				slog.String("op", a.Describe),
				slog.String("strategy", st.Name),
				slog.String("err", Summarize(res.Output)),
			)
			return res, &TerminalError{
				Strategy: st.Name,
				Message:  Summarize(res.Output),
			}
		}

		slog.Warn("retriable remote error, rotating strategy",
			slog.String("op", a.Describe),
			slog.String("strategy", st.Name),
			slog.Int("class", int(class)),
			slog.String("err", Summarize(res.Output)),
		)
	}

	return nil, errors.Join(ErrExhausted, errors.New(Summarize(lastOutput)))
}

func (o *Orchestrator) pause(ctx context.Context) error {
	if o.backoff <= 0 {
		return nil
	}

	t := time.NewTimer(o.backoff)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Summarize reduces captured tool output to its most relevant line for
// display: the last line mentioning ERROR, else the last non-empty line.
func Summarize(output string) string {
	var lastLine, lastErrorLine string

	for _, l := range strings.Split(output, "\n") {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		lastLine = l
		if strings.Contains(l, "ERROR") {
			lastErrorLine = l
		}
	}

	s := lastLine
	if lastErrorLine != "" {
		s = lastErrorLine
	}
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
