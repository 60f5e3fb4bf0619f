// Package runner executes rrdtool and interprets its outcome.
//
// rrdtool reports every problem on stderr, and its exit status is not
// reliable across versions. A run therefore fails exactly when stderr is
// non-empty, whatever the exit status. Standard output is discarded.
//
// Runs block until the child exits and stderr is drained. Without a
// timeout a hung child blocks the caller indefinitely; WithTimeout bounds
// each invocation and kills the child on expiry. Descendants that keep
// stderr open after the kill delay the return by at most waitDelay.
package runner

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/xtxerr/rrdsink/internal/errors"
	"github.com/xtxerr/rrdsink/internal/logging"
)

var log = logging.Component("runner")

// waitDelay bounds how long Wait keeps copying stderr after the child
// was killed or exited.
const waitDelay = 2 * time.Second

// Observer receives the duration and outcome of every run.
type Observer interface {
	ObserveRun(op string, d time.Duration, err error)
}

// Runner executes commands built by the command package.
//
// Runner is stateless apart from its options and safe for concurrent use.
type Runner struct {
	timeout  time.Duration
	observer Observer
}

// Option configures a Runner.
type Option func(*Runner)

// WithTimeout bounds each invocation. Zero means no bound.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) { r.timeout = d }
}

// WithObserver reports run durations to o.
func WithObserver(o Observer) Option {
	return func(r *Runner) { r.observer = o }
}

// New creates a Runner.
func New(opts ...Option) *Runner {
	r := &Runner{}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Timeout returns the configured per-invocation bound.
func (r *Runner) Timeout() time.Duration {
	return r.timeout
}

// Run executes args[0] with the remaining arguments.
//
// Errors:
//   - *errors.ProcessStartError if the binary cannot be started
//   - *errors.ExternalToolError if the child wrote to stderr
//   - errors.ErrTimeout if the configured timeout expired
//   - ctx.Err() if ctx was cancelled
func (r *Runner) Run(ctx context.Context, args []string) error {
	start := time.Now()
	err := r.run(ctx, args)

	if r.observer != nil {
		r.observer.ObserveRun(operation(args), time.Since(start), err)
	}
	return err
}

func (r *Runner) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return &errors.ProcessStartError{Err: errors.New("empty command")}
	}

	runCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, args[0], args[1:]...)
	cmd.WaitDelay = waitDelay
	// nil Stdin and Stdout are connected to the null device.
	cmd.Stdin = nil
	cmd.Stdout = nil

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	log.Debug("exec", "args", args)

	if err := cmd.Start(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if runCtx.Err() == context.DeadlineExceeded {
			return r.timeoutError(args)
		}
		return &errors.ProcessStartError{Binary: args[0], Err: err}
	}

	waitErr := cmd.Wait()

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if runCtx.Err() == context.DeadlineExceeded {
		return r.timeoutError(args)
	}

	if msg := joinLines(stderr.String()); msg != "" {
		return &errors.ExternalToolError{Message: msg, Args: args}
	}

	if waitErr != nil {
		// Silent non-zero exits are not failures for rrdtool.
		log.Debug("exit without diagnostics", "args", args, "error", waitErr)
	}

	return nil
}

var lineBreaks = strings.NewReplacer("\r\n", "", "\n", "", "\r", "")

// joinLines joins the lines of s without separators.
func joinLines(s string) string {
	return lineBreaks.Replace(s)
}

func (r *Runner) timeoutError(args []string) error {
	return fmt.Errorf("%w: %s %s after %s", errors.ErrTimeout, args[0], operation(args), r.timeout)
}

func operation(args []string) string {
	if len(args) > 1 {
		return args[1]
	}
	return ""
}
