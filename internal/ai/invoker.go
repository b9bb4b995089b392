package ai

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/Angella-Mulikatete/AmplystV2-sub001/internal/metrics"
	"github.com/Angella-Mulikatete/AmplystV2-sub001/internal/utils"
)

const (
	defaultTimeout        = 10 * time.Second
	defaultMaxAttempts    = 3
	defaultInitialBackoff = 500 * time.Millisecond
	defaultMaxBackoff     = 5 * time.Second
	defaultMaxLogLength   = 200
	defaultReserve        = 250 * time.Millisecond
)

var errAttemptTimeout = errors.New("attempt deadline exceeded")

var retryHintPattern = regexp.MustCompile(`(?i)retry(?:\s+(?:after|in))?\s+(\d+(?:\.\d+)?)\s*(ms|s|sec|secs|seconds?)\b`)

// InvokerConfig tunes timeout and retry behaviour. Zero values mean defaults.
type InvokerConfig struct {
	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	MaxLogLength   int

	// DeadlineReserve is kept back from the caller's deadline so a
	// timed-out invocation still leaves time for the fallback.
	DeadlineReserve time.Duration
}

// Invoker sends prompts to a Generator under a deadline, retry policy and
// a shared concurrency gate. It never looks at the returned text.
type Invoker struct {
	provider  string
	generator Generator
	gate      *Gate
	cfg       InvokerConfig
	logger    *zap.Logger

	wait func(ctx context.Context, d time.Duration) error
}

// NewInvoker wires a generator to a gate. A nil gate gets a private default one.
func NewInvoker(provider string, generator Generator, gate *Gate, cfg InvokerConfig, logger *zap.Logger) *Invoker {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = defaultInitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = defaultMaxBackoff
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = cfg.InitialBackoff
	}
	if cfg.MaxLogLength <= 0 {
		cfg.MaxLogLength = defaultMaxLogLength
	}
	if cfg.DeadlineReserve <= 0 {
		cfg.DeadlineReserve = defaultReserve
	}
	if gate == nil {
		gate = NewGate(0, defaultQueueDepth)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Invoker{
		provider:  provider,
		generator: generator,
		gate:      gate,
		cfg:       cfg,
		logger:    logger,
		wait:      utils.WaitFor,
	}
}

// Provider returns the configured provider name.
func (i *Invoker) Provider() string { return i.provider }

// Model returns the generator's model name.
func (i *Invoker) Model() string { return i.generator.Model() }

// Invoke returns the raw model output for prompt. When ctx carries a
// deadline the whole invocation, queueing included, ends DeadlineReserve
// before it; running out of that budget is ErrUpstreamTimeout, while the
// caller going away is ErrRequestCancelled.
func (i *Invoker) Invoke(ctx context.Context, prompt string) (string, error) {
	budget, cancel := i.budget(ctx)
	defer cancel()

	release, err := i.gate.Acquire(budget)
	if err != nil {
		if ctx.Err() == nil && budget.Err() != nil {
			err = fmt.Errorf("%w: request deadline reached while queued", ErrUpstreamTimeout)
		}
		i.observe(err)
		return "", err
	}
	defer release()

	i.logger.Debug("model invocation request",
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, i.cfg.MaxLogLength)),
	)

	out, err := i.invoke(ctx, budget, prompt)
	i.observe(err)
	if err != nil {
		return "", err
	}

	i.logger.Debug("model invocation response",
		zap.Int("response_length", utf8.RuneCountInString(out)),
		zap.String("response_preview", utils.TruncateForLog(out, i.cfg.MaxLogLength)),
	)

	return out, nil
}

func (i *Invoker) budget(ctx context.Context) (context.Context, context.CancelFunc) {
	if deadline, ok := ctx.Deadline(); ok {
		return context.WithDeadline(ctx, deadline.Add(-i.cfg.DeadlineReserve))
	}
	return context.WithCancel(ctx)
}

func (i *Invoker) invoke(ctx, budget context.Context, prompt string) (string, error) {
	var lastErr error
	attempts := 0

	for attempts < i.cfg.MaxAttempts {
		attempts++

		out, err := i.attempt(budget, prompt)
		if err == nil {
			return out, nil
		}

		if ctx.Err() != nil {
			return "", fmt.Errorf("%w: %w", ErrRequestCancelled, ctx.Err())
		}
		if budget.Err() != nil {
			return "", fmt.Errorf("%w: request deadline reached after %d attempts", ErrUpstreamTimeout, attempts)
		}

		if !retryable(err) {
			var se *StatusError
			if errors.As(err, &se) && se.Unauthorized() {
				return "", fmt.Errorf("%w: %w: %w", ErrUpstreamRejected, ErrMisconfigured, err)
			}
			return "", fmt.Errorf("%w: %w", ErrUpstreamRejected, err)
		}

		lastErr = err
		if attempts == i.cfg.MaxAttempts {
			break
		}

		delay := i.backoff(attempts)
		if hint := retryHint(err); hint > 0 {
			if hint > i.cfg.MaxBackoff {
				i.logger.Warn("upstream asked to wait longer than allowed, giving up",
					zap.Duration("retry_after", hint),
					zap.Duration("max_backoff", i.cfg.MaxBackoff),
					zap.Error(err),
				)
				break
			}
			if hint > delay {
				delay = hint
			}
		}

		if deadline, ok := budget.Deadline(); ok && time.Until(deadline) <= delay {
			i.logger.Warn("no time left for another attempt, giving up",
				zap.Int("attempt", attempts),
				zap.Duration("backoff", delay),
				zap.Error(err),
			)
			break
		}

		i.logger.Warn("model invocation failed, retrying",
			zap.Int("attempt", attempts),
			zap.Int("max_attempts", i.cfg.MaxAttempts),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)

		if err := i.wait(budget, delay); err != nil {
			if ctx.Err() != nil {
				return "", fmt.Errorf("%w: %w", ErrRequestCancelled, err)
			}
			return "", fmt.Errorf("%w: request deadline reached during backoff", ErrUpstreamTimeout)
		}
	}

	if errors.Is(lastErr, errAttemptTimeout) {
		return "", fmt.Errorf("%w: %d attempts of %s each", ErrUpstreamTimeout, attempts, i.cfg.Timeout)
	}

	return "", fmt.Errorf("%w: gave up after %d attempts: %w", ErrUpstreamRejected, attempts, lastErr)
}

type attemptResult struct {
	out string
	err error
}

// attempt runs one call under the per-attempt deadline. The call runs in its
// own goroutine so a provider that ignores ctx cannot hold the caller.
func (i *Invoker) attempt(ctx context.Context, prompt string) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, i.cfg.Timeout)
	defer cancel()

	start := time.Now()
	done := make(chan attemptResult, 1)
	go func() {
		out, err := i.generator.GenerateContent(attemptCtx, prompt)
		done <- attemptResult{out: out, err: err}
	}()

	var res attemptResult
	select {
	case res = <-done:
	case <-attemptCtx.Done():
		res = attemptResult{err: attemptCtx.Err()}
	}
	metrics.ObserveAttempt(i.provider, start)

	if res.err != nil {
		if ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: %w", errAttemptTimeout, res.err)
		}
		return "", res.err
	}

	return res.out, nil
}

func (i *Invoker) backoff(attempt int) time.Duration {
	delay := i.cfg.InitialBackoff
	for n := 1; n < attempt; n++ {
		delay *= 2
		if delay >= i.cfg.MaxBackoff {
			return i.cfg.MaxBackoff
		}
	}
	return delay
}

func (i *Invoker) observe(err error) {
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrOverloaded):
		outcome = "overloaded"
	case errors.Is(err, ErrRequestCancelled):
		outcome = "cancelled"
	case errors.Is(err, ErrUpstreamTimeout):
		outcome = "timeout"
	case errors.Is(err, ErrMisconfigured):
		outcome = "misconfigured"
	default:
		outcome = "rejected"
	}
	metrics.ObserveInvocation(i.provider, outcome)
}

func retryable(err error) bool {
	if errors.Is(err, errAttemptTimeout) || errors.Is(err, ErrEmptyResponse) {
		return true
	}
	if errors.Is(err, ErrMisconfigured) || errors.Is(err, ErrInvalidPrompt) {
		return false
	}

	var se *StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}

	// Anything else is treated as a transport failure.
	return true
}

// retryHint extracts how long the provider asked us to wait.
func retryHint(err error) time.Duration {
	var se *StatusError
	if errors.As(err, &se) && se.RetryAfter > 0 {
		return se.RetryAfter
	}

	m := retryHintPattern.FindStringSubmatch(err.Error())
	if m == nil {
		return 0
	}

	value, parseErr := strconv.ParseFloat(m[1], 64)
	if parseErr != nil {
		return 0
	}
	if m[2] == "ms" {
		return time.Duration(value * float64(time.Millisecond))
	}
	return time.Duration(value * float64(time.Second))
}
