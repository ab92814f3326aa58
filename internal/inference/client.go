package inference

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lifely/lifely/internal/logging"
	"github.com/lifely/lifely/internal/metrics"
)

// Options configures a Client.
type Options struct {
	Models             []string
	Throttle           *Throttle
	Retry              RetryPolicy
	Timeout            time.Duration
	MaxOutputTokens    int
	OutputTokenCeiling int
	ReasoningEffort    string
	Verbosity          string
	Provider           string
	Clock              Clock
	CallLog            CallLog
	Metrics            *metrics.Collector
	Logger             *slog.Logger
}

// Client issues throttled, retried requests with model fallback.
type Client struct {
	backend   Backend
	throttle  *Throttle
	retry     RetryPolicy
	selector  ModelSelector
	budget    *tokenBudget
	timeout   time.Duration
	effort    string
	verbosity string
	provider  string
	clock     Clock
	callLog   CallLog
	metrics   *metrics.Collector
	logger    *slog.Logger
}

// NewClient builds a client over backend. A nil Throttle gets the default
// three requests per minute.
func NewClient(backend Backend, opts Options) (*Client, error) {
	if backend == nil {
		return nil, errors.New("inference backend is required")
	}

	selector, err := NewModelSelector(opts.Models...)
	if err != nil {
		return nil, err
	}

	clock := opts.Clock
	if clock == nil {
		clock = SystemClock{}
	}

	throttle := opts.Throttle
	if throttle == nil {
		if throttle, err = NewThrottle(3, time.Minute, clock); err != nil {
			return nil, err
		}
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}

	initial := opts.MaxOutputTokens
	if initial <= 0 {
		initial = 4000
	}
	ceiling := opts.OutputTokenCeiling
	if ceiling < initial {
		ceiling = initial
	}

	provider := opts.Provider
	if provider == "" {
		provider = "openai"
	}

	return &Client{
		backend:   backend,
		throttle:  throttle,
		retry:     opts.Retry,
		selector:  selector,
		budget:    &tokenBudget{current: initial, ceiling: ceiling},
		timeout:   timeout,
		effort:    opts.ReasoningEffort,
		verbosity: opts.Verbosity,
		provider:  provider,
		clock:     clock,
		callLog:   opts.CallLog,
		metrics:   opts.Metrics,
		logger:    logging.OrDiscard(opts.Logger),
	}, nil
}

// MaxOutputTokens returns the current adaptive output budget.
func (c *Client) MaxOutputTokens() int {
	return c.budget.get()
}

// Generate sends instructions and input to each model in turn until one
// answers. Rate-limited and unsupported models fall through to the next
// model; any other failure is returned immediately.
func (c *Client) Generate(ctx context.Context, operation, instructions, input string) (string, error) {
	var lastErr error
	for _, model := range c.selector.Models() {
		text, err := c.tryModel(ctx, operation, model, instructions, input)
		if err == nil {
			return text, nil
		}
		lastErr = err

		if ctx.Err() != nil || !c.selector.Advance(err) {
			return "", err
		}
		c.logger.Warn("inference model exhausted, falling back",
			"operation", operation,
			"model", model,
			"error", err)
	}
	return "", fmt.Errorf("all inference models failed: %w", lastErr)
}

// GenerateJSON is Generate followed by ParseJSON. A transport failure is
// returned as an error; an unparseable answer is reported through the
// result so callers can degrade instead of failing.
func (c *Client) GenerateJSON(ctx context.Context, operation, instructions, input string) (ParseResult, error) {
	text, err := c.Generate(ctx, operation, instructions, input)
	if err != nil {
		return ParseResult{Err: err}, err
	}
	result := ParseJSON(text)
	if !result.OK {
		c.logger.Warn("inference response did not contain JSON",
			"operation", operation,
			"length", len(text))
	}
	return result, nil
}

func (c *Client) tryModel(ctx context.Context, operation, model, instructions, input string) (string, error) {
	var text string
	err := c.retry.Do(ctx, c.clock, func(attempt int) error {
		for {
			budget := c.budget.get()
			var err error
			text, err = c.call(ctx, operation, model, instructions, input, budget, attempt+1)
			if KindOf(err) == KindTruncated && c.budget.grow(budget) {
				c.logger.Info("inference output truncated, raising token budget",
					"operation", operation,
					"model", model,
					"from", budget,
					"to", c.budget.get())
				continue
			}
			if err != nil && c.retry.Retryable(err) && attempt < c.retry.MaxRetries {
				c.logger.Warn("inference attempt failed, retrying",
					"operation", operation,
					"model", model,
					"attempt", attempt+1,
					"kind", KindOf(err).String(),
					"backoff", c.retry.Backoff(attempt, err))
			}
			return err
		}
	})
	return text, err
}

func (c *Client) call(ctx context.Context, operation, model, instructions, input string, budget, attempt int) (string, error) {
	wait, err := c.throttle.Wait(ctx)
	c.metrics.ObserveThrottleWait(wait)
	if err != nil {
		return "", err
	}
	if wait > time.Second {
		c.logger.Debug("throttled inference call", "operation", operation, "wait", wait)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := c.clock.Now()
	resp, err := c.backend.Complete(callCtx, Request{
		Model:           model,
		Instructions:    instructions,
		Input:           input,
		ReasoningEffort: c.effort,
		Verbosity:       c.verbosity,
		MaxOutputTokens: budget,
	})
	latency := c.clock.Now().Sub(start)

	if err != nil {
		err = c.classifyTransport(ctx, callCtx, model, err)
	} else {
		err = classifyResponse(model, resp)
	}

	var usage Usage
	if resp != nil {
		usage = resp.Usage
	}
	c.record(ctx, operation, model, attempt, latency, usage, err)

	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

func (c *Client) classifyTransport(ctx, callCtx context.Context, model string, err error) error {
	var ierr *Error
	if errors.As(err, &ierr) {
		if ierr.Model == "" {
			ierr.Model = model
		}
		return ierr
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Model: model, Err: fmt.Errorf("no response within %v: %w", c.timeout, err)}
	}
	return NewError(KindUnavailable, model, err)
}

func (c *Client) record(ctx context.Context, operation, model string, attempt int, latency time.Duration, usage Usage, err error) {
	outcome := "ok"
	if err != nil {
		outcome = KindOf(err).String()
	}
	c.metrics.ObserveInference(model, outcome, latency, usage.InputTokens, usage.OutputTokens)

	if c.callLog == nil {
		return
	}
	rec := CallRecord{
		Provider:     c.provider,
		Model:        model,
		Operation:    operation,
		Attempt:      attempt,
		InputTokens:  usage.InputTokens,
		OutputTokens: usage.OutputTokens,
		LatencyMs:    latency.Milliseconds(),
		Status:       "success",
	}
	if err != nil {
		rec.Status = "error"
		rec.ErrorKind = outcome
		rec.ErrorMessage = err.Error()
	}
	c.callLog.LogCall(ctx, rec)
}

// tokenBudget is the adaptive output size shared by every call of a client.
type tokenBudget struct {
	mu      sync.Mutex
	current int
	ceiling int
}

func (b *tokenBudget) get() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

// grow doubles the budget toward the ceiling. It reports false when the call
// that used budget cannot be given more room.
func (b *tokenBudget) grow(used int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.current > used {
		// Another caller already raised it.
		return true
	}
	if b.current >= b.ceiling {
		return false
	}
	b.current *= 2
	if b.current > b.ceiling {
		b.current = b.ceiling
	}
	return true
}
