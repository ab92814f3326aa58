package inference

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lifely/lifely/internal/logging"
)

// CallRecord describes one inference attempt.
type CallRecord struct {
	ID           string
	RunID        string
	Provider     string
	Model        string
	Operation    string
	Attempt      int
	InputTokens  int
	OutputTokens int
	LatencyMs    int64
	Status       string // "success" or "error"
	ErrorKind    string
	ErrorMessage string
	CostUSD      float64
	CreatedAt    time.Time
}

// CallRepository persists call records.
type CallRepository interface {
	CreateCall(ctx context.Context, rec CallRecord) error
}

// CallLog receives a record for every attempt the client makes.
type CallLog interface {
	LogCall(ctx context.Context, rec CallRecord)
}

// Logger writes call records to a repository without blocking the caller.
type Logger struct {
	repo   CallRepository
	logger *slog.Logger
	wg     sync.WaitGroup
}

// NewLogger creates a new inference logger.
func NewLogger(repo CallRepository, logger *slog.Logger) *Logger {
	return &Logger{
		repo:   repo,
		logger: logging.OrDiscard(logger),
	}
}

// LogCall fills in the id, timestamp and estimated cost, then persists rec
// in the background.
func (l *Logger) LogCall(ctx context.Context, rec CallRecord) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.RunID == "" {
		rec.RunID = RunIDFrom(ctx)
	}
	if rec.CostUSD == 0 {
		rec.CostUSD = estimateOpenAICost(rec.Model, rec.InputTokens, rec.OutputTokens)
	}

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		// The caller's context may be cancelled by the time this runs.
		bgCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := l.repo.CreateCall(bgCtx, rec); err != nil {
			l.logger.Error("failed to log inference call", "error", err, "model", rec.Model)
		}
	}()
}

// Flush waits for pending writes.
func (l *Logger) Flush() {
	l.wg.Wait()
}

type runIDKey struct{}

// WithRunID tags ctx with a pipeline run id for call records.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

// RunIDFrom returns the run id stored by WithRunID, or "".
func RunIDFrom(ctx context.Context) string {
	if v, ok := ctx.Value(runIDKey{}).(string); ok {
		return v
	}
	return ""
}

// estimateOpenAICost gives a rough USD figure from per-million token prices.
func estimateOpenAICost(model string, inputTokens, outputTokens int) float64 {
	var inputCostPer1M, outputCostPer1M float64

	switch {
	case strings.HasPrefix(model, "gpt-5-nano"):
		inputCostPer1M, outputCostPer1M = 0.05, 0.40
	case strings.HasPrefix(model, "gpt-5-mini"):
		inputCostPer1M, outputCostPer1M = 0.25, 2.00
	case strings.HasPrefix(model, "gpt-5"):
		inputCostPer1M, outputCostPer1M = 1.25, 10.00
	case strings.HasPrefix(model, "gpt-4o-mini"):
		inputCostPer1M, outputCostPer1M = 0.15, 0.60
	case strings.HasPrefix(model, "gpt-4o"):
		inputCostPer1M, outputCostPer1M = 2.50, 10.00
	default:
		inputCostPer1M, outputCostPer1M = 5.00, 15.00
	}

	inputCost := (float64(inputTokens) / 1_000_000) * inputCostPer1M
	outputCost := (float64(outputTokens) / 1_000_000) * outputCostPer1M

	return inputCost + outputCost
}
