// Package batch runs chunked work through a small pool of workers.
package batch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// Config sizes a run.
type Config struct {
	// Size is the number of items per chunk.
	Size int
	// Workers is the number of chunks processed concurrently.
	Workers int
	// Pause is slept by a worker between two of its chunks.
	Pause time.Duration
}

// ProgressFunc receives the cumulative number of processed items. Values
// never decrease.
type ProgressFunc func(done, total int)

// ChunkError records a chunk that failed.
type ChunkError struct {
	Index int
	Items int
	Err   error
}

func (e *ChunkError) Error() string {
	return fmt.Sprintf("batch %d (%d items): %v", e.Index+1, e.Items, e.Err)
}

func (e *ChunkError) Unwrap() error {
	return e.Err
}

// Result summarizes a run.
type Result struct {
	Chunks    int
	Processed int
	Failures  []*ChunkError
}

// Chunk splits items into consecutive slices of at most size elements.
func Chunk[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = len(items)
	}
	if len(items) == 0 {
		return nil
	}

	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[start:end])
	}
	return chunks
}

// Run processes items in chunks with cfg.Workers workers. Each worker claims
// the next unprocessed chunk until none remain. A failing chunk is recorded
// in the result and does not stop the others. Run only returns an error when
// ctx is cancelled.
func Run[T any](ctx context.Context, items []T, cfg Config, fn func(ctx context.Context, chunk []T) error, progress ProgressFunc) (Result, error) {
	chunks := Chunk(items, cfg.Size)
	result := Result{Chunks: len(chunks)}
	if len(chunks) == 0 {
		return result, nil
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	if workers > len(chunks) {
		workers = len(chunks)
	}

	var (
		next     atomic.Int64
		mu       sync.Mutex
		failures = make([]*ChunkError, len(chunks))
	)

	g, gCtx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for first := true; ; first = false {
				idx := int(next.Add(1)) - 1
				if idx >= len(chunks) {
					return nil
				}
				if !first && cfg.Pause > 0 {
					if err := sleep(gCtx, cfg.Pause); err != nil {
						return err
					}
				}
				if err := gCtx.Err(); err != nil {
					return err
				}

				chunk := chunks[idx]
				err := runChunk(gCtx, chunk, fn)

				mu.Lock()
				if err != nil {
					failures[idx] = &ChunkError{Index: idx, Items: len(chunk), Err: err}
				}
				result.Processed += len(chunk)
				done := result.Processed
				if progress != nil {
					progress(done, len(items))
				}
				mu.Unlock()
			}
		})
	}

	err := g.Wait()
	for _, f := range failures {
		if f != nil {
			result.Failures = append(result.Failures, f)
		}
	}
	if err != nil {
		return result, fmt.Errorf("batch run cancelled: %w", err)
	}
	return result, nil
}

// runChunk converts a panic in fn into a chunk failure.
func runChunk[T any](ctx context.Context, chunk []T, fn func(ctx context.Context, chunk []T) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx, chunk)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
