package services

import "context"

type contextKey int

const (
	runIDKey contextKey = iota
	batchKey
	stageKey
	itemIDKey
	clipIDKey
)

func with[T comparable](ctx context.Context, key contextKey, value T) context.Context {
	var zero T
	if value == zero {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func from[T any](ctx context.Context, key contextKey) (T, bool) {
	value, ok := ctx.Value(key).(T)
	return value, ok
}

// WithRunID tags ctx with the supervised run's correlation id.
func WithRunID(ctx context.Context, id string) context.Context { return with(ctx, runIDKey, id) }

func RunIDFromContext(ctx context.Context) (string, bool) { return from[string](ctx, runIDKey) }

// WithBatch tags ctx with the batch (cut-off date) being processed.
func WithBatch(ctx context.Context, batch string) context.Context { return with(ctx, batchKey, batch) }

func BatchFromContext(ctx context.Context) (string, bool) { return from[string](ctx, batchKey) }

// WithStage tags ctx with the pipeline stage or insert step name. A blank
// stage leaves ctx unchanged.
func WithStage(ctx context.Context, stage string) context.Context { return with(ctx, stageKey, stage) }

func StageFromContext(ctx context.Context) (string, bool) { return from[string](ctx, stageKey) }

// WithItemID tags ctx with the work item id.
func WithItemID(ctx context.Context, id int64) context.Context { return with(ctx, itemIDKey, id) }

func ItemIDFromContext(ctx context.Context) (int64, bool) { return from[int64](ctx, itemIDKey) }

// WithClipID tags ctx with the catalog clip id.
func WithClipID(ctx context.Context, id int64) context.Context { return with(ctx, clipIDKey, id) }

func ClipIDFromContext(ctx context.Context) (int64, bool) { return from[int64](ctx, clipIDKey) }
