package poolswitcher

import "context"

// Recorder persists operation results for later inspection. Recording is
// best-effort: a failing recorder is logged, never fails the operation.
type Recorder interface {
	Record(ctx context.Context, res Result) error
}

type noopRecorder struct{}

func (noopRecorder) Record(ctx context.Context, res Result) error { return nil }
