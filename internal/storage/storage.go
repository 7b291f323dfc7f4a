package storage

import (
	"context"
	"fmt"
)

// Sink receives batches of records.
type Sink[T any] interface {
	Put(ctx context.Context, records []T) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc[T any] func(ctx context.Context, records []T) error

// Put implements Sink.
func (f SinkFunc[T]) Put(ctx context.Context, records []T) error {
	return f(ctx, records)
}

// Fanout writes every batch to each sink in order and stops at the first failure.
type Fanout[T any] []Sink[T]

// Put implements Sink.
func (f Fanout[T]) Put(ctx context.Context, records []T) error {
	for i, sink := range f {
		if err := sink.Put(ctx, records); err != nil {
			return fmt.Errorf("sink %d: %w", i, err)
		}
	}
	return nil
}
