// Package pipeline runs independent steps in parallel within a stage while
// keeping stages strictly sequential.
package pipeline

import (
	"context"
)

// Step is one operation on an item. Steps of the same stage run
// concurrently on the same item and must coordinate on shared fields. A
// failed step returns an error; the pipeline logs it and continues.
type Step[T any] func(ctx context.Context, item *T) error

// Named attaches a name used when logging the step's failure.
type Named[T any] struct {
	Name string
	Step Step[T]
}

// Stage groups steps that are safe to execute in parallel for a single item.
// All steps in a stage are started together, and the pipeline waits for them
// to complete before moving to the next stage.
type Stage[T any] struct {
	steps []Named[T]
}

// NewStage builds a Stage of anonymous steps.
func NewStage[T any](steps ...Step[T]) Stage[T] {
	named := make([]Named[T], len(steps))
	for i, s := range steps {
		named[i] = Named[T]{Step: s}
	}
	return Stage[T]{steps: named}
}

// NewNamedStage builds a Stage whose steps are reported by name.
func NewNamedStage[T any](steps ...Named[T]) Stage[T] {
	return Stage[T]{steps: steps}
}

// Len is the number of steps in the stage.
func (s Stage[T]) Len() int { return len(s.steps) }
