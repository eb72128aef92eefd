package pipeline

import (
	"context"
	"sync"

	"radarsync/internal/logging"
)

var logger = logging.For("pipeline")

// Pipeline applies a sequence of stages to every item read from a channel.
// Step errors are logged and do not stop processing of the current item.
type Pipeline[T any] struct {
	stages []Stage[T]
}

func NewPipeline[T any](stages ...Stage[T]) *Pipeline[T] {
	return &Pipeline[T]{stages: stages}
}

// Process consumes items until in is closed. For each item:
//   - all steps in a stage are started concurrently and must complete before
//     the next stage starts;
//   - step errors are logged and ignored.
//
// Steps observe ctx for cancellation; the pipeline itself keeps running until
// the input channel is closed.
func (p *Pipeline[T]) Process(ctx context.Context, in <-chan *T) {
	for item := range in {
		p.Run(ctx, item)
	}
}

// Run applies every stage to a single item.
func (p *Pipeline[T]) Run(ctx context.Context, item *T) {
	for i, stage := range p.stages {
		var wg sync.WaitGroup
		for _, step := range stage.steps {
			wg.Add(1)
			go func(step Named[T]) {
				defer wg.Done()
				if err := step.Step(ctx, item); err != nil {
					logger.Error("step failed", "stage", i, "step", step.Name, "error", err)
				}
			}(step)
		}
		wg.Wait()
	}
}
