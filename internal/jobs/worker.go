package jobs

import (
	"context"
	"log"
	"time"
)

// Runner is one unit of periodic background work.
type Runner interface {
	Run(ctx context.Context) error
}

// Worker drives a Runner on a fixed interval until stopped. A failed run is
// logged and the loop keeps going.
type Worker struct {
	name     string
	runner   Runner
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
}

// NewWorker creates a Worker driving the given runner. The name appears in
// log output only.
func NewWorker(name string, runner Runner, interval time.Duration) *Worker {
	return &Worker{
		name:     name,
		runner:   runner,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start runs the loop until the context is cancelled or Stop is called.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	defer close(w.done)

	log.Printf("%s worker started, interval %v", w.name, w.interval)

	for {
		select {
		case <-ctx.Done():
			log.Printf("%s worker stopped: context cancelled", w.name)
			return
		case <-w.stop:
			log.Printf("%s worker stopped", w.name)
			return
		case <-ticker.C:
			if err := w.runner.Run(ctx); err != nil {
				log.Printf("%s worker run failed: %v", w.name, err)
			}
		}
	}
}

// Stop signals the loop to exit and waits for it to finish.
func (w *Worker) Stop() {
	close(w.stop)
	<-w.done
}
