package audit

import "context"

// Worker decouples ingestion from trail persistence: the pipeline enqueues
// events and the worker drains them into the service in the background.
// Admin operations keep emitting synchronously through the service itself.
type Worker struct {
	service *Service
	inbox   chan Event
}

func NewWorker(service *Service, buffer int) *Worker {
	if buffer <= 0 {
		buffer = 256
	}
	return &Worker{service: service, inbox: make(chan Event, buffer)}
}

// Emit enqueues an event for background persistence. Blocks only when the
// inbox is full; a cancelled context unblocks the caller.
func (w *Worker) Emit(ctx context.Context, event Event) error {
	select {
	case w.inbox <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run drains the inbox until the context is cancelled, then flushes whatever
// is still buffered so erasure events are not lost on shutdown.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.flush()
			return ctx.Err()
		case event := <-w.inbox:
			w.persist(ctx, event)
		}
	}
}

func (w *Worker) flush() {
	for {
		select {
		case event := <-w.inbox:
			w.persist(context.Background(), event)
		default:
			return
		}
	}
}

func (w *Worker) persist(ctx context.Context, event Event) {
	if err := w.service.Emit(ctx, event); err != nil {
		w.service.logger.Error("audit event dropped", "action", event.Action, "error", err)
	}
}
