package webhook

import (
	"context"
	"sync"

	"daigo/pkg/logger"
)

// Dispatcher fans webhook events out to the handler with bounded
// concurrency. Dispatch returns when every event of the batch is done so
// the HTTP response acknowledges completed work.
type Dispatcher struct {
	handler *Handler
	sem     chan struct{}
}

func NewDispatcher(handler *Handler, maxWorkers int) *Dispatcher {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &Dispatcher{
		handler: handler,
		sem:     make(chan struct{}, maxWorkers),
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, events []InboundEvent) {
	var wg sync.WaitGroup
	for _, ev := range events {
		ev := ev
		wg.Add(1)
		d.sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-d.sem }()
			defer func() {
				if r := recover(); r != nil {
					logger.ErrorCF("webhook", "event handler panicked", map[string]interface{}{
						logger.FieldUserID: ev.UserID,
						"panic":            r,
					})
				}
			}()
			d.handler.Handle(ctx, ev)
		}()
	}
	wg.Wait()
}
