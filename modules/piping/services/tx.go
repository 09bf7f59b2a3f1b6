package services

import (
	"context"

	"github.com/pipetrak/pipetrak/pkg/composables"
	"github.com/pipetrak/pipetrak/pkg/eventbus"
)

// runInTx executes fn inside the caller's transaction when one is present.
// Otherwise it opens its own transaction and holds back domain events until
// commit, so subscribers never observe rolled-back work.
func runInTx(ctx context.Context, bus eventbus.EventBus, fn func(context.Context) error) error {
	if composables.HasTx(ctx) {
		return fn(ctx)
	}
	ctx, buf := composables.WithEventBuffer(ctx)
	if err := composables.InTx(ctx, fn); err != nil {
		return err
	}
	buf.Flush(bus.Publish)
	return nil
}

// publish defers the event until the surrounding transaction commits, or
// delivers immediately when nothing is pending.
func publish(ctx context.Context, bus eventbus.EventBus, event interface{}) {
	if composables.DeferEvent(ctx, event) {
		return
	}
	bus.Publish(event)
}
