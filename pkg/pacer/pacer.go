// Package pacer spaces out the per-item remote calls of a batch operation so
// a long run of membership updates does not hammer the platform API, and
// reports progress at a fixed cadence.
//
// Example usage:
//
//	p := pacer.New(500 * time.Millisecond)
//	p.OnProgress(5, func(done, total int) { updateProgressMessage(done, total) })
//	for i, id := range ids {
//	    if err := p.Wait(ctx); err != nil {
//	        return err
//	    }
//	    process(id)
//	    p.Step(i+1, len(ids))
//	}
package pacer

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer is a fixed-interval limiter with an optional progress hook.
// The zero value performs no pacing and reports nothing.
type Pacer struct {
	lim      *rate.Limiter
	every    int
	progress func(done, total int)
}

// New creates a Pacer that allows one call per interval. A non-positive
// interval disables pacing entirely.
func New(interval time.Duration) *Pacer {
	if interval <= 0 {
		return &Pacer{}
	}
	return &Pacer{lim: rate.NewLimiter(rate.Every(interval), 1)}
}

// OnProgress registers fn to be called every n completed items and once more
// on the final item. n <= 0 disables reporting.
func (p *Pacer) OnProgress(n int, fn func(done, total int)) {
	p.every = n
	p.progress = fn
}

// Wait blocks until the next call is allowed or the context is canceled.
func (p *Pacer) Wait(ctx context.Context) error {
	if p.lim == nil {
		if ctx != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return p.lim.Wait(ctx)
}

// Step records that done of total items are finished and fires the progress
// hook at the configured cadence. The hook also fires when done == total so
// the final state is always reported.
func (p *Pacer) Step(done, total int) {
	if p.progress == nil || p.every <= 0 {
		return
	}
	if done%p.every == 0 || done == total {
		p.progress(done, total)
	}
}
