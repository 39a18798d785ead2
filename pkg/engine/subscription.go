package engine

import (
	"sync"

	"github.com/breathescope/breathescope/pkg/score"
)

// Subscription is the handle for one monitoring stream attachment.
// Cancel stops delivery; it is safe to call more than once and safe to
// call concurrently with sample arrival. No update is delivered after
// Cancel returns control of the stream.
type Subscription struct {
	cancel chan struct{}
	once   sync.Once
}

// Cancel detaches the subscription from the engine.
func (s *Subscription) Cancel() {
	s.once.Do(func() { close(s.cancel) })
}

// Subscribe attaches a stream of exposure samples to the engine. Samples
// are forwarded into the engine's serial queue, where each one either
// annotates the current snapshot or triggers a recompute. The engine owns
// teardown: cancelling the subscription or closing the engine stops
// forwarding, regardless of the producer.
func (e *Engine) Subscribe(samples <-chan score.ExposureSample) *Subscription {
	sub := &Subscription{cancel: make(chan struct{})}
	go func() {
		for {
			select {
			case <-sub.cancel:
				return
			case <-e.done:
				return
			case sample, ok := <-samples:
				if !ok {
					return
				}
				select {
				case <-sub.cancel:
					return
				case <-e.done:
					return
				case e.cmds <- &command{kind: cmdSample, sample: sample}:
				}
			}
		}
	}()
	return sub
}
