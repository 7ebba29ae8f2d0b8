package eventbus

import "context"

// Forward subscribes with a buffer of n and calls fn for every event on a
// dedicated goroutine, so a slow consumer only delays itself. It stops when
// ctx is canceled or the bus is closed; the returned channel is closed then.
func Forward[T any](ctx context.Context, b *Bus[T], n int, fn func(T)) <-chan struct{} {
	done := make(chan struct{})
	sub := b.SubscribeN(n)
	go func() {
		defer close(done)
		defer b.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-sub:
				if !ok {
					return
				}
				fn(e)
			}
		}
	}()
	return done
}
