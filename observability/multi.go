package observability

import "context"

// MultiObserver forwards each event to every observer it holds, in order.
type MultiObserver []Observer

// NewMultiObserver builds a MultiObserver from the non-nil observers given.
// Nil entries are dropped so callers can pass optional observers directly.
func NewMultiObserver(observers ...Observer) MultiObserver {
	m := make(MultiObserver, 0, len(observers))
	for _, obs := range observers {
		if obs != nil {
			m = append(m, obs)
		}
	}
	return m
}

func (m MultiObserver) OnEvent(ctx context.Context, event Event) {
	for _, obs := range m {
		obs.OnEvent(ctx, event)
	}
}
