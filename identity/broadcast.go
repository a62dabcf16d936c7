package identity

import (
	"context"
	"sync"
)

// Broadcaster fans a session stream out to any number of subscribers.
// Client implementations embed one to satisfy Sessions: every Set is
// delivered, in order, to every live subscriber, and a new subscriber
// first receives the current state so it never starts stale.
type Broadcaster struct {
	// sendMu serializes whole Set calls so transitions reach every
	// subscriber in one global order; mu guards the state and is never
	// held during delivery.
	sendMu sync.Mutex

	mu      sync.Mutex
	current *Session
	subs    map[int]chan *Session
	nextID  int
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[int]chan *Session)}
}

// Current returns the last session set, or nil.
func (b *Broadcaster) Current() *Session {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

// Set replaces the current session and broadcasts the transition.
// Delivery happens outside the lock and never blocks: a subscriber that
// stopped draining its buffer loses its oldest events, not the stream,
// and cannot wedge Set, Current or other subscribers.
func (b *Broadcaster) Set(s *Session) {
	b.sendMu.Lock()
	defer b.sendMu.Unlock()

	b.mu.Lock()
	b.current = s
	chans := make([]chan *Session, 0, len(b.subs))
	for _, ch := range b.subs {
		chans = append(chans, ch)
	}
	b.mu.Unlock()

	for _, ch := range chans {
		deliver(ch, s)
	}
}

// deliver enqueues s, evicting the oldest buffered event when the
// subscriber is full so the buffer always holds the newest transitions.
func deliver(ch chan *Session, s *Session) {
	for {
		select {
		case ch <- s:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// Sessions implements the stream half of Client.
func (b *Broadcaster) Sessions(ctx context.Context) <-chan *Session {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	// Buffered so Set never blocks on a subscriber that is a few
	// events behind; the replayed current state occupies slot one.
	ch := make(chan *Session, 16)
	ch <- b.current
	b.subs[id] = ch
	b.mu.Unlock()

	out := make(chan *Session)
	go func() {
		defer func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(out)
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case s := <-ch:
				select {
				case <-ctx.Done():
					return
				case out <- s:
				}
			}
		}
	}()
	return out
}
