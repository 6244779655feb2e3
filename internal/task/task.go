// Package task provides a bounded multi-producer, single-consumer request/reply
// channel for handing work to a goroutine that must never block on it.
//
// Producers call Sender.Send to enqueue an input and wait for the computed
// output, or Sender.Post to enqueue without waiting. The consumer pulls
// RemoteIO entries with Receiver.Recv or, without blocking, Receiver.TryIter,
// and resolves each entry exactly once with Reply or Drop.
package task

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"
	"sync/atomic"
)

// Capacity is the number of accepted entries that may wait for the consumer.
const Capacity = 1

// ErrChannelClosed reports that one end of the channel is gone.
var ErrChannelClosed = errors.New("task channel closed")

// ErrAcceptedNoReply reports that Send's context ended after the input was
// queued. The consumer still processes it; retrying applies it twice.
var ErrAcceptedNoReply = errors.New("accepted, no reply")

// RemoteIO pairs one input with a one-shot reply slot.
type RemoteIO[I, O any] struct {
	Input I

	reply chan O
	once  sync.Once
}

// ExpectsReply reports whether a producer is waiting on this entry.
func (r *RemoteIO[I, O]) ExpectsReply() bool {
	return r.reply != nil
}

// Reply delivers out to the waiting producer. It returns false when the entry
// was already resolved or carries no reply slot.
func (r *RemoteIO[I, O]) Reply(out O) bool {
	if r.reply == nil {
		return false
	}
	sent := false
	r.once.Do(func() {
		r.reply <- out
		close(r.reply)
		sent = true
	})
	return sent
}

// Drop resolves the entry without a value; the producer fails with ErrChannelClosed.
func (r *RemoteIO[I, O]) Drop() {
	if r.reply == nil {
		return
	}
	r.once.Do(func() { close(r.reply) })
}

type channel[I, O any] struct {
	queue chan *RemoteIO[I, O]

	done      chan struct{}
	closeOnce sync.Once

	senders  atomic.Int64
	gone     chan struct{}
	goneOnce sync.Once
}

// New creates a connected receiver/sender pair.
func New[I, O any]() (*Receiver[I, O], *Sender[I, O]) {
	ch := &channel[I, O]{
		queue: make(chan *RemoteIO[I, O], Capacity),
		done:  make(chan struct{}),
		gone:  make(chan struct{}),
	}
	ch.senders.Store(1)
	return &Receiver[I, O]{ch: ch}, &Sender[I, O]{ch: ch}
}

// Sender is the producer half. Clone it for each additional producer.
type Sender[I, O any] struct {
	ch     *channel[I, O]
	closed atomic.Bool
}

// Clone returns another producer handle on the same channel. Once every
// handle has been closed the stream is over and the clone is born closed.
func (s *Sender[I, O]) Clone() *Sender[I, O] {
	for {
		n := s.ch.senders.Load()
		if n <= 0 {
			clone := &Sender[I, O]{ch: s.ch}
			clone.closed.Store(true)
			return clone
		}
		if s.ch.senders.CompareAndSwap(n, n+1) {
			return &Sender[I, O]{ch: s.ch}
		}
	}
}

// Close drops this producer handle. Once every handle is closed the receiver
// reports end of stream after draining what is queued.
func (s *Sender[I, O]) Close() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	if s.ch.senders.Add(-1) == 0 {
		s.ch.goneOnce.Do(func() { close(s.ch.gone) })
	}
}

// Send enqueues input, blocking while the queue is full, then blocks until the
// consumer replies.
func (s *Sender[I, O]) Send(ctx context.Context, input I) (O, error) {
	var zero O
	entry := &RemoteIO[I, O]{Input: input, reply: make(chan O, 1)}
	if err := s.enqueue(ctx, entry); err != nil {
		return zero, err
	}

	select {
	case out, ok := <-entry.reply:
		if !ok {
			return zero, ErrChannelClosed
		}
		return out, nil
	case <-s.ch.done:
		// A reply written just before shutdown still wins.
		select {
		case out, ok := <-entry.reply:
			if ok {
				return out, nil
			}
		default:
		}
		return zero, ErrChannelClosed
	case <-ctx.Done():
		return zero, fmt.Errorf("%w: %w", ErrAcceptedNoReply, ctx.Err())
	}
}

// Post enqueues input without a reply slot, blocking while the queue is full.
func (s *Sender[I, O]) Post(ctx context.Context, input I) error {
	return s.enqueue(ctx, &RemoteIO[I, O]{Input: input})
}

func (s *Sender[I, O]) enqueue(ctx context.Context, entry *RemoteIO[I, O]) error {
	if s.closed.Load() {
		return ErrChannelClosed
	}
	select {
	case <-s.ch.done:
		return ErrChannelClosed
	default:
	}

	select {
	case s.ch.queue <- entry:
		return nil
	case <-s.ch.done:
		return ErrChannelClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receiver is the single consumer half.
type Receiver[I, O any] struct {
	ch       *channel[I, O]
	terminal atomic.Bool
}

// Recv blocks for the next entry. It returns ErrChannelClosed once every
// sender is closed and nothing is queued, or after Close; that result is final.
func (r *Receiver[I, O]) Recv(ctx context.Context) (*RemoteIO[I, O], error) {
	if r.terminal.Load() {
		return nil, ErrChannelClosed
	}

	select {
	case entry := <-r.ch.queue:
		return entry, nil
	case <-r.ch.done:
		r.terminal.Store(true)
		return nil, ErrChannelClosed
	case <-r.ch.gone:
		select {
		case entry := <-r.ch.queue:
			return entry, nil
		default:
			r.terminal.Store(true)
			return nil, ErrChannelClosed
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// TryIter yields, without blocking, the entries queued when it is called.
// Entries enqueued while iterating are left for the next call.
func (r *Receiver[I, O]) TryIter() iter.Seq[*RemoteIO[I, O]] {
	return func(yield func(*RemoteIO[I, O]) bool) {
		if r.Closed() {
			return
		}
		for n := len(r.ch.queue); n > 0; n-- {
			select {
			case entry := <-r.ch.queue:
				if !yield(entry) {
					return
				}
			default:
				return
			}
		}
	}
}

// Pending returns the number of accepted entries not yet pulled.
func (r *Receiver[I, O]) Pending() int {
	return len(r.ch.queue)
}

// Closed reports whether Close has been called.
func (r *Receiver[I, O]) Closed() bool {
	select {
	case <-r.ch.done:
		return true
	default:
		return false
	}
}

// Close drops the consumer end. Queued entries are discarded and their
// producers, if waiting, fail with ErrChannelClosed.
func (r *Receiver[I, O]) Close() {
	r.ch.closeOnce.Do(func() {
		close(r.ch.done)
		for {
			select {
			case entry := <-r.ch.queue:
				entry.Drop()
			default:
				return
			}
		}
	})
}
