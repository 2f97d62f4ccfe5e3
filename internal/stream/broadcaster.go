// Package stream provides the multi-subscriber broadcast primitive used for
// the connection-status and programming-session streams.
package stream

import "sync"

// Broadcaster fans values out to any number of subscribers. Subscribers
// receive every published value in publish order; a slow subscriber buffers
// instead of dropping or blocking the publisher. A new subscriber is
// immediately replayed the most recent value, if one exists.
type Broadcaster[T any] struct {
	mu      sync.Mutex
	subs    map[int]*subscriber[T]
	nextID  int
	last    T
	hasLast bool
	closed  bool
}

type subscriber[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []T
	closed bool
	out    chan T
}

// NewBroadcaster returns an open broadcaster with no subscribers.
func NewBroadcaster[T any]() *Broadcaster[T] {
	return &Broadcaster[T]{subs: make(map[int]*subscriber[T])}
}

// Publish delivers v to all current subscribers and records it as the
// replay value for future subscribers. Publishing never blocks.
func (b *Broadcaster[T]) Publish(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.last = v
	b.hasLast = true
	for _, s := range b.subs {
		s.push(v)
	}
}

// Subscribe registers a new subscriber and returns its receive channel plus
// a cancel function. The channel is closed after cancel (or Close) once all
// buffered values have been delivered.
func (b *Broadcaster[T]) Subscribe() (<-chan T, func()) {
	b.mu.Lock()
	s := &subscriber[T]{out: make(chan T)}
	s.cond = sync.NewCond(&s.mu)
	if b.hasLast {
		s.queue = append(s.queue, b.last)
	}
	if b.closed {
		s.closed = true
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = s
	b.mu.Unlock()

	go s.pump()

	cancel := func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
		s.stop()
		// Drain anything the pump is still holding so it can exit even if
		// the consumer stopped reading.
		go func() {
			for range s.out {
			}
		}()
	}
	return s.out, cancel
}

// Close terminates all subscriber channels after their buffers drain.
func (b *Broadcaster[T]) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := make([]*subscriber[T], 0, len(b.subs))
	for _, s := range b.subs {
		subs = append(subs, s)
	}
	b.subs = make(map[int]*subscriber[T])
	b.mu.Unlock()

	for _, s := range subs {
		s.stop()
	}
}

func (s *subscriber[T]) push(v T) {
	s.mu.Lock()
	if !s.closed {
		s.queue = append(s.queue, v)
		s.cond.Signal()
	}
	s.mu.Unlock()
}

func (s *subscriber[T]) stop() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		s.cond.Signal()
	}
	s.mu.Unlock()
}

func (s *subscriber[T]) pump() {
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.cond.Wait()
		}
		if len(s.queue) == 0 && s.closed {
			s.mu.Unlock()
			close(s.out)
			return
		}
		v := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()
		s.out <- v
	}
}
