package oplog

import (
	"sync"
	"sync/atomic"
)

// MemoryLog implements Log in process memory.
// Useful for testing and single-node deployments.
type MemoryLog struct {
	mu     sync.Mutex
	cond   *sync.Cond
	ops    []Operation
	subs   map[*memoryLogSub]struct{}
	closed bool
}

// NewMemoryLog creates a new in-process log.
func NewMemoryLog() *MemoryLog {
	l := &MemoryLog{
		subs: make(map[*memoryLogSub]struct{}),
	}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// Append adds an operation to the log.
func (l *MemoryLog) Append(op Operation) (uint64, error) {
	if err := ValidateOperation(op); err != nil {
		return 0, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return 0, ErrClosed
	}

	op.Seq = uint64(len(l.ops)) + 1
	l.ops = append(l.ops, op)
	l.cond.Broadcast()
	return op.Seq, nil
}

// Replay invokes fn for stored operations with Seq >= fromSeq.
func (l *MemoryLog) Replay(fromSeq uint64, fn func(Operation) error) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	// Entries are immutable once appended, so the slice header is a
	// stable snapshot.
	snapshot := l.ops
	l.mu.Unlock()

	if fromSeq < 1 {
		fromSeq = 1
	}
	for _, op := range snapshot {
		if op.Seq < fromSeq {
			continue
		}
		if err := fn(op); err != nil {
			return err
		}
	}
	return nil
}

// Subscribe delivers operations from fromSeq in order.
func (l *MemoryLog) Subscribe(fromSeq uint64) (LogSubscription, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil, ErrClosed
	}
	if fromSeq < 1 {
		fromSeq = 1
	}

	sub := &memoryLogSub{
		log:  l,
		ch:   make(chan Operation, 64),
		done: make(chan struct{}),
		next: fromSeq,
	}
	l.subs[sub] = struct{}{}
	go sub.run()
	return sub, nil
}

// LastSeq returns the highest sequence number in the log.
func (l *MemoryLog) LastSeq() (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return 0, ErrClosed
	}
	return uint64(len(l.ops)), nil
}

// Close shuts down the log and ends all subscriptions.
func (l *MemoryLog) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	subs := make([]*memoryLogSub, 0, len(l.subs))
	for s := range l.subs {
		subs = append(subs, s)
	}
	l.subs = nil
	l.cond.Broadcast()
	l.mu.Unlock()

	for _, s := range subs {
		s.stop()
	}
	return nil
}

// memoryLogSub walks the shared slice at its own pace, waiting on the
// log's condition variable when caught up. This keeps delivery gapless
// without ever dropping for a slow consumer.
type memoryLogSub struct {
	log    *MemoryLog
	ch     chan Operation
	done   chan struct{}
	next   uint64
	closed atomic.Bool
}

func (s *memoryLogSub) run() {
	defer close(s.ch)
	for {
		s.log.mu.Lock()
		for !s.log.closed && !s.closed.Load() && s.next > uint64(len(s.log.ops)) {
			s.log.cond.Wait()
		}
		if s.log.closed || s.closed.Load() {
			s.log.mu.Unlock()
			return
		}
		op := s.log.ops[s.next-1]
		s.log.mu.Unlock()

		select {
		case s.ch <- op:
			s.next++
		case <-s.done:
			return
		}
	}
}

// Operations returns the operation channel.
func (s *memoryLogSub) Operations() <-chan Operation {
	return s.ch
}

// Unsubscribe cancels the subscription.
func (s *memoryLogSub) Unsubscribe() error {
	if !s.stop() {
		return nil
	}

	s.log.mu.Lock()
	delete(s.log.subs, s)
	s.log.cond.Broadcast()
	s.log.mu.Unlock()
	return nil
}

// stop marks the subscription closed and wakes its goroutine.
// Returns false when already stopped.
func (s *memoryLogSub) stop() bool {
	if s.closed.Swap(true) {
		return false
	}
	close(s.done)
	s.log.cond.Broadcast()
	return true
}
