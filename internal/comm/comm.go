// Package comm provides the process-group primitives the collection
// protocol runs on: rank identity, ordered point-to-point messaging, and
// the two reductions (gather, allreduce-min) the registry needs. Messages
// between a fixed sender/receiver pair are delivered in send order; the
// protocol depends on that and every implementation must preserve it.
package comm

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
)

// Communicator is one rank's handle on the process group.
type Communicator interface {
	Rank() int
	Size() int

	// Send delivers payload to the given rank. Sends between the same pair
	// arrive in the order they were issued.
	Send(ctx context.Context, to int, payload []byte) error

	// Recv blocks until the next message from the given rank arrives.
	Recv(ctx context.Context, from int) ([]byte, error)

	// GatherInt64 collects one value per rank at root, in rank order.
	// Returns the values on root, nil elsewhere.
	GatherInt64(ctx context.Context, root int, value int64) ([]int64, error)

	// AllreduceMinInt64 returns the minimum of all ranks' values, on every
	// rank.
	AllreduceMinInt64(ctx context.Context, value int64) (int64, error)

	Close() error
}

func encodeInt64(v int64) []byte {
	return binary.BigEndian.AppendUint64(nil, uint64(v))
}

func decodeInt64(b []byte) (int64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("%w: got %d bytes", ErrBadValue, len(b))
	}
	return int64(binary.BigEndian.Uint64(b)), nil
}

// gatherInt64 implements the gather over point-to-point sends: every
// non-root rank sends its value to root, root receives in rank order.
func gatherInt64(ctx context.Context, c Communicator, root int, value int64) ([]int64, error) {
	if c.Rank() != root {
		return nil, c.Send(ctx, root, encodeInt64(value))
	}
	values := make([]int64, c.Size())
	values[root] = value
	for r := 0; r < c.Size(); r++ {
		if r == root {
			continue
		}
		b, err := c.Recv(ctx, r)
		if err != nil {
			return nil, err
		}
		if values[r], err = decodeInt64(b); err != nil {
			return nil, err
		}
	}
	return values, nil
}

// allreduceMinInt64 is a gather to rank 0 followed by a broadcast of the
// minimum, which gives every rank the reduced value.
func allreduceMinInt64(ctx context.Context, c Communicator, value int64) (int64, error) {
	const root = 0
	values, err := gatherInt64(ctx, c, root, value)
	if err != nil {
		return 0, err
	}
	if c.Rank() != root {
		b, err := c.Recv(ctx, root)
		if err != nil {
			return 0, err
		}
		return decodeInt64(b)
	}
	min := values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
	}
	for r := 1; r < c.Size(); r++ {
		if err := c.Send(ctx, r, encodeInt64(min)); err != nil {
			return 0, err
		}
	}
	return min, nil
}

// queue is an unbounded FIFO of messages. The coordinator delivers to
// itself through one of these, so its send sequence can complete before its
// receive loop starts draining.
type queue struct {
	mu       sync.Mutex
	nonEmpty *sync.Cond
	items    [][]byte
	closed   bool
}

func newQueue() *queue {
	q := &queue{}
	q.nonEmpty = sync.NewCond(&q.mu)
	return q
}

func (q *queue) push(b []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	q.items = append(q.items, b)
	q.nonEmpty.Signal()
	return nil
}

func (q *queue) pop(ctx context.Context) ([]byte, error) {
	// The broadcast takes the lock so it cannot slip between the ctx check
	// below and the Wait.
	stop := context.AfterFunc(ctx, func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		q.nonEmpty.Broadcast()
	})
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 {
		if q.closed {
			return nil, ErrClosed
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		q.nonEmpty.Wait()
	}
	b := q.items[0]
	q.items = q.items[1:]
	return b, nil
}

func (q *queue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.nonEmpty.Broadcast()
}
