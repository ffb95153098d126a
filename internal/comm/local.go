package comm

import "context"

// Local is an in-process communicator. NewGroup wires size ranks together
// over unbounded per-pair queues; each rank runs in its own goroutine.
// Backs the tests and single-process runs.
type Local struct {
	rank  int
	group *localGroup
}

type localGroup struct {
	size int
	// queues[to][from], one FIFO per directed pair
	queues [][]*queue
}

// NewGroup creates an in-process group of the given size and returns one
// communicator per rank.
func NewGroup(size int) []*Local {
	g := &localGroup{size: size, queues: make([][]*queue, size)}
	for to := range g.queues {
		g.queues[to] = make([]*queue, size)
		for from := range g.queues[to] {
			g.queues[to][from] = newQueue()
		}
	}
	ranks := make([]*Local, size)
	for r := range ranks {
		ranks[r] = &Local{rank: r, group: g}
	}
	return ranks
}

func (l *Local) Rank() int { return l.rank }

func (l *Local) Size() int { return l.group.size }

func (l *Local) Send(ctx context.Context, to int, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if to < 0 || to >= l.group.size {
		return ErrNoRoute
	}
	// Copy so the sender may reuse its buffer.
	msg := append([]byte(nil), payload...)
	return l.group.queues[to][l.rank].push(msg)
}

func (l *Local) Recv(ctx context.Context, from int) ([]byte, error) {
	if from < 0 || from >= l.group.size {
		return nil, ErrNoRoute
	}
	return l.group.queues[l.rank][from].pop(ctx)
}

func (l *Local) GatherInt64(ctx context.Context, root int, value int64) ([]int64, error) {
	return gatherInt64(ctx, l, root, value)
}

func (l *Local) AllreduceMinInt64(ctx context.Context, value int64) (int64, error) {
	return allreduceMinInt64(ctx, l, value)
}

// Close shuts the queues this rank receives on.
func (l *Local) Close() error {
	for _, q := range l.group.queues[l.rank] {
		q.close()
	}
	return nil
}
