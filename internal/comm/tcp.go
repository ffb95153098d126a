package comm

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Anything larger than this is treated as stream corruption rather than a
// legitimate payload.
const maxFrameLen = 64 << 20

const dialRetryInterval = 200 * time.Millisecond

// Config describes one rank's place in a TCP group. The group is a star:
// the coordinator (rank 0) listens and every other rank dials it, which is
// the only topology the collection protocol uses. One TCP connection per
// pair gives the required per-sender FIFO for free.
type Config struct {
	Rank            int
	Size            int
	CoordinatorAddr string
}

// TCP is a communicator over length-prefixed frames on TCP connections.
type TCP struct {
	cfg    Config
	logger *zap.Logger

	ln    net.Listener
	peers []*tcpPeer
	self  *queue
}

type tcpPeer struct {
	conn net.Conn
	rd   *bufio.Reader
	wr   *bufio.Writer
	wmu  sync.Mutex
}

func newTCP(cfg Config, logger *zap.Logger) *TCP {
	return &TCP{
		cfg:    cfg,
		logger: logger.Named("comm"),
		peers:  make([]*tcpPeer, cfg.Size),
		self:   newQueue(),
	}
}

// Listen binds the coordinator's listener. Accept must be called afterwards
// to complete the group; the two-step split lets callers learn the bound
// address (e.g. with an ephemeral port) before workers dial in.
func Listen(cfg Config, logger *zap.Logger) (*TCP, error) {
	if cfg.Rank != 0 {
		return nil, fmt.Errorf("rank %d cannot listen, only the coordinator does", cfg.Rank)
	}
	ln, err := net.Listen("tcp", cfg.CoordinatorAddr)
	if err != nil {
		return nil, fmt.Errorf("binding coordinator listener: %w", err)
	}
	t := newTCP(cfg, logger)
	t.ln = ln
	t.logger.Info("Coordinator listening", zap.String("addr", ln.Addr().String()), zap.Int("size", cfg.Size))
	return t, nil
}

// Addr returns the coordinator's bound address.
func (t *TCP) Addr() string { return t.ln.Addr().String() }

// Accept waits for every worker rank to connect and identify itself.
func (t *TCP) Accept(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { t.ln.Close() })
	defer stop()

	for connected := 0; connected < t.cfg.Size-1; connected++ {
		conn, err := t.ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("accepting peer: %w", err)
		}
		p := &tcpPeer{conn: conn, rd: bufio.NewReader(conn), wr: bufio.NewWriter(conn)}
		hello, err := readFrame(p.rd)
		if err != nil {
			conn.Close()
			return fmt.Errorf("reading hello: %w", err)
		}
		rank, err := decodeInt64(hello)
		if err != nil || rank <= 0 || rank >= int64(t.cfg.Size) {
			conn.Close()
			return fmt.Errorf("%w: rank %d", ErrBadHello, rank)
		}
		if t.peers[rank] != nil {
			conn.Close()
			return fmt.Errorf("%w: rank %d connected twice", ErrBadHello, rank)
		}
		t.peers[rank] = p
		t.logger.Debug("Peer connected", zap.Int64("rank", rank), zap.String("addr", conn.RemoteAddr().String()))
	}
	t.logger.Info("Group complete", zap.Int("size", t.cfg.Size))
	return nil
}

// Dial connects a worker rank to the coordinator, retrying until the
// coordinator is up or the context ends, then identifies itself.
func Dial(ctx context.Context, cfg Config, logger *zap.Logger) (*TCP, error) {
	if cfg.Rank == 0 {
		return nil, errors.New("the coordinator listens, it does not dial")
	}
	t := newTCP(cfg, logger)

	var d net.Dialer
	var conn net.Conn
	for {
		var err error
		conn, err = d.DialContext(ctx, "tcp", cfg.CoordinatorAddr)
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		t.logger.Debug("Coordinator not reachable yet, retrying", zap.Error(err))
		select {
		case <-time.After(dialRetryInterval):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	p := &tcpPeer{conn: conn, rd: bufio.NewReader(conn), wr: bufio.NewWriter(conn)}
	t.peers[0] = p
	if err := t.writeFrame(p, encodeInt64(int64(cfg.Rank))); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sending hello: %w", err)
	}
	t.logger.Info("Connected to coordinator", zap.String("addr", cfg.CoordinatorAddr), zap.Int("rank", cfg.Rank))
	return t, nil
}

func (t *TCP) Rank() int { return t.cfg.Rank }

func (t *TCP) Size() int { return t.cfg.Size }

func (t *TCP) Send(ctx context.Context, to int, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if to == t.cfg.Rank {
		return t.self.push(append([]byte(nil), payload...))
	}
	if to < 0 || to >= t.cfg.Size || t.peers[to] == nil {
		return fmt.Errorf("%w: %d -> %d", ErrNoRoute, t.cfg.Rank, to)
	}
	return t.writeFrame(t.peers[to], payload)
}

func (t *TCP) Recv(ctx context.Context, from int) ([]byte, error) {
	if from == t.cfg.Rank {
		return t.self.pop(ctx)
	}
	if from < 0 || from >= t.cfg.Size || t.peers[from] == nil {
		return nil, fmt.Errorf("%w: %d <- %d", ErrNoRoute, t.cfg.Rank, from)
	}
	p := t.peers[from]
	// Cancelling the context aborts the blocking read via the deadline.
	stop := context.AfterFunc(ctx, func() { p.conn.SetReadDeadline(time.Now()) })
	defer stop()
	b, err := readFrame(p.rd)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("receiving from rank %d: %w", from, err)
	}
	return b, nil
}

func (t *TCP) GatherInt64(ctx context.Context, root int, value int64) ([]int64, error) {
	return gatherInt64(ctx, t, root, value)
}

func (t *TCP) AllreduceMinInt64(ctx context.Context, value int64) (int64, error) {
	return allreduceMinInt64(ctx, t, value)
}

func (t *TCP) Close() error {
	var firstErr error
	if t.ln != nil {
		firstErr = t.ln.Close()
	}
	for _, p := range t.peers {
		if p == nil {
			continue
		}
		p.wmu.Lock()
		p.wr.Flush()
		p.wmu.Unlock()
		if err := p.conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	t.self.close()
	return firstErr
}

func (t *TCP) writeFrame(p *tcpPeer, payload []byte) error {
	if len(payload) > maxFrameLen {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(payload))
	}
	p.wmu.Lock()
	defer p.wmu.Unlock()
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := p.wr.Write(lenBuf[:]); err != nil {
		return err
	}
	if _, err := p.wr.Write(payload); err != nil {
		return err
	}
	return p.wr.Flush()
}

func readFrame(rd *bufio.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(rd, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > maxFrameLen {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(rd, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
