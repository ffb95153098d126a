package registry

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tracefunnel/tracefunnel/internal/event"
	"github.com/tracefunnel/tracefunnel/internal/wire"
)

// collect runs the all-to-one gather. Every rank, the coordinator included,
// executes the same send sequence: the times record, then one header and
// one payload message per event in sorted-name order. The coordinator then
// drains rank after rank in increasing order, relying on per-pair FIFO
// delivery to match headers with payloads. Messages the coordinator sends
// to itself sit in an in-memory queue, so sending here cannot deadlock
// against the receive loop below.
func (r *Registry) collect(ctx context.Context) error {
	started := time.Now()

	// The coordinator needs to know how many header/payload pairs to expect
	// from each rank before any of them arrive.
	eventsPerRank, err := r.comm.GatherInt64(ctx, Coordinator, int64(r.local.Len()))
	if err != nil {
		return fmt.Errorf("gathering event counts: %w", err)
	}

	if err := r.sendLocal(ctx); err != nil {
		return err
	}

	if r.comm.Rank() == Coordinator {
		if err := r.receiveAll(ctx, eventsPerRank); err != nil {
			return err
		}
	}

	collectionSeconds.Set(time.Since(started).Seconds())
	return nil
}

func (r *Registry) sendLocal(ctx context.Context) error {
	times := wire.EncodeTimes(wire.Times{
		InitializedAt: r.local.InitializedAt(),
		FinalizedAt:   r.local.FinalizedAt(),
	})
	if err := r.send(ctx, times); err != nil {
		return fmt.Errorf("sending times record: %w", err)
	}

	for _, name := range r.local.Names() {
		ed, _ := r.local.Event(name)
		header, err := wire.Header{
			Name:           name,
			Count:          ed.Count(),
			Total:          ed.Total(),
			Max:            ed.Max(),
			Min:            ed.Min(),
			DataLen:        uint32(len(ed.Data())),
			StateChangeLen: uint32(len(ed.StateChanges())),
		}.Encode()
		if err != nil {
			return fmt.Errorf("encoding header for %q: %w", name, err)
		}
		payload, err := wire.EncodePayload(ed.Data(), ed.StateChanges())
		if err != nil {
			return fmt.Errorf("encoding payload for %q: %w", name, err)
		}
		if err := r.send(ctx, header); err != nil {
			return fmt.Errorf("sending header for %q: %w", name, err)
		}
		if err := r.send(ctx, payload); err != nil {
			return fmt.Errorf("sending payload for %q: %w", name, err)
		}
	}
	return nil
}

func (r *Registry) send(ctx context.Context, msg []byte) error {
	if err := r.comm.Send(ctx, Coordinator, msg); err != nil {
		return err
	}
	collectionBytesSent.Add(float64(len(msg)))
	return nil
}

func (r *Registry) receiveAll(ctx context.Context, eventsPerRank []int64) error {
	r.global = make([]*event.RankData, 0, r.comm.Size())
	for rank := 0; rank < r.comm.Size(); rank++ {
		rd, err := r.receiveRank(ctx, rank, eventsPerRank[rank])
		if err != nil {
			r.global = nil
			return err
		}
		r.global = append(r.global, rd)
	}
	r.logger.Debug("Collection complete", zap.Int("ranks", len(r.global)))
	return nil
}

func (r *Registry) receiveRank(ctx context.Context, rank int, events int64) (*event.RankData, error) {
	buf, err := r.recv(ctx, rank)
	if err != nil {
		return nil, fmt.Errorf("receiving times record of rank %d: %w", rank, err)
	}
	times, err := wire.DecodeTimes(buf)
	if err != nil {
		return nil, fmt.Errorf("times record of rank %d: %w", rank, err)
	}
	rd := event.NewRankData(rank)
	rd.SetWindow(times.InitializedAt, times.FinalizedAt)

	for i := int64(0); i < events; i++ {
		buf, err := r.recv(ctx, rank)
		if err != nil {
			return nil, fmt.Errorf("receiving header %d of rank %d: %w", i, rank, err)
		}
		header, err := wire.DecodeHeader(buf)
		if err != nil {
			return nil, fmt.Errorf("header %d of rank %d: %w", i, rank, err)
		}
		buf, err = r.recv(ctx, rank)
		if err != nil {
			return nil, fmt.Errorf("receiving payload for %q of rank %d: %w", header.Name, rank, err)
		}
		data, stateChanges, err := wire.DecodePayload(buf, header.DataLen, header.StateChangeLen)
		if err != nil {
			return nil, fmt.Errorf("payload for %q of rank %d: %w", header.Name, rank, err)
		}
		rd.Add(event.Restore(header.Name, rank, header.Count,
			header.Total, header.Max, header.Min, data, stateChanges))
	}
	return rd, nil
}

func (r *Registry) recv(ctx context.Context, from int) ([]byte, error) {
	buf, err := r.comm.Recv(ctx, from)
	if err != nil {
		return nil, err
	}
	collectionBytesReceived.Add(float64(len(buf)))
	return buf, nil
}
