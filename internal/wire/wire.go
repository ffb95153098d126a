// Package wire defines the binary encoding used by the collection protocol.
// Every field is written explicitly: names and labels are length-prefixed
// UTF-8 bytes, integers and timestamps are fixed-width big-endian. Nothing
// on the wire is ever a raw copy of an in-memory structure.
package wire

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/tracefunnel/tracefunnel/internal/event"
)

// MaxNameLen bounds event names on the wire. The name length is carried in
// a single byte with 255 reserved.
const MaxNameLen = 254

const timesLen = 16

// Times is the first record each rank sends: its wall-clock window.
type Times struct {
	InitializedAt time.Time
	FinalizedAt   time.Time
}

func EncodeTimes(t Times) []byte {
	buf := make([]byte, timesLen)
	binary.BigEndian.PutUint64(buf[0:8], uint64(t.InitializedAt.UnixNano()))
	binary.BigEndian.PutUint64(buf[8:16], uint64(t.FinalizedAt.UnixNano()))
	return buf
}

func DecodeTimes(buf []byte) (Times, error) {
	if len(buf) != timesLen {
		return Times{}, fmt.Errorf("%w: times record is %d bytes, want %d", ErrTruncated, len(buf), timesLen)
	}
	return Times{
		InitializedAt: time.Unix(0, int64(binary.BigEndian.Uint64(buf[0:8]))),
		FinalizedAt:   time.Unix(0, int64(binary.BigEndian.Uint64(buf[8:16]))),
	}, nil
}

// Header describes one event aggregate: the bounded name, the accumulated
// statistics, and the element counts of the payload message that follows it.
type Header struct {
	Name           string
	Count          int64
	Total          time.Duration
	Max            time.Duration
	Min            time.Duration
	DataLen        uint32
	StateChangeLen uint32
}

func (h Header) Encode() ([]byte, error) {
	if len(h.Name) > MaxNameLen {
		return nil, fmt.Errorf("%w: %q is %d bytes", ErrNameTooLong, h.Name, len(h.Name))
	}
	buf := make([]byte, 0, 1+len(h.Name)+4*8+2*4)
	buf = append(buf, byte(len(h.Name)))
	buf = append(buf, h.Name...)
	buf = binary.BigEndian.AppendUint64(buf, uint64(h.Count))
	buf = binary.BigEndian.AppendUint64(buf, uint64(h.Total))
	buf = binary.BigEndian.AppendUint64(buf, uint64(h.Max))
	buf = binary.BigEndian.AppendUint64(buf, uint64(h.Min))
	buf = binary.BigEndian.AppendUint32(buf, h.DataLen)
	buf = binary.BigEndian.AppendUint32(buf, h.StateChangeLen)
	return buf, nil
}

func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < 1 {
		return Header{}, fmt.Errorf("%w: empty header", ErrTruncated)
	}
	nameLen := int(buf[0])
	if nameLen > MaxNameLen {
		return Header{}, fmt.Errorf("%w: header declares a %d-byte name", ErrNameTooLong, nameLen)
	}
	rest := buf[1:]
	if len(rest) != nameLen+4*8+2*4 {
		return Header{}, fmt.Errorf("%w: header is %d bytes, want %d", ErrTruncated, len(buf), 1+nameLen+4*8+2*4)
	}
	h := Header{Name: string(rest[:nameLen])}
	rest = rest[nameLen:]
	h.Count = int64(binary.BigEndian.Uint64(rest[0:8]))
	h.Total = time.Duration(binary.BigEndian.Uint64(rest[8:16]))
	h.Max = time.Duration(binary.BigEndian.Uint64(rest[16:24]))
	h.Min = time.Duration(binary.BigEndian.Uint64(rest[24:32]))
	h.DataLen = binary.BigEndian.Uint32(rest[32:36])
	h.StateChangeLen = binary.BigEndian.Uint32(rest[36:40])
	return h, nil
}

// EncodePayload writes the sample data followed by the state-change log.
// Each state change is encoded field by field: a length-prefixed label and
// a 64-bit timestamp.
func EncodePayload(data []int64, stateChanges []event.StateChange) ([]byte, error) {
	size := 8 * len(data)
	for _, sc := range stateChanges {
		if len(sc.State) > math.MaxUint16 {
			return nil, fmt.Errorf("%w: label is %d bytes", ErrLabelTooLong, len(sc.State))
		}
		size += 2 + len(sc.State) + 8
	}
	buf := make([]byte, 0, size)
	for _, d := range data {
		buf = binary.BigEndian.AppendUint64(buf, uint64(d))
	}
	for _, sc := range stateChanges {
		buf = binary.BigEndian.AppendUint16(buf, uint16(len(sc.State)))
		buf = append(buf, sc.State...)
		buf = binary.BigEndian.AppendUint64(buf, uint64(sc.Timestamp))
	}
	return buf, nil
}

// DecodePayload reads back exactly the element counts declared by the
// header. Any mismatch between declared counts and actual payload bytes is
// data corruption and fails the decode.
func DecodePayload(buf []byte, dataLen, stateChangeLen uint32) ([]int64, []event.StateChange, error) {
	if uint64(len(buf)) < 8*uint64(dataLen) {
		return nil, nil, fmt.Errorf("%w: payload holds %d bytes, header declares %d samples", ErrTruncated, len(buf), dataLen)
	}
	data := make([]int64, 0, dataLen)
	for i := uint32(0); i < dataLen; i++ {
		data = append(data, int64(binary.BigEndian.Uint64(buf[:8])))
		buf = buf[8:]
	}
	stateChanges := make([]event.StateChange, 0, stateChangeLen)
	for i := uint32(0); i < stateChangeLen; i++ {
		if len(buf) < 2 {
			return nil, nil, fmt.Errorf("%w: payload ends inside state change %d", ErrTruncated, i)
		}
		labelLen := int(binary.BigEndian.Uint16(buf[:2]))
		buf = buf[2:]
		if len(buf) < labelLen+8 {
			return nil, nil, fmt.Errorf("%w: payload ends inside state change %d", ErrTruncated, i)
		}
		stateChanges = append(stateChanges, event.StateChange{
			State:     string(buf[:labelLen]),
			Timestamp: time.Duration(binary.BigEndian.Uint64(buf[labelLen : labelLen+8])),
		})
		buf = buf[labelLen+8:]
	}
	if len(buf) != 0 {
		return nil, nil, fmt.Errorf("%w: %d bytes left after declared contents", ErrTrailingData, len(buf))
	}
	return data, stateChanges, nil
}
