package depthstream

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// MaxDatagramSize is the largest datagram written by the server.
const MaxDatagramSize = 60000

// maxPayloadSize leaves room for the datagram header.
const maxPayloadSize = MaxDatagramSize - 64

// maxChunkCount is the number of chunks of the largest accepted frame.
const maxChunkCount = maxFrameSize/maxPayloadSize + 1

const (
	fieldSeq     protowire.Number = 1
	fieldIndex   protowire.Number = 2
	fieldCount   protowire.Number = 3
	fieldPayload protowire.Number = 4
)

var ErrStaleChunk = errors.New("stale chunk")

// Chunk is one datagram of a compressed frame.
type Chunk struct {
	Seq     uint64
	Index   int
	Count   int
	Payload []byte
}

func (c Chunk) Encode(b []byte) []byte {
	b = protowire.AppendTag(b, fieldSeq, protowire.VarintType)
	b = protowire.AppendVarint(b, c.Seq)
	b = protowire.AppendTag(b, fieldIndex, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(c.Index))
	b = protowire.AppendTag(b, fieldCount, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(c.Count))
	b = protowire.AppendTag(b, fieldPayload, protowire.BytesType)
	return protowire.AppendBytes(b, c.Payload)
}

// DecodeChunk decodes a datagram. The payload aliases b.
func DecodeChunk(b []byte) (Chunk, error) {
	var c Chunk

	err := walk(b, func(f field) error {
		switch f.num {
		case fieldSeq:
			c.Seq = f.value
		case fieldIndex:
			c.Index = int(f.value)
		case fieldCount:
			c.Count = int(f.value)
		case fieldPayload:
			c.Payload = f.bytes
		}
		return nil
	})
	if err != nil {
		return Chunk{}, err
	}

	if err := c.validate(); err != nil {
		return Chunk{}, err
	}

	return c, nil
}

// validate bounds the chunk count so that a datagram cannot make the
// reassembler allocate more than a frame's worth of slots.
func (c Chunk) validate() error {
	if c.Count <= 0 || c.Count > maxChunkCount || c.Index < 0 || c.Index >= c.Count {
		return fmt.Errorf("%w: chunk %d of %d", ErrMalformed, c.Index, c.Count)
	}
	return nil
}

// Split cuts data into chunks of at most maxPayloadSize bytes.
func Split(seq uint64, data []byte) []Chunk {
	count := (len(data) + maxPayloadSize - 1) / maxPayloadSize
	if count == 0 {
		count = 1
	}

	chunks := make([]Chunk, 0, count)
	for idx := 0; idx < count; idx++ {
		end := min((idx+1)*maxPayloadSize, len(data))
		chunks = append(chunks, Chunk{
			Seq:     seq,
			Index:   idx,
			Count:   count,
			Payload: data[idx*maxPayloadSize : end],
		})
	}

	return chunks
}

// Reassembler joins the chunks of the most recent frame. Chunks of a newer
// frame discard an incomplete older one.
type Reassembler struct {
	started  bool
	seq      uint64
	parts    [][]byte
	received int
}

// Add stores c and returns the whole frame once its last chunk arrived.
// Chunks older than the current frame are rejected with ErrStaleChunk.
func (r *Reassembler) Add(c Chunk) ([]byte, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}

	switch {
	case !r.started || c.Seq > r.seq:
		r.reset(c.Seq, c.Count)
	case c.Seq < r.seq:
		return nil, fmt.Errorf("%w: sequence %d, expecting %d", ErrStaleChunk, c.Seq, r.seq)
	case r.parts == nil:
		return nil, fmt.Errorf("%w: sequence %d already complete", ErrStaleChunk, c.Seq)
	case c.Count != len(r.parts):
		return nil, fmt.Errorf("%w: sequence %d announced %d chunks, then %d", ErrMalformed, c.Seq, len(r.parts), c.Count)
	}

	if r.parts[c.Index] == nil {
		r.parts[c.Index] = append([]byte{}, c.Payload...)
		r.received++
	}

	if r.received < len(r.parts) {
		return nil, nil
	}

	size := 0
	for _, p := range r.parts {
		size += len(p)
	}
	frame := make([]byte, 0, size)
	for _, p := range r.parts {
		frame = append(frame, p...)
	}

	// The frame is delivered once.
	r.parts = nil

	return frame, nil
}

// Pending reports whether an incomplete frame is being assembled.
func (r *Reassembler) Pending() bool {
	return r.parts != nil && r.received > 0
}

func (r *Reassembler) reset(seq uint64, count int) {
	r.started = true
	r.seq = seq
	r.parts = make([][]byte, count)
	r.received = 0
}
