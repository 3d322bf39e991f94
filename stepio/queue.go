package stepio

import (
	"context"
	"slices"

	"github.com/robert-malhotra/go-stepio/internal/dtype"
	"github.com/robert-malhotra/go-stepio/internal/layout"
)

// payload is the encoded content of one block.
type payload struct {
	data     []byte
	min, max []byte
	elements uint64
}

func encodePayload[T Element](data []T) payload {
	p := payload{data: dtype.Encode(nil, data), elements: uint64(len(data))}
	if lo, hi, ok := dtype.MinMax(data); ok {
		p.min = dtype.Encode(nil, []T{lo})
		p.max = dtype.Encode(nil, []T{hi})
	}
	return p
}

// putRequest is a queued block. encode runs at materialisation; for
// copies it returns the bytes captured at Put time, for spans it encodes
// the span's current content.
type putRequest struct {
	v      *variable
	seq    uint64
	box    layout.Box
	encode func() payload
}

// getRequest is a queued read; fill copies the selection into the
// caller's buffer.
type getRequest struct {
	v    *variable
	seq  uint64
	fill func(ctx context.Context) error
}

// queue holds the deferred requests of the current step. Requests are
// materialised ordered by variable registration order and, within a
// variable, by issue order.
type queue struct {
	seq  uint64
	puts []putRequest
	gets []getRequest
}

func (q *queue) next() uint64 {
	q.seq++
	return q.seq
}

func (q *queue) addPut(r putRequest) {
	r.seq = q.next()
	q.puts = append(q.puts, r)
}

func (q *queue) addGet(r getRequest) {
	r.seq = q.next()
	q.gets = append(q.gets, r)
}

// takePuts removes and returns the queued puts in materialisation order.
func (q *queue) takePuts() []putRequest {
	out := q.puts
	q.puts = nil
	slices.SortStableFunc(out, func(a, b putRequest) int {
		return order(a.v, a.seq, b.v, b.seq)
	})
	return out
}

// takeGets removes and returns the queued gets in materialisation order.
func (q *queue) takeGets() []getRequest {
	out := q.gets
	q.gets = nil
	slices.SortStableFunc(out, func(a, b getRequest) int {
		return order(a.v, a.seq, b.v, b.seq)
	})
	return out
}

func order(va *variable, sa uint64, vb *variable, sb uint64) int {
	if va.order != vb.order {
		return va.order - vb.order
	}
	switch {
	case sa < sb:
		return -1
	case sa > sb:
		return 1
	}
	return 0
}
