package operator

import (
	"fmt"
)

// MaxOperators bounds a pipeline so the skip mask fits in 32 bits.
const MaxOperators = 32

// Pipeline is an ordered list of operators.
type Pipeline struct {
	specs []Spec
	ops   []Operator
}

// NewPipeline creates a pipeline for elements of elemSize bytes.
func NewPipeline(specs []Spec, elemSize int) (*Pipeline, error) {
	if len(specs) > MaxOperators {
		return nil, fmt.Errorf("pipeline has %d operators, limit is %d", len(specs), MaxOperators)
	}

	p := &Pipeline{
		specs: specs,
		ops:   make([]Operator, 0, len(specs)),
	}
	for _, spec := range specs {
		op, err := New(spec, elemSize)
		if err != nil {
			return nil, fmt.Errorf("creating operator %d: %w", spec.ID, err)
		}
		p.ops = append(p.ops, op)
	}
	return p, nil
}

// Encode applies every operator in order. The returned mask has bit i set
// when operator i was skipped because it did not shrink its input.
func (p *Pipeline) Encode(input []byte) ([]byte, uint32, error) {
	data := input
	var mask uint32
	for i, op := range p.ops {
		out, err := op.Encode(data)
		if err != nil {
			return nil, 0, fmt.Errorf("operator %s encode: %w", op.ID(), err)
		}
		if compressor(op.ID()) && len(out) >= len(data) {
			mask |= 1 << uint(i)
			continue
		}
		data = out
	}
	return data, mask, nil
}

// Decode applies the operators in reverse order, skipping those whose bit
// is set in mask.
func (p *Pipeline) Decode(input []byte, mask uint32) ([]byte, error) {
	data := input
	for i := len(p.ops) - 1; i >= 0; i-- {
		if mask&(1<<uint(i)) != 0 {
			continue
		}
		var err error
		data, err = p.ops[i].Decode(data)
		if err != nil {
			return nil, fmt.Errorf("operator %s decode: %w", p.ops[i].ID(), err)
		}
	}
	return data, nil
}

// Specs returns the specs the pipeline was built from.
func (p *Pipeline) Specs() []Spec {
	return p.specs
}

// Empty returns true if the pipeline has no operators.
func (p *Pipeline) Empty() bool {
	return len(p.ops) == 0
}

// Len returns the number of operators in the pipeline.
func (p *Pipeline) Len() int {
	return len(p.ops)
}

func compressor(id ID) bool {
	return id == Deflate || id == Zstd
}
