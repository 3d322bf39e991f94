package operator

// ShuffleOp transposes bytes so that byte j of every element is stored
// contiguously: [all byte 0s][all byte 1s]...[all byte N-1s]. Trailing
// bytes that do not form a whole element are left in place.
type ShuffleOp struct {
	elemSize int
}

// NewShuffle creates a shuffle operator for elements of elemSize bytes.
func NewShuffle(elemSize int) *ShuffleOp {
	return &ShuffleOp{elemSize: max(elemSize, 1)}
}

func (o *ShuffleOp) ID() ID {
	return Shuffle
}

func (o *ShuffleOp) Encode(input []byte) ([]byte, error) {
	return o.transpose(input, true), nil
}

func (o *ShuffleOp) Decode(input []byte) ([]byte, error) {
	return o.transpose(input, false), nil
}

func (o *ShuffleOp) transpose(input []byte, forward bool) []byte {
	n := len(input) / o.elemSize
	if o.elemSize == 1 || n == 0 {
		return input
	}

	output := make([]byte, len(input))
	for i := 0; i < n; i++ {
		for j := 0; j < o.elemSize; j++ {
			if forward {
				output[j*n+i] = input[i*o.elemSize+j]
			} else {
				output[i*o.elemSize+j] = input[j*n+i]
			}
		}
	}
	tail := n * o.elemSize
	copy(output[tail:], input[tail:])
	return output
}
