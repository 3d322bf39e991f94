package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/go-stepio/internal/dtype"
	"github.com/robert-malhotra/go-stepio/transport"
)

func TestSummarize(t *testing.T) {
	commits := map[int][]Commit{
		0: {{Writer: 0}, {Writer: 1}},
		1: {{Writer: 0}, {Writer: 1, Aborted: true}},
		2: {{Writer: 1}},
		3: {{Writer: 0}, {Writer: 1}},
	}

	st := Summarize(2, commits, 1)
	assert.Equal(t, []int{0, 3}, st.Steps)
	assert.Equal(t, 2, st.Settled, "step 2 is still missing writer 0")
	assert.False(t, st.Finished)

	commits[2] = append(commits[2], Commit{Writer: 0})
	st = Summarize(2, commits, 2)
	assert.Equal(t, []int{0, 2, 3}, st.Steps)
	assert.Equal(t, 4, st.Settled)
	assert.True(t, st.Finished)
}

func TestSummarizeDuplicateCommits(t *testing.T) {
	st := Summarize(2, map[int][]Commit{0: {{Writer: 0}, {Writer: 0}}}, 0)
	assert.Empty(t, st.Steps, "one writer committing twice does not complete a step")
	assert.Zero(t, st.Settled)
}

func TestSummarizeNoWriters(t *testing.T) {
	st := Summarize(0, nil, 0)
	assert.Equal(t, Status{}, st)
}

func TestCompatible(t *testing.T) {
	a := Variable{Name: "t", Type: dtype.Float64, Shape: ShapeGlobalArray, Dims: []uint64{8}}
	b := a
	assert.True(t, a.Compatible(b))

	b.Dims = []uint64{9}
	assert.False(t, a.Compatible(b))

	b = a
	b.Type = dtype.Float32
	assert.False(t, a.Compatible(b))

	l := Variable{Name: "l", Type: dtype.Int32, Shape: ShapeLocalArray}
	assert.True(t, l.Compatible(Variable{Name: "l", Type: dtype.Int32, Shape: ShapeLocalArray, Dims: []uint64{3}}))
}

func TestRecordCodec(t *testing.T) {
	in := []Block{{
		Variable: "x",
		Step:     3,
		WriterID: 1,
		Type:     dtype.Int16,
		Count:    []uint64{4},
		Locators: []transport.Locator{{Transport: "memory:a", Key: "k", Length: 10}},
		Min:      dtype.Encode(nil, []int16{-2}),
	}}
	data, err := EncodeRecord(in)
	require.NoError(t, err)

	out, err := DecodeRecord[[]Block](data)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, in[0].Locators, out[0].Locators)
	assert.Equal(t, in[0].Min, out[0].Min)
}

func TestSortBlocks(t *testing.T) {
	blocks := []Block{
		{Variable: "b", WriterID: 1},
		{Variable: "a", WriterID: 1},
		{Variable: "a", WriterID: 0, BlockID: 1},
		{Variable: "a", WriterID: 0},
	}
	SortBlocks(blocks)
	assert.Equal(t, 0, blocks[0].WriterID)
	assert.Equal(t, 0, blocks[0].BlockID)
	assert.Equal(t, 1, blocks[1].BlockID)
	assert.Equal(t, "a", blocks[2].Variable)
	assert.Equal(t, "b", blocks[3].Variable)
}
