// Package catalogtest holds the behaviour every catalog backend must show.
package catalogtest

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/go-stepio/catalog"
	"github.com/robert-malhotra/go-stepio/internal/dtype"
	"github.com/robert-malhotra/go-stepio/transport"
)

// Factory returns a fresh, empty catalog.
type Factory func(t *testing.T) catalog.Catalog

// Run runs the conformance suite against a backend.
func Run(t *testing.T, newCatalog Factory) {
	t.Run("Variables", func(t *testing.T) { testVariables(t, newCatalog(t)) })
	t.Run("CollectiveVisibility", func(t *testing.T) { testCollectiveVisibility(t, newCatalog(t)) })
	t.Run("AbortedStep", func(t *testing.T) { testAbortedStep(t, newCatalog(t)) })
	t.Run("Finish", func(t *testing.T) { testFinish(t, newCatalog(t)) })
	t.Run("UnknownDataset", func(t *testing.T) { testUnknownDataset(t, newCatalog(t)) })
	t.Run("ConcurrentWriters", func(t *testing.T) { testConcurrentWriters(t, newCatalog(t)) })
	t.Run("DuplicateCommit", func(t *testing.T) { testDuplicateCommit(t, newCatalog(t)) })
}

func block(variable string, step, writer int) catalog.Block {
	return catalog.Block{
		Variable: variable,
		Step:     step,
		WriterID: writer,
		Type:     dtype.Float64,
		Shape:    []uint64{8},
		Start:    []uint64{uint64(writer) * 4},
		Count:    []uint64{4},
		Locators: []transport.Locator{{Transport: "memory:t", Key: variable, Length: 64}},
		Min:      dtype.Encode(nil, []float64{1}),
		Max:      dtype.Encode(nil, []float64{9}),
	}
}

func testVariables(t *testing.T, c catalog.Catalog) {
	ctx := context.Background()
	vars := []catalog.Variable{
		{Name: "temp", Type: dtype.Float64, Shape: catalog.ShapeGlobalArray, Dims: []uint64{8}},
		{Name: "label", Type: dtype.String, Shape: catalog.ShapeValue},
	}
	require.NoError(t, c.DefineVariables(ctx, "ds", vars))
	require.NoError(t, c.DefineVariables(ctx, "ds", vars[:1]), "compatible redefinition")

	got, err := c.Variables(ctx, "ds")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "label", got[0].Name)
	assert.Equal(t, []uint64{8}, got[1].Dims)

	conflicting := vars[0]
	conflicting.Type = dtype.Int32
	err = c.DefineVariables(ctx, "ds", []catalog.Variable{conflicting})
	assert.ErrorIs(t, err, catalog.ErrConflict)

	other, err := c.Variables(ctx, "other")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func testCollectiveVisibility(t *testing.T, c catalog.Catalog) {
	ctx := context.Background()

	require.NoError(t, c.CommitStep(ctx, "ds", 0, 2, 0, []catalog.Block{block("temp", 0, 0)}))

	st, err := c.Status(ctx, "ds")
	require.NoError(t, err)
	assert.Equal(t, 2, st.Writers)
	assert.Empty(t, st.Steps, "step 0 waits for writer 1")

	_, err = c.Step(ctx, "ds", 0)
	assert.ErrorIs(t, err, catalog.ErrNotFound)

	require.NoError(t, c.CommitStep(ctx, "ds", 1, 2, 0, []catalog.Block{block("temp", 0, 1)}))

	st, err = c.Status(ctx, "ds")
	require.NoError(t, err)
	assert.Equal(t, []int{0}, st.Steps)
	assert.Equal(t, 1, st.Settled)

	blocks, err := c.Step(ctx, "ds", 0)
	require.NoError(t, err)
	require.Len(t, blocks, 2)
	assert.Equal(t, 0, blocks[0].WriterID)
	assert.Equal(t, 1, blocks[1].WriterID)
	assert.Equal(t, []uint64{4}, blocks[1].Start)
	assert.Equal(t, "temp", blocks[1].Locators[0].Key)
	assert.Equal(t, dtype.Encode(nil, []float64{9}), blocks[1].Max)
}

func testAbortedStep(t *testing.T, c catalog.Catalog) {
	ctx := context.Background()

	require.NoError(t, c.CommitStep(ctx, "ds", 0, 1, 0, []catalog.Block{block("x", 0, 0)}))
	require.NoError(t, c.AbortStep(ctx, "ds", 0, 1, 1))
	require.NoError(t, c.CommitStep(ctx, "ds", 0, 1, 2, []catalog.Block{block("x", 2, 0)}))

	st, err := c.Status(ctx, "ds")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2}, st.Steps)
	assert.Equal(t, 3, st.Settled)

	_, err = c.Step(ctx, "ds", 1)
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func testFinish(t *testing.T, c catalog.Catalog) {
	ctx := context.Background()

	require.NoError(t, c.Finish(ctx, "ds", 0, 2))
	st, err := c.Status(ctx, "ds")
	require.NoError(t, err)
	assert.False(t, st.Finished)

	require.NoError(t, c.Finish(ctx, "ds", 0, 2), "finishing twice is harmless")
	require.NoError(t, c.Finish(ctx, "ds", 1, 2))
	st, err = c.Status(ctx, "ds")
	require.NoError(t, err)
	assert.True(t, st.Finished)
}

func testUnknownDataset(t *testing.T, c catalog.Catalog) {
	ctx := context.Background()

	st, err := c.Status(ctx, "missing")
	require.NoError(t, err)
	assert.Equal(t, catalog.Status{}, st)

	_, err = c.Step(ctx, "missing", 0)
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func testConcurrentWriters(t *testing.T, c catalog.Catalog) {
	ctx := context.Background()
	const writers, steps = 4, 5

	var wg sync.WaitGroup
	errs := make(chan error, writers*(steps+1))
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for s := 0; s < steps; s++ {
				errs <- c.CommitStep(ctx, "ds", w, writers, s, []catalog.Block{block("v", s, w)})
			}
			errs <- c.Finish(ctx, "ds", w, writers)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	st, err := c.Status(ctx, "ds")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, st.Steps)
	assert.True(t, st.Finished)

	blocks, err := c.Step(ctx, "ds", 4)
	require.NoError(t, err)
	require.Len(t, blocks, writers)
	for i, b := range blocks {
		assert.Equal(t, i, b.WriterID)
	}
}

func testDuplicateCommit(t *testing.T, c catalog.Catalog) {
	ctx := context.Background()
	require.NoError(t, c.CommitStep(ctx, "ds", 0, 1, 0, nil))
	err := c.CommitStep(ctx, "ds", 0, 1, 0, nil)
	assert.ErrorIs(t, err, catalog.ErrConflict)

	err = c.CommitStep(ctx, "ds", 0, 3, 1, nil)
	assert.ErrorIs(t, err, catalog.ErrConflict, "writer count is fixed per dataset")
}
