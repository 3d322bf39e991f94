package badger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/go-stepio/catalog"
	"github.com/robert-malhotra/go-stepio/catalog/catalogtest"
	"github.com/robert-malhotra/go-stepio/internal/dtype"
)

func TestConformance(t *testing.T) {
	catalogtest.Run(t, func(t *testing.T) catalog.Catalog {
		c, err := OpenInMemory()
		require.NoError(t, err)
		t.Cleanup(func() { _ = c.Close() })
		return c
	})
}

func TestPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	c, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, c.DefineVariables(ctx, "ds", []catalog.Variable{{Name: "x", Type: dtype.Int64, Shape: catalog.ShapeValue}}))
	require.NoError(t, c.CommitStep(ctx, "ds", 0, 1, 0, []catalog.Block{{Variable: "x", Type: dtype.Int64, IsValue: true}}))
	require.NoError(t, c.Finish(ctx, "ds", 0, 1))
	require.NoError(t, c.Close())

	c, err = Open(dir)
	require.NoError(t, err)
	defer c.Close()

	st, err := c.Status(ctx, "ds")
	require.NoError(t, err)
	assert.Equal(t, []int{0}, st.Steps)
	assert.True(t, st.Finished)

	blocks, err := c.Step(ctx, "ds", 0)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.True(t, blocks[0].IsValue)
}

func TestDatasetNamesDoNotCollide(t *testing.T) {
	ctx := context.Background()
	c, err := OpenInMemory()
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.DefineVariables(ctx, "a", []catalog.Variable{{Name: "x", Type: dtype.Int8}}))
	require.NoError(t, c.DefineVariables(ctx, "a/var/y", []catalog.Variable{{Name: "z", Type: dtype.Int8}}))

	vars, err := c.Variables(ctx, "a")
	require.NoError(t, err)
	require.Len(t, vars, 1)
	assert.Equal(t, "x", vars[0].Name)
}
