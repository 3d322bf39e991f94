package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/go-stepio/catalog"
	"github.com/robert-malhotra/go-stepio/catalog/catalogtest"
	"github.com/robert-malhotra/go-stepio/internal/dtype"
)

func TestConformance(t *testing.T) {
	catalogtest.Run(t, func(t *testing.T) catalog.Catalog {
		c, err := Open(":memory:")
		require.NoError(t, err)
		t.Cleanup(func() { _ = c.Close() })
		return c
	})
}

func TestFileBacked(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "catalog.db")

	c, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, c.CommitStep(ctx, "ds", 0, 1, 0, []catalog.Block{{Variable: "v", Type: dtype.Uint8, Count: []uint64{3}}}))
	require.NoError(t, c.Close())

	c, err = Open(path)
	require.NoError(t, err)
	defer c.Close()

	blocks, err := c.Step(ctx, "ds", 0)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, []uint64{3}, blocks[0].Count)
}

func TestNewWithExistingDB(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	c, err := New(db)
	require.NoError(t, err)
	require.NoError(t, c.Close(), "closing a borrowed database is a no-op")

	st, err := c.Status(context.Background(), "ds")
	require.NoError(t, err)
	assert.Zero(t, st.Writers)
}
