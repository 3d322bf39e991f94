package stepio

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/go-stepio/catalog/sqlite"
	"github.com/robert-malhotra/go-stepio/transport/file"
)

// TestFileAndSQLiteRoundTrip writes through the durable backends, closes
// everything and reads back with fresh handles.
func TestFileAndSQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "catalog.db")

	cat, err := sqlite.Open(dbPath)
	require.NoError(t, err)
	ft, err := file.New(filepath.Join(dir, "data"))
	require.NoError(t, err)

	s := NewSession(WithCatalog(cat), WithOperators("shuffle,zstd"))
	w, err := s.Open(ctx, "run", ModeWrite, WithTransports(ft))
	require.NoError(t, err)

	temp, err := DefineVariable[float64](w, "temperature", []uint64{16}, nil, nil)
	require.NoError(t, err)
	raw, err := DefineVariable[uint32](w, "ids", nil, nil, []uint64{3}, WithVariableOperators(""))
	require.NoError(t, err)

	for step := 0; step < 3; step++ {
		mustBegin(t, w)
		sp, err := PutSpan(w, temp)
		require.NoError(t, err)
		for i := 0; i < sp.Len(); i++ {
			require.NoError(t, sp.Set(i, math.Sqrt(float64(step*16+i))))
		}
		require.NoError(t, Put(w, raw, []uint32{uint32(step), 7, 7}, Deferred))
		mustEnd(t, w)
	}
	require.NoError(t, s.Close(ctx))
	require.NoError(t, cat.Close())

	cat, err = sqlite.Open(dbPath)
	require.NoError(t, err)
	defer cat.Close()
	ft, err = file.New(filepath.Join(dir, "data"))
	require.NoError(t, err)

	rs := NewSession(WithCatalog(cat))
	defer rs.Close(ctx)
	r, err := rs.Open(ctx, "run", ModeRead, WithTransports(ft))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"ids", "temperature"}, r.Variables())

	rt, err := InquireVariable[float64](r, "temperature")
	require.NoError(t, err)
	require.NoError(t, rt.SetSelection([]uint64{4}, []uint64{2}))

	var got []float64
	for step := 0; ; step++ {
		st, err := r.BeginStep(ctx, StepNext, 0)
		require.NoError(t, err)
		if st == StepEndOfStream {
			assert.Equal(t, 3, step)
			break
		}
		require.Equal(t, StepOK, st)
		require.NoError(t, GetInto(r, rt, &got, Sync))
		assert.InDeltaSlice(t, []float64{math.Sqrt(float64(step*16 + 4)), math.Sqrt(float64(step*16 + 5))}, got, 1e-12)

		ids := make([]uint32, 3)
		require.NoError(t, GetNamed(r, "ids", ids, Sync))
		assert.Equal(t, []uint32{uint32(step), 7, 7}, ids)
		mustEnd(t, r)
	}

	blocks, err := BlocksInfo(r, rt, 2)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, "file:"+filepath.Join(dir, "data"), blocks[0].Locators[0].Transport)
}

