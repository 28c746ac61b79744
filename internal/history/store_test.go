// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package history

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/marker-api/pkg/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndList(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	pages := 12
	created := time.Date(2026, 10, 19, 8, 30, 0, 0, time.UTC)

	ok := types.ConversionRecord{
		ID:               "a",
		Filename:         "report.pdf",
		SHA256:           "abc",
		Backend:          "container:docker",
		Success:          true,
		PagesCount:       &pages,
		ProcessingTimeMS: 4200,
		StructureStats:   types.StructureStats{H1Count: 1, H2Count: 4, H3Count: 9},
		CreatedAt:        created,
	}
	failed := types.ConversionRecord{
		ID:               "b",
		Filename:         "scan.pdf",
		SHA256:           "def",
		Backend:          "container:docker",
		Error:            "marker produced empty output",
		ProcessingTimeMS: 150,
		CreatedAt:        created.Add(time.Minute),
	}
	require.NoError(t, s.Record(ctx, ok))
	require.NoError(t, s.Record(ctx, failed))

	got, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Newest first.
	assert.Equal(t, "b", got[0].ID)
	assert.False(t, got[0].Success)
	assert.Equal(t, "marker produced empty output", got[0].Error)
	assert.Nil(t, got[0].PagesCount)

	assert.Equal(t, ok.ID, got[1].ID)
	assert.True(t, got[1].Success)
	require.NotNil(t, got[1].PagesCount)
	assert.Equal(t, 12, *got[1].PagesCount)
	assert.Equal(t, ok.StructureStats, got[1].StructureStats)
	assert.Equal(t, int64(4200), got[1].ProcessingTimeMS)
	assert.True(t, created.Equal(got[1].CreatedAt))
}

func TestRecordDuplicateID(t *testing.T) {
	s := openTestStore(t)
	rec := types.ConversionRecord{ID: "dup", Filename: "x.pdf", SHA256: "0", Backend: "server", CreatedAt: time.Now()}

	require.NoError(t, s.Record(context.Background(), rec))
	err := s.Record(context.Background(), rec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dup")
}

func TestListLimit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Record(ctx, types.ConversionRecord{
			ID: fmt.Sprintf("r%d", i), Filename: "f.pdf", SHA256: "0", Backend: "server",
			Success: true, CreatedAt: time.Now(),
		}))
	}

	got, err := s.List(ctx, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"r4", "r3", "r2"}, []string{got[0].ID, got[1].ID, got[2].ID})

	got, err = s.List(ctx, MaxLimit+50)
	require.NoError(t, err)
	assert.Len(t, got, 5)
}

func TestOpenReusesExistingDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Record(context.Background(), types.ConversionRecord{
		ID: "keep", Filename: "f.pdf", SHA256: "0", Backend: "server", CreatedAt: time.Now(),
	}))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.List(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "keep", got[0].ID)
}
