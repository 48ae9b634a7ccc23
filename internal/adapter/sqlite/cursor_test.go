package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/weather-history-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/weather-history-etl/internal/domain"
)

func openTemp(t *testing.T) (*sqlite.CursorStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cursors.db")
	s, err := sqlite.Open(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

func TestCursorStore_LoadMissing(t *testing.T) {
	s, _ := openTemp(t)

	_, ok, err := s.Load(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCursorStore_SaveOverwrites(t *testing.T) {
	s, _ := openTemp(t)
	ctx := context.Background()

	first, _ := domain.ParseDate("2025-01-02")
	second, _ := domain.ParseDate("2025-01-09")
	require.NoError(t, s.Save(ctx, "menlo-2025", first))
	require.NoError(t, s.Save(ctx, "menlo-2025", second))

	got, ok, err := s.Load(ctx, "menlo-2025")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, second, got)
}

func TestCursorStore_PersistsAcrossOpen(t *testing.T) {
	s, path := openTemp(t)
	ctx := context.Background()
	next, _ := domain.ParseDate("2024-12-31")
	require.NoError(t, s.Save(ctx, "austin", next))
	require.NoError(t, s.Close())

	reopened, err := sqlite.Open(ctx, path)
	require.NoError(t, err)
	defer reopened.Close()

	got, ok, err := reopened.Load(ctx, "austin")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "2024-12-31", domain.FormatDate(got))
}
