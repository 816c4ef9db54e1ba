package chat

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *LocalStore {
	t.Helper()
	store, err := OpenLocalStore(filepath.Join(t.TempDir(), "cache", "cache.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestLocalStore_Cursors(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	jane, omar := uuid.New(), uuid.New()
	at := time.Date(2025, 3, 10, 9, 0, 0, 123, time.UTC)

	require.NoError(t, store.SaveCursor(ctx, "acme", jane, at))
	require.NoError(t, store.SaveCursors(ctx, "acme", []uuid.UUID{omar}, at.Add(time.Hour)))
	require.NoError(t, store.SaveCursor(ctx, "other", jane, at.Add(48*time.Hour)))

	cursors, err := store.Cursors(ctx, "acme")
	require.NoError(t, err)
	assert.Len(t, cursors, 2)
	assert.True(t, cursors[jane].Equal(at))
	assert.True(t, cursors[omar].Equal(at.Add(time.Hour)))
}

func TestLocalStore_CursorNeverMovesBack(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	id := uuid.New()
	newer := time.Date(2025, 3, 10, 9, 0, 0, 500, time.UTC)
	require.NoError(t, store.SaveCursor(ctx, "acme", id, newer))
	require.NoError(t, store.SaveCursor(ctx, "acme", id, newer.Add(-time.Minute)))

	cursors, err := store.Cursors(ctx, "acme")
	require.NoError(t, err)
	assert.True(t, cursors[id].Equal(newer))

	later := newer.Add(time.Second)
	require.NoError(t, store.SaveCursor(ctx, "acme", id, later))
	cursors, err = store.Cursors(ctx, "acme")
	require.NoError(t, err)
	assert.True(t, cursors[id].Equal(later))
}

func TestLocalStore_Theme(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	theme, err := store.Theme(ctx)
	require.NoError(t, err)
	assert.Equal(t, ThemeLight, theme)

	require.NoError(t, store.SetTheme(ctx, ThemeDark))
	theme, err = store.Theme(ctx)
	require.NoError(t, err)
	assert.Equal(t, ThemeDark, theme)

	assert.Error(t, store.SetTheme(ctx, "neon"))
}

func TestLocalStore_Preference(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	v, err := store.Preference(ctx, "filter", "All")
	require.NoError(t, err)
	assert.Equal(t, "All", v)

	require.NoError(t, store.SetPreference(ctx, "filter", "Unread"))
	require.NoError(t, store.SetPreference(ctx, "filter", "Groups"))
	v, err = store.Preference(ctx, "filter", "All")
	require.NoError(t, err)
	assert.Equal(t, "Groups", v)
}
