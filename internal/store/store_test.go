package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilename(t *testing.T) {
	ts := time.Date(2025, 1, 31, 9, 30, 0, 0, time.UTC)
	assert.Equal(t, "THS_data_20250131_093000.html", Filename("ths", ts, "html"))
	assert.Equal(t, "BRK.B_data_20250131_093000.json", Filename("BRK.B", ts, ".json"))
}

func TestParseFilename(t *testing.T) {
	r, err := ParseFilename("THS_data_20250131_093000.html")
	require.NoError(t, err)
	assert.Equal(t, "THS", r.Symbol)
	assert.Equal(t, "html", r.Format)
	assert.Equal(t, "2025-01-31 09:30:00", r.Time.Format("2006-01-02 15:04:05"))

	r, err = ParseFilename("BRK.B_data_20240229_235959.json")
	require.NoError(t, err)
	assert.Equal(t, "BRK.B", r.Symbol)
}

func TestParseFilename_Rejects(t *testing.T) {
	for _, name := range []string{
		"",
		"THS_data_20250131_093000.txt",
		"ths_data_20250131_093000.html",
		"THS_data_2025013_093000.html",
		"../THS_data_20250131_093000.html",
		"THS_data_20251331_093000.html",
	} {
		_, err := ParseFilename(name)
		assert.ErrorIs(t, err, ErrBadName, name)
	}
}

func TestStore_Lifecycle(t *testing.T) {
	s := New(t.TempDir())
	older := Filename("AAPL", time.Date(2025, 1, 30, 8, 0, 0, 0, time.UTC), "html")
	newer := Filename("THS", time.Date(2025, 1, 31, 9, 30, 0, 0, time.UTC), "html")

	_, err := s.WriteTemp(older, []byte("old"))
	require.NoError(t, err)
	path, err := s.WriteTemp(newer, []byte("new"))
	require.NoError(t, err)
	assert.FileExists(t, path)

	list, err := s.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newer, list[0].Name)
	assert.False(t, list[0].Saved)

	saved, err := s.Save(older)
	require.NoError(t, err)
	assert.Equal(t, s.Path(older, true), saved)
	assert.NoFileExists(t, s.Path(older, false))

	body, r, err := s.Read(older)
	require.NoError(t, err)
	assert.Equal(t, "old", string(body))
	assert.True(t, r.Saved)

	_, err = s.Save(older)
	assert.ErrorIs(t, err, ErrNotInTemp)

	require.NoError(t, s.Delete(newer))
	_, _, err = s.Read(newer)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_SaveReplacesExisting(t *testing.T) {
	s := New(t.TempDir())
	name := Filename("AAPL", time.Date(2025, 1, 30, 8, 0, 0, 0, time.UTC), "json")
	_, err := s.WriteTemp(name, []byte("first"))
	require.NoError(t, err)
	_, err = s.Save(name)
	require.NoError(t, err)

	_, err = s.WriteTemp(name, []byte("second"))
	require.NoError(t, err)
	_, err = s.Save(name)
	require.NoError(t, err)

	body, _, err := s.Read(name)
	require.NoError(t, err)
	assert.Equal(t, "second", string(body))
}

func TestStore_ListIgnoresForeignFiles(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, TempDir), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, TempDir, "notes.txt"), []byte("x"), 0644))

	list, err := New(root).List()
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestStore_RejectsTraversal(t *testing.T) {
	s := New(t.TempDir())
	_, err := s.WriteTemp("../escape.html", []byte("x"))
	assert.ErrorIs(t, err, ErrBadName)
	assert.ErrorIs(t, s.Delete("../../etc/passwd"), ErrBadName)
}

func TestIndex_RecordAndRecent(t *testing.T) {
	ctx := context.Background()
	idx, err := OpenIndex(ctx, ":memory:")
	require.NoError(t, err)
	defer idx.Close()

	base := time.Date(2025, 1, 31, 9, 30, 0, 0, time.UTC)
	entries := []Entry{
		{Name: "AAPL_data_20250131_093000.html", Symbol: "AAPL", RunID: "a", Format: "html", CollectedAt: base, HealthTier: "Good", HealthScore: 63.3},
		{Name: "THS_data_20250131_093001.html", Symbol: "THS", RunID: "b", Format: "html", CollectedAt: base.Add(time.Second)},
		{Name: "AAPL_data_20250131_093002.json", Symbol: "AAPL", RunID: "c", Format: "json", CollectedAt: base.Add(2*time.Second + 500*time.Millisecond)},
	}
	for _, e := range entries {
		require.NoError(t, idx.Record(ctx, e))
	}

	all, err := idx.Recent(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].RunID)
	assert.Equal(t, "a", all[2].RunID)
	assert.True(t, all[0].CollectedAt.Equal(entries[2].CollectedAt))

	aapl, err := idx.Recent(ctx, "AAPL", 1)
	require.NoError(t, err)
	require.Len(t, aapl, 1)
	assert.Equal(t, "json", aapl[0].Format)

	entries[0].HealthTier = "Strong"
	require.NoError(t, idx.Record(ctx, entries[0]))
	require.NoError(t, idx.Remove(ctx, entries[1].Name))
	all, err = idx.Recent(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Strong", all[1].HealthTier)
}
