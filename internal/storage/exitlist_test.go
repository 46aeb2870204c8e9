package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExitListAddContainsRemove(t *testing.T) {
	e := NewExitList(t.TempDir(), testLog())

	require.False(t, e.Contains(10, 1))
	require.NoError(t, e.Add(10, 1))
	require.True(t, e.Contains(10, 1))

	// adding twice is a no-op
	require.NoError(t, e.Add(10, 1))
	require.Equal(t, []int64{1}, e.Users(10))

	require.NoError(t, e.Add(10, 2))
	require.Equal(t, []int64{1, 2}, e.Users(10))

	require.NoError(t, e.Remove(10, 1))
	require.False(t, e.Contains(10, 1))
	require.True(t, e.Contains(10, 2))

	// removing an absent user is not an error
	require.NoError(t, e.Remove(10, 99))
	require.NoError(t, e.Remove(11, 1))
}

func TestExitListIsPerRole(t *testing.T) {
	e := NewExitList(t.TempDir(), testLog())

	require.NoError(t, e.Add(10, 1))
	require.False(t, e.Contains(20, 1))
	require.Empty(t, e.Users(20))
}

func TestExitListFileFormat(t *testing.T) {
	dir := t.TempDir()
	e := NewExitList(dir, testLog())
	require.NoError(t, e.Add(42, 7))

	data, err := os.ReadFile(filepath.Join(dir, "42.json"))
	require.NoError(t, err)
	require.JSONEq(t, `{"roleid": "42", "data": ["7"]}`, string(data))
}

func TestExitListLoadAll(t *testing.T) {
	dir := t.TempDir()
	e := NewExitList(dir, testLog())
	require.NoError(t, e.Add(10, 1))
	require.NoError(t, e.Add(10, 2))
	require.NoError(t, e.Add(20, 3))

	// junk in the directory is skipped
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bogus.json"), []byte("{}"), 0o644))

	all := e.LoadAll()
	require.Len(t, all, 2)
	require.Contains(t, all[int64(10)], int64(1))
	require.Contains(t, all[int64(10)], int64(2))
	require.Contains(t, all[int64(20)], int64(3))
}

func TestExitListCorruptRecord(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "10.json"), []byte("not json"), 0o644))

	e := NewExitList(dir, testLog())
	require.False(t, e.Contains(10, 1))
	require.NoError(t, e.Add(10, 1))
	require.True(t, e.Contains(10, 1))
}
