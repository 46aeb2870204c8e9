package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGroupStoreCreateAndAdd(t *testing.T) {
	g := NewGroupStore(filepath.Join(t.TempDir(), "role_groups.json"), testLog())

	require.NoError(t, g.CreateGroup("core", "Core Roles"))
	require.Error(t, g.CreateGroup("core", "Again"))

	require.NoError(t, g.AddRole("core", 11, "red"))
	require.NoError(t, g.AddRole("core", 12, "blue"))
	require.Error(t, g.AddRole("core", 11, "red again"))
	require.Error(t, g.AddRole("missing", 11, "red"))

	groups := g.Groups()
	require.Len(t, groups, 1)
	require.Equal(t, "Core Roles", groups["core"].Name)
	require.Equal(t, map[string]string{"11": "red", "12": "blue"}, groups["core"].Data)
}

func TestGroupStoreRemoveRole(t *testing.T) {
	g := NewGroupStore(filepath.Join(t.TempDir(), "role_groups.json"), testLog())
	require.NoError(t, g.CreateGroup("core", "Core"))
	require.NoError(t, g.AddRole("core", 11, "red"))

	require.NoError(t, g.RemoveRole("core", 11))
	require.Error(t, g.RemoveRole("core", 11))
	require.Error(t, g.RemoveRole("missing", 11))
}

func TestGroupStoreRoleName(t *testing.T) {
	g := NewGroupStore(filepath.Join(t.TempDir(), "role_groups.json"), testLog())
	require.NoError(t, g.CreateGroup("a", "A"))
	require.NoError(t, g.CreateGroup("b", "B"))
	require.NoError(t, g.AddRole("b", 42, "answer"))

	name, ok := g.RoleName(42)
	require.True(t, ok)
	require.Equal(t, "answer", name)

	_, ok = g.RoleName(7)
	require.False(t, ok)
}

func TestGroupStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "role_groups.json")
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o644))

	g := NewGroupStore(path, testLog())
	require.Empty(t, g.Groups())
	require.NoError(t, g.CreateGroup("core", "Core"))
	require.Len(t, g.Groups(), 1)
}
