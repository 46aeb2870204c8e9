package projection

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/awaae001/LN-IdentityGroupRobot/internal/storage"
)

func op(id string, assignments ...storage.GuildAssignment) storage.Entry {
	return storage.Entry{Op: &storage.Operation{ID: id, Assignments: assignments}}
}

func TestBuildUnionsAcrossOperations(t *testing.T) {
	entries := []storage.Entry{
		op("1111",
			storage.GuildAssignment{GuildID: 100, RoleIDs: []int64{11, 12}, AssignedUserIDs: []int64{1, 2}},
			storage.GuildAssignment{GuildID: 200, RoleIDs: []int64{21}, AssignedUserIDs: []int64{1}},
		),
		op("2222",
			storage.GuildAssignment{GuildID: 100, RoleIDs: []int64{13, 11}, AssignedUserIDs: []int64{2}},
		),
	}

	idx := Build(entries)
	require.Equal(t, 2, idx.Users())
	require.Equal(t, []int64{11, 12}, idx.Roles(1, 100))
	require.Equal(t, []int64{21}, idx.Roles(1, 200))
	require.Equal(t, []int64{11, 12, 13}, idx.Roles(2, 100))
	require.Nil(t, idx.Roles(3, 100))
	require.Nil(t, idx.Roles(1, 300))
}

func TestBuildSkipsMalformedEntries(t *testing.T) {
	entries := []storage.Entry{
		{Raw: json.RawMessage(`{"operation_id": "bad"}`)},
		op("1111", storage.GuildAssignment{GuildID: 100, RoleIDs: []int64{11}, AssignedUserIDs: []int64{1}}),
	}
	idx := Build(entries)
	require.Equal(t, 1, idx.Users())
	require.Equal(t, []int64{11}, idx.Roles(1, 100))
}

func TestBuildEmpty(t *testing.T) {
	require.Equal(t, 0, Build(nil).Users())
}

func TestStoreRebuildAndLoad(t *testing.T) {
	dir := t.TempDir()
	log := zerolog.Nop()

	oplog := storage.NewOperationLog(filepath.Join(dir, "roles.json"), log)
	require.NoError(t, oplog.Upsert(&storage.Operation{
		ID:        "1111",
		CreatedAt: 1700000000,
		Assignments: []storage.GuildAssignment{
			{GuildID: 100, RoleIDs: []int64{11}, AssignedUserIDs: []int64{1}},
		},
	}))

	store := NewStore(filepath.Join(dir, "user_roles.json"), log)
	idx, err := store.Rebuild(oplog)
	require.NoError(t, err)
	require.Equal(t, []int64{11}, idx.Roles(1, 100))

	loaded := store.Load()
	require.Equal(t, []int64{11}, loaded.Roles(1, 100))
}

func TestStoreLoadMissingOrCorrupt(t *testing.T) {
	dir := t.TempDir()
	log := zerolog.Nop()

	store := NewStore(filepath.Join(dir, "user_roles.json"), log)
	require.Equal(t, 0, store.Load().Users())

	require.NoError(t, store.Save(Index{1: {100: {11}}}))
	require.Equal(t, []int64{11}, store.Load().Roles(1, 100))
}
