package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func testLog() zerolog.Logger {
	return zerolog.Nop()
}

func TestOperationLogRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roles.json")
	l := NewOperationLog(path, testLog())

	op := &Operation{
		ID:        "1234",
		CreatedAt: 1700000000,
		Assignments: []GuildAssignment{
			{
				GuildID:         100,
				GuildName:       "alpha",
				RoleIDs:         []int64{11, 12},
				RoleNames:       []string{"red", "blue"},
				AssignedUserIDs: []int64{1, 2, 3},
				OperationID:     "1234",
			},
		},
	}
	require.NoError(t, l.Upsert(op))

	entries := l.Load()
	require.Len(t, entries, 1)
	require.NotNil(t, entries[0].Op)
	require.Equal(t, "1234", entries[0].Op.ID)
	require.Equal(t, int64(1700000000), entries[0].Op.CreatedAt)
	require.Equal(t, []int64{1, 2, 3}, entries[0].Op.Assignments[0].AssignedUserIDs)

	found := l.Find("1234")
	require.NotNil(t, found)
	require.Equal(t, []int64{11, 12}, found.Assignments[0].RoleIDs)
	require.Nil(t, l.Find("9999"))
}

func TestOperationLogMissingFile(t *testing.T) {
	l := NewOperationLog(filepath.Join(t.TempDir(), "absent.json"), testLog())
	require.Empty(t, l.Load())
	require.Nil(t, l.Find("1234"))
}

func TestOperationLogPreservesMalformedEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roles.json")

	// A well-formed pair, a pair missing its data list, and a bare object.
	raw := `[
		["1234", {"operation_id": "1234", "fade": false, "outtime": null, "timestamp": 1700000000, "data": [{"guild_id": 100, "role_ids": [11], "assigned_user_ids": [1]}]}],
		["5678", {"operation_id": "5678", "timestamp": 1700000001}],
		{"operation_id": "9012"}
	]`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	l := NewOperationLog(path, testLog())
	entries := l.Load()
	require.Len(t, entries, 3)
	require.NotNil(t, entries[0].Op)
	require.Nil(t, entries[1].Op)
	require.Nil(t, entries[2].Op)

	// Saving the log back keeps the malformed entries byte for byte.
	require.NoError(t, l.Save(entries))

	reloaded := l.Load()
	require.Len(t, reloaded, 3)
	require.Nil(t, reloaded[1].Op)
	require.JSONEq(t, `["5678", {"operation_id": "5678", "timestamp": 1700000001}]`, string(reloaded[1].Raw))
	require.JSONEq(t, `{"operation_id": "9012"}`, string(reloaded[2].Raw))
}

func TestOperationLogNotAList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roles.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"oops": true}`), 0o644))

	l := NewOperationLog(path, testLog())
	require.Empty(t, l.Load())
}

func TestOperationLogUpsertReplacesByID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roles.json")
	l := NewOperationLog(path, testLog())

	require.NoError(t, l.Upsert(&Operation{ID: "1111", CreatedAt: 1, Assignments: []GuildAssignment{{GuildID: 1, AssignedUserIDs: []int64{5}}}}))
	require.NoError(t, l.Upsert(&Operation{ID: "2222", CreatedAt: 2, Assignments: []GuildAssignment{{GuildID: 1, AssignedUserIDs: []int64{6}}}}))

	updated := &Operation{ID: "1111", CreatedAt: 1, Assignments: []GuildAssignment{{GuildID: 1, AssignedUserIDs: []int64{5, 7}}}}
	require.NoError(t, l.Upsert(updated))

	entries := l.Load()
	require.Len(t, entries, 2)
	require.Equal(t, "1111", entries[0].Op.ID)
	require.Equal(t, []int64{5, 7}, entries[0].Op.Assignments[0].AssignedUserIDs)
	require.Equal(t, "2222", entries[1].Op.ID)
}

func TestOperationLogSaveEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roles.json")
	l := NewOperationLog(path, testLog())

	require.NoError(t, l.Save(nil))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.JSONEq(t, `[]`, string(data))
}

func TestMergeUsers(t *testing.T) {
	a := GuildAssignment{AssignedUserIDs: []int64{3, 1}}
	a.MergeUsers([]int64{2, 3, 4})
	require.Equal(t, []int64{1, 2, 3, 4}, a.AssignedUserIDs)

	a.MergeUsers(nil)
	require.Equal(t, []int64{1, 2, 3, 4}, a.AssignedUserIDs)
}

func TestOperationRoleSet(t *testing.T) {
	op := Operation{Assignments: []GuildAssignment{
		{GuildID: 1, RoleIDs: []int64{30, 10}},
		{GuildID: 2, RoleIDs: []int64{10, 20}},
	}}
	require.Equal(t, []int64{10, 20, 30}, op.RoleSet())
}

func TestOperationWindow(t *testing.T) {
	def := 720 * time.Hour

	var op Operation
	require.Equal(t, def, op.Window(def))

	days := 7
	op.OutTime = &days
	require.Equal(t, 7*24*time.Hour, op.Window(def))

	zero := 0
	op.OutTime = &zero
	require.Equal(t, def, op.Window(def))
}

func TestEntryMarshalZeroValue(t *testing.T) {
	data, err := json.Marshal(Entry{})
	require.NoError(t, err)
	require.Equal(t, "null", string(data))
}
