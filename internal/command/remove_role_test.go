package command

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/awaae001/LN-IdentityGroupRobot/internal/storage"
	"github.com/awaae001/LN-IdentityGroupRobot/internal/testutil"
)

func newRemoveRoleFixture(t *testing.T) (*RemoveRole, *testutil.FakeDirectory) {
	t.Helper()
	log := zerolog.Nop()
	base := t.TempDir()

	dir := testutil.NewFakeDirectory()
	cmd := &RemoveRole{deps: &Deps{
		Dir:    dir,
		Mut:    dir,
		Exits:  storage.NewExitList(filepath.Join(base, "removed"), log),
		Panels: storage.NewPanelStore(filepath.Join(base, "panels.json"), log),
		Log:    log,
	}}
	return cmd, dir
}

func panelClick(userID int64, messageID string) *Invocation {
	return &Invocation{
		GuildID: 1,
		UserID:  userID,
		Event: &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
			Message: &discordgo.Message{ID: messageID},
		}},
		Respond: &recordingResponder{},
	}
}

func TestRemoveRolePanelClick(t *testing.T) {
	cmd, dir := newRemoveRoleFixture(t)
	dir.AddGuild(1, "alpha")
	dir.AddRole(1, 10, "visitor", 3)
	dir.AddMember(1, 100, "alice", 10)
	require.NoError(t, cmd.deps.Panels.Save(555, storage.Panel{RoleIDs: []int64{10}}))

	inv := panelClick(100, "555")
	require.NoError(t, cmd.HandleComponent(context.Background(), inv, []string{"10"}))

	require.NotContains(t, dir.MemberRoles(1, 100), int64(10))
	require.Equal(t, []int64{100}, cmd.deps.Exits.Users(10))
	require.Contains(t, inv.Respond.(*recordingResponder).replies[0], "visitor")
}

func TestRemoveRolePanelClickWithoutRole(t *testing.T) {
	cmd, dir := newRemoveRoleFixture(t)
	dir.AddGuild(1, "alpha")
	dir.AddRole(1, 10, "visitor", 3)
	dir.AddMember(1, 200, "mallory") // does not hold role 10
	require.NoError(t, cmd.deps.Panels.Save(555, storage.Panel{RoleIDs: []int64{10}}))

	inv := panelClick(200, "555")
	require.NoError(t, cmd.HandleComponent(context.Background(), inv, []string{"10"}))

	// no mutation and, critically, no opt-out record: a recorded user would
	// be skipped by the expiry sweep forever
	require.Empty(t, dir.RemoveCalls)
	require.Empty(t, cmd.deps.Exits.Users(10))
	require.Contains(t, inv.Respond.(*recordingResponder).replies[0], "don't have")
}

func TestRemoveRolePanelClickAlreadyOptedOut(t *testing.T) {
	cmd, dir := newRemoveRoleFixture(t)
	dir.AddGuild(1, "alpha")
	dir.AddRole(1, 10, "visitor", 3)
	dir.AddMember(1, 100, "alice")
	require.NoError(t, cmd.deps.Panels.Save(555, storage.Panel{RoleIDs: []int64{10}}))
	require.NoError(t, cmd.deps.Exits.Add(10, 100))

	inv := panelClick(100, "555")
	require.NoError(t, cmd.HandleComponent(context.Background(), inv, []string{"10"}))

	require.Empty(t, dir.RemoveCalls)
	require.Contains(t, inv.Respond.(*recordingResponder).replies[0], "already removed")
}

func TestRemoveRolePanelRejectsForeignRole(t *testing.T) {
	cmd, dir := newRemoveRoleFixture(t)
	dir.AddGuild(1, "alpha")
	dir.AddRole(1, 10, "visitor", 3)
	dir.AddRole(1, 99, "other", 2)
	dir.AddMember(1, 100, "alice", 10, 99)
	require.NoError(t, cmd.deps.Panels.Save(555, storage.Panel{RoleIDs: []int64{10}}))

	inv := panelClick(100, "555")
	require.NoError(t, cmd.HandleComponent(context.Background(), inv, []string{"99"}))

	require.Empty(t, dir.RemoveCalls)
	require.Empty(t, cmd.deps.Exits.Users(99))
	require.Contains(t, inv.Respond.(*recordingResponder).replies[0], "not part of this panel")
}

func TestRemoveRolePanelTeardown(t *testing.T) {
	cmd, dir := newRemoveRoleFixture(t)
	dir.AddGuild(1, "alpha")
	require.NoError(t, cmd.deps.Panels.Save(555, storage.Panel{RoleIDs: []int64{10}}))
	require.NoError(t, cmd.deps.Exits.Add(10, 100))

	require.NoError(t, cmd.HandleMessageDelete(context.Background(), 555))

	_, ok := cmd.deps.Panels.Get(555)
	require.False(t, ok)
	require.Empty(t, cmd.deps.Exits.Users(10))
}

func TestRemoveRolePanelTeardownPersistList(t *testing.T) {
	cmd, dir := newRemoveRoleFixture(t)
	dir.AddGuild(1, "alpha")
	require.NoError(t, cmd.deps.Panels.Save(555, storage.Panel{RoleIDs: []int64{10}, PersistList: true}))
	require.NoError(t, cmd.deps.Exits.Add(10, 100))

	require.NoError(t, cmd.HandleMessageDelete(context.Background(), 555))

	_, ok := cmd.deps.Panels.Get(555)
	require.False(t, ok)
	require.Equal(t, []int64{100}, cmd.deps.Exits.Users(10))
}

func TestRemoveRolePanelTeardownUnknownMessage(t *testing.T) {
	cmd, _ := newRemoveRoleFixture(t)
	require.NoError(t, cmd.HandleMessageDelete(context.Background(), 999))
}
