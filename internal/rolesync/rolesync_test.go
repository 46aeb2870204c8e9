package rolesync

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/awaae001/LN-IdentityGroupRobot/internal/platform"
	"github.com/awaae001/LN-IdentityGroupRobot/internal/testutil"
	"github.com/awaae001/LN-IdentityGroupRobot/pkg/pacer"
)

// User ids for the canonical set-math case: local role {A,B,C}, remote role
// {B,D}, local guild {A,B,C,E}, remote guild {B,D,F,A}.
const (
	userA int64 = 1
	userB int64 = 2
	userC int64 = 3
	userD int64 = 4
	userE int64 = 5
	userF int64 = 6
)

const (
	localGuild  int64 = 100
	remoteGuild int64 = 200
	localRole   int64 = 11
	remoteRole  int64 = 21
)

func canonicalSetup() *testutil.FakeDirectory {
	dir := testutil.NewFakeDirectory()
	dir.AddGuild(localGuild, "alpha")
	dir.AddRole(localGuild, localRole, "member", 3)
	dir.AddGuild(remoteGuild, "beta")
	dir.AddRole(remoteGuild, remoteRole, "member", 3)

	dir.AddMember(localGuild, userA, "a", localRole)
	dir.AddMember(localGuild, userB, "b", localRole)
	dir.AddMember(localGuild, userC, "c", localRole)
	dir.AddMember(localGuild, userE, "e")

	dir.AddMember(remoteGuild, userB, "b", remoteRole)
	dir.AddMember(remoteGuild, userD, "d", remoteRole)
	dir.AddMember(remoteGuild, userF, "f")
	dir.AddMember(remoteGuild, userA, "a")
	return dir
}

func newSyncer(dir *testutil.FakeDirectory) *Syncer {
	return New(dir, dir, pacer.New(0), zerolog.Nop())
}

func req(mode Mode) Request {
	return Request{
		LocalGuildID:  localGuild,
		LocalRoleID:   localRole,
		RemoteGuildID: remoteGuild,
		RemoteRoleID:  remoteRole,
		Mode:          mode,
	}
}

func TestDiffSetMath(t *testing.T) {
	s := newSyncer(canonicalSetup())

	d, err := s.Diff(context.Background(), req(ModeBidirectional))
	require.NoError(t, err)

	// to_push = {A,B,C} ∩ {B,D,F,A} − {B,D} = {A}
	require.Equal(t, []int64{userA}, d.ToPush)
	// to_pull = {B,D} ∩ {A,B,C,E} − {A,B,C} = {} (D not in the local guild)
	require.Empty(t, d.ToPull)
}

func TestDiffResolutionFailures(t *testing.T) {
	s := newSyncer(canonicalSetup())

	r := req(ModeBidirectional)
	r.RemoteRoleID = 999
	_, err := s.Diff(context.Background(), r)
	require.ErrorIs(t, err, platform.ErrNotFound)

	r = req(ModeBidirectional)
	r.LocalGuildID = 999
	_, err = s.Diff(context.Background(), r)
	require.ErrorIs(t, err, platform.ErrNotFound)
}

func TestInSyncShortCircuit(t *testing.T) {
	dir := canonicalSetup()
	// align both sides: give A the remote role
	require.NoError(t, dir.AddRoles(context.Background(), remoteGuild, userA, []int64{remoteRole}, "seed"))
	s := newSyncer(dir)

	d, err := s.Diff(context.Background(), req(ModeBidirectional))
	require.NoError(t, err)
	require.Empty(t, d.ToPush)
	require.Empty(t, d.ToPull)
	require.True(t, d.InSync(ModeBidirectional))
	require.False(t, d.InSync(ModeRemoveLocal))
}

func TestApplyBidirectional(t *testing.T) {
	dir := canonicalSetup()
	s := newSyncer(dir)

	r := req(ModeBidirectional)
	d, err := s.Diff(context.Background(), r)
	require.NoError(t, err)

	rep, err := s.Apply(context.Background(), r, d)
	require.NoError(t, err)
	require.Equal(t, []int64{userA}, rep.RemoteAdded)
	require.Empty(t, rep.LocalAdded)
	require.Empty(t, rep.Failed)
	require.Contains(t, dir.MemberRoles(remoteGuild, userA), remoteRole)
}

func TestApplyPushOnlyAndPullOnly(t *testing.T) {
	dir := canonicalSetup()
	// make to_pull non-empty: D joins the local guild
	dir.AddMember(localGuild, userD, "d")
	s := newSyncer(dir)

	r := req(ModePull)
	d, err := s.Diff(context.Background(), r)
	require.NoError(t, err)
	require.Equal(t, []int64{userD}, d.ToPull)
	require.Equal(t, []int64{userA}, d.ToPush)

	rep, err := s.Apply(context.Background(), r, d)
	require.NoError(t, err)
	require.Equal(t, []int64{userD}, rep.LocalAdded)
	require.Empty(t, rep.RemoteAdded) // pull mode never touches the remote side
	require.NotContains(t, dir.MemberRoles(remoteGuild, userA), remoteRole)

	r = req(ModePush)
	d, err = s.Diff(context.Background(), r)
	require.NoError(t, err)
	rep, err = s.Apply(context.Background(), r, d)
	require.NoError(t, err)
	require.Equal(t, []int64{userA}, rep.RemoteAdded)
	require.Empty(t, rep.LocalAdded)
}

func TestApplyRemoveLocal(t *testing.T) {
	dir := canonicalSetup()
	s := newSyncer(dir)

	r := req(ModeRemoveLocal)
	d, err := s.Diff(context.Background(), r)
	require.NoError(t, err)
	// remote role holders ∩ local guild members = {B}
	require.Equal(t, []int64{userB}, d.ToRemove)

	rep, err := s.Apply(context.Background(), r, d)
	require.NoError(t, err)
	require.Equal(t, []int64{userB}, rep.LocalRemoved)
	require.NotContains(t, dir.MemberRoles(localGuild, userB), localRole)
}

func TestApplyIndependentFailures(t *testing.T) {
	dir := canonicalSetup()
	dir.AddMember(localGuild, userD, "d")
	dir.AddMember(remoteGuild, userE, "e", remoteRole) // second pull candidate
	dir.FailUsers[userD] = struct{}{}
	s := newSyncer(dir)

	r := req(ModePull)
	d, err := s.Diff(context.Background(), r)
	require.NoError(t, err)
	require.Equal(t, []int64{userD, userE}, d.ToPull)

	rep, err := s.Apply(context.Background(), r, d)
	require.NoError(t, err)
	require.Equal(t, []int64{userE}, rep.LocalAdded)
	require.Len(t, rep.Failed, 1)
	require.Contains(t, rep.Failed, userD)
}

func TestFailureLines(t *testing.T) {
	dir := canonicalSetup()
	s := newSyncer(dir)

	rep := &Report{Failed: map[int64]string{
		userB: "forbidden",
		9999:  "timeout",
	}}
	lines := s.FailureLines(context.Background(), rep)
	require.Equal(t, []string{
		"b: forbidden",
		"unknown user (9999): timeout",
	}, lines)
}

func TestParseMode(t *testing.T) {
	for _, s := range []string{"bidirectional", "push", "pull", "remove-local"} {
		m, err := ParseMode(s)
		require.NoError(t, err)
		require.Equal(t, Mode(s), m)
	}
	_, err := ParseMode("sideways")
	require.ErrorIs(t, err, ErrUnknownMode)
}
