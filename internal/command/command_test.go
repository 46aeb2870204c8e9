package command

import (
	"context"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/awaae001/LN-IdentityGroupRobot/internal/config"
)

type recordingResponder struct {
	replies []string
	edits   []string
	answer  bool
}

func (r *recordingResponder) Reply(_ context.Context, text string) error {
	r.replies = append(r.replies, text)
	return nil
}

func (r *recordingResponder) Edit(_ context.Context, text string) error {
	r.edits = append(r.edits, text)
	return nil
}

func (r *recordingResponder) Confirm(_ context.Context, _ string) (bool, error) {
	return r.answer, nil
}

type stubCommand struct {
	name string
	ran  int
}

func (s *stubCommand) Name() string        { return s.name }
func (s *stubCommand) Description() string { return "stub" }
func (s *stubCommand) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{Name: s.name}
}
func (s *stubCommand) Run(context.Context, *Invocation) error {
	s.ran++
	return nil
}

func guildInvocation(userID int64, roles ...string) *Invocation {
	return &Invocation{
		GuildID: 100,
		UserID:  userID,
		Event: &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
			Member: &discordgo.Member{Roles: roles},
		}},
		Respond: &recordingResponder{},
	}
}

func TestAuthorizedAdminAllowlist(t *testing.T) {
	cfg := &config.Config{AdminUserIDs: []int64{7}}
	stub := &stubCommand{name: "x"}
	cmd := Apply(stub, Authorized(cfg))

	require.NoError(t, cmd.Run(context.Background(), guildInvocation(7)))
	require.Equal(t, 1, stub.ran)

	inv := guildInvocation(8)
	require.NoError(t, cmd.Run(context.Background(), inv))
	require.Equal(t, 1, stub.ran)
	require.Contains(t, inv.Respond.(*recordingResponder).replies[0], "not authorized")
}

func TestAuthorizedRoleAllowlist(t *testing.T) {
	cfg := &config.Config{AuthorizedRoleIDs: []int64{55}}
	stub := &stubCommand{name: "x"}
	cmd := Apply(stub, Authorized(cfg))

	require.NoError(t, cmd.Run(context.Background(), guildInvocation(8, "55")))
	require.Equal(t, 1, stub.ran)

	require.NoError(t, cmd.Run(context.Background(), guildInvocation(8, "56")))
	require.Equal(t, 1, stub.ran)
}

func TestGuildOnly(t *testing.T) {
	stub := &stubCommand{name: "x"}
	cmd := Apply(stub, GuildOnly())

	require.NoError(t, cmd.Run(context.Background(), guildInvocation(7)))
	require.Equal(t, 1, stub.ran)

	dm := &Invocation{
		Event:   &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{}},
		Respond: &recordingResponder{},
	}
	require.NoError(t, cmd.Run(context.Background(), dm))
	require.Equal(t, 1, stub.ran)
	require.Contains(t, dm.Respond.(*recordingResponder).replies[0], "inside a server")
}

func TestMiddlewareOrderAndRoot(t *testing.T) {
	stub := &stubCommand{name: "x"}
	var order []string
	outer := func(next Command) Command {
		return Wrap(next, func(ctx context.Context, inv *Invocation) error {
			order = append(order, "outer")
			return next.Run(ctx, inv)
		})
	}
	inner := func(next Command) Command {
		return Wrap(next, func(ctx context.Context, inv *Invocation) error {
			order = append(order, "inner")
			return next.Run(ctx, inv)
		})
	}

	cmd := Apply(stub, inner, outer)
	require.NoError(t, cmd.Run(context.Background(), guildInvocation(1)))
	require.Equal(t, []string{"outer", "inner"}, order)
	require.Same(t, stub, Root(cmd))
}

func TestLogInvocationsPassesThrough(t *testing.T) {
	stub := &stubCommand{name: "x"}
	cmd := Apply(stub, LogInvocations(zerolog.Nop()))
	require.NoError(t, cmd.Run(context.Background(), guildInvocation(1)))
	require.Equal(t, 1, stub.ran)
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&stubCommand{name: "b"})
	reg.Register(&stubCommand{name: "a"})

	c, ok := reg.Get("a")
	require.True(t, ok)
	require.Equal(t, "a", c.Name())

	_, ok = reg.Get("missing")
	require.False(t, ok)

	all := reg.All()
	require.Len(t, all, 2)
	require.Equal(t, "a", all[0].Name())
	require.Equal(t, "b", all[1].Name())
}
