package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/awaae001/LN-IdentityGroupRobot/internal/metrics"
	"github.com/awaae001/LN-IdentityGroupRobot/internal/rolesync"
	"github.com/awaae001/LN-IdentityGroupRobot/pkg/pacer"
)

// SyncRole reconciles one role's membership with a role in another guild.
type SyncRole struct {
	deps *Deps
}

func (c *SyncRole) Name() string { return "sync_role" }

func (c *SyncRole) Description() string {
	return "Synchronize a role's members with a role in another server"
}

func (c *SyncRole) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionRole, Name: "local_role", Description: "Role in this server", Required: true},
			{Type: discordgo.ApplicationCommandOptionString, Name: "remote_guild", Description: "Id of the other server", Required: true},
			{Type: discordgo.ApplicationCommandOptionString, Name: "remote_role", Description: "Id of the role in the other server", Required: true},
			{
				Type: discordgo.ApplicationCommandOptionString, Name: "mode", Description: "Sync direction", Required: true,
				Choices: []*discordgo.ApplicationCommandOptionChoice{
					{Name: "bidirectional", Value: string(rolesync.ModeBidirectional)},
					{Name: "push only", Value: string(rolesync.ModePush)},
					{Name: "pull only", Value: string(rolesync.ModePull)},
					{Name: "remove local", Value: string(rolesync.ModeRemoveLocal)},
				},
			},
		},
	}
}

func (c *SyncRole) Run(ctx context.Context, inv *Invocation) error {
	mode, err := rolesync.ParseMode(inv.StringOption("mode"))
	if err != nil {
		return inv.Respond.Reply(ctx, "Unknown sync mode.")
	}
	req := rolesync.Request{
		LocalGuildID:  inv.GuildID,
		LocalRoleID:   inv.RoleOption("local_role"),
		RemoteGuildID: inv.SnowflakeOption("remote_guild"),
		RemoteRoleID:  inv.SnowflakeOption("remote_role"),
		Mode:          mode,
	}
	if req.LocalRoleID == 0 || req.RemoteGuildID == 0 || req.RemoteRoleID == 0 {
		return inv.Respond.Reply(ctx, "Role and server ids must be numeric.")
	}

	s := rolesync.New(c.deps.Dir, c.deps.Mut, pacer.New(c.deps.Cfg.PaceInterval), c.deps.Log)

	diff, err := s.Diff(ctx, req)
	if err != nil {
		return inv.Respond.Reply(ctx, fmt.Sprintf("Could not compute the sync diff: %v", err))
	}
	if diff.InSync(mode) {
		return inv.Respond.Reply(ctx, fmt.Sprintf("**%s** and **%s** are already in sync.", diff.LocalRole.Name, diff.RemoteRole.Name))
	}

	ok, err := inv.Respond.Confirm(ctx, diffSummary(mode, diff))
	if err != nil {
		return err
	}
	if !ok {
		return inv.Respond.Edit(ctx, "Sync cancelled, nothing changed.")
	}

	rep, err := s.Apply(ctx, req, diff)
	if err != nil {
		return err
	}
	metrics.SyncMutations.WithLabelValues("granted").Add(float64(len(rep.LocalAdded) + len(rep.RemoteAdded)))
	metrics.SyncMutations.WithLabelValues("removed").Add(float64(len(rep.LocalRemoved)))

	return inv.Respond.Edit(ctx, c.renderReport(ctx, s, diff, rep))
}

func diffSummary(mode rolesync.Mode, d *rolesync.Diff) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Sync **%s** (%s) with **%s** (%s), mode `%s`:\n",
		d.LocalRole.Name, d.LocalGuild.Name, d.RemoteRole.Name, d.RemoteGuild.Name, mode)
	if mode == rolesync.ModeRemoveLocal {
		fmt.Fprintf(&b, "- remove the local role from %d member(s)\n", len(d.ToRemove))
		return b.String()
	}
	if mode != rolesync.ModePush {
		fmt.Fprintf(&b, "- grant the local role to %d member(s)\n", len(d.ToPull))
	}
	if mode != rolesync.ModePull {
		fmt.Fprintf(&b, "- grant the remote role to %d member(s)\n", len(d.ToPush))
	}
	return b.String()
}

func (c *SyncRole) renderReport(ctx context.Context, s *rolesync.Syncer, d *rolesync.Diff, rep *rolesync.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Sync finished.\n**%s**: %d added, %d removed\n**%s**: %d added\n",
		d.LocalGuild.Name, len(rep.LocalAdded), len(rep.LocalRemoved),
		d.RemoteGuild.Name, len(rep.RemoteAdded))
	if len(rep.Failed) > 0 {
		fmt.Fprintf(&b, "%d failure(s):\n", len(rep.Failed))
		for _, line := range s.FailureLines(ctx, rep) {
			fmt.Fprintf(&b, "- %s\n", line)
		}
	}
	return b.String()
}
