package command

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/awaae001/LN-IdentityGroupRobot/internal/assigner"
	"github.com/awaae001/LN-IdentityGroupRobot/internal/metrics"
	"github.com/awaae001/LN-IdentityGroupRobot/pkg/pacer"
)

// AssignRoles is the batch assignment command: grant up to three roles to a
// user set across every configured guild, recorded as one operation.
type AssignRoles struct {
	deps *Deps
}

func (c *AssignRoles) Name() string { return "assign_roles" }

func (c *AssignRoles) Description() string {
	return "Assign roles to a set of users across all configured servers"
}

func (c *AssignRoles) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionString, Name: "users", Description: "User mentions or ids, space or comma separated"},
			{Type: discordgo.ApplicationCommandOptionString, Name: "message_link", Description: "Message link to scan for user mentions"},
			{Type: discordgo.ApplicationCommandOptionRole, Name: "role1", Description: "First role to grant"},
			{Type: discordgo.ApplicationCommandOptionRole, Name: "role2", Description: "Second role to grant"},
			{Type: discordgo.ApplicationCommandOptionRole, Name: "role3", Description: "Third role to grant"},
			{Type: discordgo.ApplicationCommandOptionBoolean, Name: "fade", Description: "Exempt this operation from expiry"},
			{Type: discordgo.ApplicationCommandOptionInteger, Name: "outtime", Description: "Expiry window in days"},
			{Type: discordgo.ApplicationCommandOptionString, Name: "operation_id", Description: "Existing operation id to top up"},
		},
	}
}

func (c *AssignRoles) Run(ctx context.Context, inv *Invocation) error {
	users, err := c.resolveUsers(inv)
	if err != nil {
		return inv.Respond.Reply(ctx, err.Error())
	}

	req := assigner.Request{
		UserIDs:     users,
		GuildIDs:    c.deps.Cfg.GuildIDs,
		Fade:        inv.BoolOption("fade"),
		OperationID: inv.StringOption("operation_id"),
	}
	if days, ok := inv.IntOption("outtime"); ok {
		d := int(days)
		req.OutTime = &d
	}
	for _, name := range []string{"role1", "role2", "role3"} {
		if id := inv.RoleOption(name); id != 0 {
			req.RoleIDs = append(req.RoleIDs, id)
		}
	}

	pace := pacer.New(c.deps.Cfg.PaceInterval)
	a := assigner.New(c.deps.Dir, c.deps.Mut, c.deps.Oplog, pace, c.deps.Log)

	plan, err := a.Prepare(req)
	if err != nil {
		switch {
		case errors.Is(err, assigner.ErrOperationNotFound),
			errors.Is(err, assigner.ErrNoRoles),
			errors.Is(err, assigner.ErrTooManyRoles),
			errors.Is(err, assigner.ErrNoUsers):
			return inv.Respond.Reply(ctx, err.Error())
		}
		return err
	}

	ok, err := inv.Respond.Confirm(ctx, planSummary(plan))
	if err != nil {
		return err
	}
	if !ok {
		return inv.Respond.Edit(ctx, "Assignment cancelled, nothing changed.")
	}

	pace.OnProgress(5, func(done, total int) {
		_ = inv.Respond.Edit(ctx, fmt.Sprintf("Assigning roles... %d/%d", done, total))
	})

	report, err := a.Execute(ctx, plan)
	if err != nil {
		return err
	}
	countOutcomes(report)
	return inv.Respond.Edit(ctx, renderReport(report))
}

// resolveUsers builds the user set from the users option or a message link
// in the invoking guild.
func (c *AssignRoles) resolveUsers(inv *Invocation) ([]int64, error) {
	if raw := inv.StringOption("users"); raw != "" {
		ids := assigner.ParseUserIDs(raw)
		if len(ids) == 0 {
			return nil, errors.New("no user ids found in the users option")
		}
		return ids, nil
	}

	rawLink := inv.StringOption("message_link")
	if rawLink == "" {
		return nil, errors.New("provide either users or message_link")
	}
	link, ok := assigner.ParseMessageLink(rawLink)
	if !ok {
		return nil, errors.New("message link is not parseable")
	}
	if link.GuildID != inv.GuildID {
		return nil, errors.New("message link points to a different server")
	}

	msg, err := inv.Session.ChannelMessage(
		strconv.FormatInt(link.ChannelID, 10),
		strconv.FormatInt(link.MessageID, 10),
	)
	if err != nil {
		return nil, errors.New("could not fetch the linked message")
	}
	ids := assigner.ParseUserIDs(msg.Content)
	if len(ids) == 0 {
		return nil, errors.New("no user mentions found in the linked message")
	}
	return ids, nil
}

func countOutcomes(report *assigner.Report) {
	for _, gr := range report.Guilds {
		metrics.AssignmentOutcomes.WithLabelValues("success").Add(float64(len(gr.Succeeded)))
		metrics.AssignmentOutcomes.WithLabelValues("not_found").Add(float64(len(gr.NotFound)))
		metrics.AssignmentOutcomes.WithLabelValues("forbidden").Add(float64(len(gr.Forbidden)))
		metrics.AssignmentOutcomes.WithLabelValues("error").Add(float64(len(gr.Failed)))
	}
}

func planSummary(plan *assigner.Plan) string {
	var b strings.Builder
	if plan.TopUp {
		fmt.Fprintf(&b, "Top up operation **%s** with %d user(s)?\n", plan.OperationID, len(plan.UserIDs))
	} else {
		fmt.Fprintf(&b, "Assign %d role(s) to %d user(s) as operation **%s**?\n", len(plan.RoleIDs), len(plan.UserIDs), plan.OperationID)
	}
	for _, gp := range plan.Guilds {
		name := gp.GuildName
		if name == "" {
			name = strconv.FormatInt(gp.GuildID, 10)
		}
		fmt.Fprintf(&b, "- %s: %d role(s) valid", name, len(gp.Valid))
		if len(gp.InvalidRoles) > 0 {
			fmt.Fprintf(&b, ", %d missing", len(gp.InvalidRoles))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func renderReport(report *assigner.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Operation **%s**: %d succeeded, %d failed.\n", report.OperationID, report.Successes(), report.Failures())

	itemize := report.Itemize()
	for _, gr := range report.Guilds {
		name := gr.GuildName
		if name == "" {
			name = strconv.FormatInt(gr.GuildID, 10)
		}
		if gr.Skipped {
			fmt.Fprintf(&b, "**%s**: skipped (%s)\n", name, gr.SkipReason)
			continue
		}
		fmt.Fprintf(&b, "**%s**: %d ok, %d left, %d forbidden, %d errors\n",
			name, len(gr.Succeeded), len(gr.NotFound), len(gr.Forbidden), len(gr.Failed))
		if !itemize {
			continue
		}
		for _, uid := range gr.Succeeded {
			fmt.Fprintf(&b, "  ✅ <@%d>\n", uid)
		}
		for _, uid := range gr.NotFound {
			fmt.Fprintf(&b, "  ❔ <@%d> not in server\n", uid)
		}
		for _, uid := range gr.Forbidden {
			fmt.Fprintf(&b, "  ⛔ <@%d> forbidden\n", uid)
		}
		for uid, msg := range gr.Failed {
			fmt.Fprintf(&b, "  ⚠️ <@%d>: %s\n", uid, msg)
		}
	}
	return b.String()
}
