package command

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// RoleMembers lists the current holders of a role, as text or as a CSV
// attachment for larger roles.
type RoleMembers struct {
	deps *Deps
}

func (c *RoleMembers) Name() string { return "role_members" }

func (c *RoleMembers) Description() string {
	return "List the members holding a role"
}

func (c *RoleMembers) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionRole, Name: "role", Description: "Role to list", Required: true},
			{
				Type: discordgo.ApplicationCommandOptionString, Name: "format", Description: "Output format",
				Choices: []*discordgo.ApplicationCommandOptionChoice{
					{Name: "text", Value: "text"},
					{Name: "csv", Value: "csv"},
				},
			},
		},
	}
}

// Past this many members the text listing switches to a CSV attachment.
const maxTextListing = 50

func (c *RoleMembers) Run(ctx context.Context, inv *Invocation) error {
	roleID := inv.RoleOption("role")
	role, err := c.deps.Dir.Role(inv.GuildID, roleID)
	if err != nil {
		return inv.Respond.Reply(ctx, "That role does not exist in this server.")
	}

	ids, err := c.deps.Dir.RoleMembers(ctx, inv.GuildID, roleID)
	if err != nil {
		return fmt.Errorf("list role members: %w", err)
	}
	if len(ids) == 0 {
		return inv.Respond.Reply(ctx, fmt.Sprintf("No members hold **%s**.", role.Name))
	}

	format := inv.StringOption("format")
	if format == "csv" || (format == "" && len(ids) > maxTextListing) {
		csv := c.membersCSV(ctx, inv.GuildID, ids)
		_, err := inv.Session.FollowupMessageCreate(inv.Event.Interaction, true, &discordgo.WebhookParams{
			Content: fmt.Sprintf("**%s**: %d member(s)", role.Name, len(ids)),
			Files: []*discordgo.File{{
				Name:        fmt.Sprintf("%s_members.csv", role.Name),
				ContentType: "text/csv",
				Reader:      bytes.NewReader(csv),
			}},
		})
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**%s**: %d member(s)\n", role.Name, len(ids))
	shown := ids
	if len(shown) > maxTextListing {
		shown = shown[:maxTextListing]
	}
	for _, uid := range shown {
		fmt.Fprintf(&b, "- <@%d>\n", uid)
	}
	if len(ids) > maxTextListing {
		fmt.Fprintf(&b, "... and %d more (use the csv format for the full list)\n", len(ids)-maxTextListing)
	}
	return inv.Respond.Reply(ctx, b.String())
}

func (c *RoleMembers) membersCSV(ctx context.Context, guildID int64, ids []int64) []byte {
	var b bytes.Buffer
	b.WriteString("user_id,username\n")
	for _, uid := range ids {
		name := ""
		if m, err := c.deps.Dir.Member(ctx, guildID, uid); err == nil {
			name = m.Username
		}
		b.WriteString(strconv.FormatInt(uid, 10))
		b.WriteByte(',')
		b.WriteString(strings.ReplaceAll(name, ",", " "))
		b.WriteByte('\n')
	}
	return b.Bytes()
}
