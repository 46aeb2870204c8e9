package command

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// RoleGroupCmd manages the role-group mapping table: named groups of role
// ids with display names, used by my_roles and the self-service pickers.
type RoleGroupCmd struct {
	deps *Deps
}

func (c *RoleGroupCmd) Name() string { return "role_group" }

func (c *RoleGroupCmd) Description() string {
	return "Manage named role groups"
}

func (c *RoleGroupCmd) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type: discordgo.ApplicationCommandOptionSubCommand, Name: "create", Description: "Create a group",
				Options: []*discordgo.ApplicationCommandOption{
					{Type: discordgo.ApplicationCommandOptionString, Name: "id", Description: "Group id", Required: true},
					{Type: discordgo.ApplicationCommandOptionString, Name: "name", Description: "Display name", Required: true},
				},
			},
			{
				Type: discordgo.ApplicationCommandOptionSubCommand, Name: "add", Description: "Add a role to a group",
				Options: []*discordgo.ApplicationCommandOption{
					{Type: discordgo.ApplicationCommandOptionString, Name: "id", Description: "Group id", Required: true},
					{Type: discordgo.ApplicationCommandOptionRole, Name: "role", Description: "Role to add", Required: true},
					{Type: discordgo.ApplicationCommandOptionString, Name: "name", Description: "Display name for the role"},
				},
			},
			{
				Type: discordgo.ApplicationCommandOptionSubCommand, Name: "remove", Description: "Remove a role from a group",
				Options: []*discordgo.ApplicationCommandOption{
					{Type: discordgo.ApplicationCommandOptionString, Name: "id", Description: "Group id", Required: true},
					{Type: discordgo.ApplicationCommandOptionRole, Name: "role", Description: "Role to remove", Required: true},
				},
			},
			{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "list", Description: "List all groups"},
		},
	}
}

func (c *RoleGroupCmd) Run(ctx context.Context, inv *Invocation) error {
	opts := inv.Event.ApplicationCommandData().Options
	if len(opts) == 0 {
		return inv.Respond.Reply(ctx, "Missing subcommand.")
	}
	sub := opts[0]

	str := func(name string) string {
		for _, o := range sub.Options {
			if o.Name == name && o.Type == discordgo.ApplicationCommandOptionString {
				return o.StringValue()
			}
		}
		return ""
	}
	roleID := func() int64 {
		for _, o := range sub.Options {
			if o.Name == "role" {
				return parseSnowflake(o.Value)
			}
		}
		return 0
	}

	switch sub.Name {
	case "create":
		if err := c.deps.Groups.CreateGroup(str("id"), str("name")); err != nil {
			return inv.Respond.Reply(ctx, err.Error())
		}
		return inv.Respond.Reply(ctx, fmt.Sprintf("Group `%s` created.", str("id")))

	case "add":
		rid := roleID()
		name := str("name")
		if name == "" {
			if role, err := c.deps.Dir.Role(inv.GuildID, rid); err == nil {
				name = role.Name
			}
		}
		if err := c.deps.Groups.AddRole(str("id"), rid, name); err != nil {
			return inv.Respond.Reply(ctx, err.Error())
		}
		return inv.Respond.Reply(ctx, fmt.Sprintf("Added **%s** to `%s`.", name, str("id")))

	case "remove":
		if err := c.deps.Groups.RemoveRole(str("id"), roleID()); err != nil {
			return inv.Respond.Reply(ctx, err.Error())
		}
		return inv.Respond.Reply(ctx, fmt.Sprintf("Role removed from `%s`.", str("id")))

	case "list":
		groups := c.deps.Groups.Groups()
		if len(groups) == 0 {
			return inv.Respond.Reply(ctx, "No role groups defined.")
		}
		ids := make([]string, 0, len(groups))
		for id := range groups {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		var b strings.Builder
		for _, id := range ids {
			g := groups[id]
			fmt.Fprintf(&b, "`%s` — %s (%d role(s))\n", id, g.Name, len(g.Data))
			for rid, name := range g.Data {
				fmt.Fprintf(&b, "  - %s (%s)\n", name, rid)
			}
		}
		return inv.Respond.Reply(ctx, b.String())
	}
	return inv.Respond.Reply(ctx, "Unknown subcommand.")
}
