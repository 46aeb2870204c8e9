package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// MyRoles shows the invoking user which tracked roles they hold per guild,
// according to the user projection, with display names resolved through the
// role-group mapping where available.
type MyRoles struct {
	deps *Deps
}

func (c *MyRoles) Name() string { return "my_roles" }

func (c *MyRoles) Description() string {
	return "Show the tracked roles you hold across servers"
}

func (c *MyRoles) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
	}
}

func (c *MyRoles) Run(ctx context.Context, inv *Invocation) error {
	idx := c.deps.Projection.Load()
	guilds, ok := idx[inv.UserID]
	if !ok || len(guilds) == 0 {
		return inv.Respond.Reply(ctx, "No tracked roles on record for you.")
	}

	var b strings.Builder
	b.WriteString("Your tracked roles:\n")
	for _, g := range c.deps.Dir.Guilds() {
		roleIDs, ok := guilds[g.ID]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "**%s**:\n", g.Name)
		for _, rid := range roleIDs {
			if name, ok := c.deps.Groups.RoleName(rid); ok {
				fmt.Fprintf(&b, "- %s\n", name)
				continue
			}
			if role, err := c.deps.Dir.Role(g.ID, rid); err == nil {
				fmt.Fprintf(&b, "- %s\n", role.Name)
				continue
			}
			fmt.Fprintf(&b, "- role %d\n", rid)
		}
	}
	return inv.Respond.Reply(ctx, b.String())
}
