package command

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

// Status reports uptime and the sizes of the bot's working state.
type Status struct {
	deps *Deps
}

func (c *Status) Name() string { return "status" }

func (c *Status) Description() string {
	return "Show bot uptime and state statistics"
}

func (c *Status) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
	}
}

func (c *Status) Run(ctx context.Context, inv *Invocation) error {
	entries := c.deps.Oplog.Load()
	parsed, malformed := 0, 0
	for _, e := range entries {
		if e.Op != nil {
			parsed++
		} else {
			malformed++
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Uptime: %s\n", time.Since(c.deps.StartedAt).Round(time.Second))
	fmt.Fprintf(&b, "Servers: %d\n", len(c.deps.Dir.Guilds()))
	fmt.Fprintf(&b, "Operations: %d", parsed)
	if malformed > 0 {
		fmt.Fprintf(&b, " (+%d malformed entries preserved)", malformed)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "Projected users: %d\n", c.deps.Projection.Load().Users())
	return inv.Respond.Reply(ctx, b.String())
}
