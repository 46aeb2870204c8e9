package command

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"

	"github.com/bwmarrin/discordgo"

	"github.com/awaae001/LN-IdentityGroupRobot/internal/storage"
)

// RemoveRole posts a self-removal panel: a message with one button per role
// that lets members drop the role themselves. Clicks are recorded in the
// per-role exit list so the expiry sweep never hands those users the
// replacement role.
type RemoveRole struct {
	deps *Deps
}

func (c *RemoveRole) Name() string { return "remove_role" }

func (c *RemoveRole) Description() string {
	return "Post a panel that lets members remove a role from themselves"
}

func (c *RemoveRole) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionRole, Name: "role1", Description: "First removable role", Required: true},
			{Type: discordgo.ApplicationCommandOptionRole, Name: "role2", Description: "Second removable role"},
			{Type: discordgo.ApplicationCommandOptionRole, Name: "role3", Description: "Third removable role"},
			{Type: discordgo.ApplicationCommandOptionBoolean, Name: "persist_list", Description: "Keep the exit record when the user leaves the panel"},
		},
	}
}

func (c *RemoveRole) Run(ctx context.Context, inv *Invocation) error {
	var roleIDs []int64
	var buttons []discordgo.MessageComponent
	for _, name := range []string{"role1", "role2", "role3"} {
		id := inv.RoleOption(name)
		if id == 0 {
			continue
		}
		role, err := c.deps.Dir.Role(inv.GuildID, id)
		if err != nil {
			return inv.Respond.Reply(ctx, fmt.Sprintf("Role %d does not exist in this server.", id))
		}
		roleIDs = append(roleIDs, id)
		buttons = append(buttons, discordgo.Button{
			Label:    "Remove " + role.Name,
			Style:    discordgo.DangerButton,
			CustomID: fmt.Sprintf("%s:%d", c.Name(), id),
		})
	}
	if len(roleIDs) == 0 {
		return inv.Respond.Reply(ctx, "At least one role is required.")
	}

	msg, err := inv.Session.ChannelMessageSendComplex(inv.Event.ChannelID, &discordgo.MessageSend{
		Content:    "Click a button to remove that role from yourself.",
		Components: []discordgo.MessageComponent{discordgo.ActionsRow{Components: buttons}},
	})
	if err != nil {
		return fmt.Errorf("post removal panel: %w", err)
	}

	messageID, err := strconv.ParseInt(msg.ID, 10, 64)
	if err != nil {
		return fmt.Errorf("parse panel message id: %w", err)
	}
	panel := storage.Panel{RoleIDs: roleIDs, PersistList: inv.BoolOption("persist_list")}
	if err := c.deps.Panels.Save(messageID, panel); err != nil {
		return err
	}
	return inv.Respond.Reply(ctx, "Removal panel posted.")
}

// HandleComponent runs when a member clicks one of the panel's buttons: drop
// the role and record the opt-out. Only roles the panel offers and the member
// actually holds are removed; a bare click must never create an opt-out
// record, or the expiry sweep would skip that user forever.
func (c *RemoveRole) HandleComponent(ctx context.Context, inv *Invocation, args []string) error {
	if len(args) != 1 {
		return errors.New("malformed removal button id")
	}
	roleID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("malformed role id in button: %w", err)
	}

	messageID, err := strconv.ParseInt(inv.Event.Message.ID, 10, 64)
	if err != nil {
		return fmt.Errorf("parse panel message id: %w", err)
	}
	panel, ok := c.deps.Panels.Get(messageID)
	if !ok {
		return inv.Respond.Reply(ctx, "This panel is no longer active.")
	}
	if !slices.Contains(panel.RoleIDs, roleID) {
		return inv.Respond.Reply(ctx, "That role is not part of this panel.")
	}

	role, err := c.deps.Dir.Role(inv.GuildID, roleID)
	if err != nil {
		return inv.Respond.Reply(ctx, "That role no longer exists.")
	}

	member, err := c.deps.Dir.Member(ctx, inv.GuildID, inv.UserID)
	if err != nil {
		return inv.Respond.Reply(ctx, "Could not look you up in this server.")
	}
	if !slices.Contains(member.RoleIDs, roleID) {
		if c.deps.Exits.Contains(roleID, inv.UserID) {
			return inv.Respond.Reply(ctx, fmt.Sprintf("You already removed **%s**.", role.Name))
		}
		return inv.Respond.Reply(ctx, fmt.Sprintf("You don't have **%s**.", role.Name))
	}

	if err := c.deps.Mut.RemoveRoles(ctx, inv.GuildID, inv.UserID, []int64{roleID}, "self-removal panel"); err != nil {
		c.deps.Log.Error().Err(err).Int64("guild", inv.GuildID).Int64("user", inv.UserID).Int64("role", roleID).Msg("self-removal failed")
		return inv.Respond.Reply(ctx, "Could not remove the role, try again later.")
	}
	if err := c.deps.Exits.Add(roleID, inv.UserID); err != nil {
		c.deps.Log.Error().Err(err).Int64("role", roleID).Int64("user", inv.UserID).Msg("failed to record opt-out")
	}
	return inv.Respond.Reply(ctx, fmt.Sprintf("Removed **%s** from you.", role.Name))
}

// HandleMessageDelete cleans up when a panel message is deleted. Unless the
// panel was posted with persist_list, its roles' opt-out records go with it,
// so those users become eligible for the replacement role again.
func (c *RemoveRole) HandleMessageDelete(_ context.Context, messageID int64) error {
	panel, ok := c.deps.Panels.Get(messageID)
	if !ok {
		return nil
	}
	if err := c.deps.Panels.Delete(messageID); err != nil {
		return err
	}
	c.deps.Log.Info().Int64("message", messageID).Bool("persist_list", panel.PersistList).Msg("removal panel deleted")

	if panel.PersistList {
		return nil
	}
	for _, roleID := range panel.RoleIDs {
		for _, userID := range c.deps.Exits.Users(roleID) {
			if err := c.deps.Exits.Remove(roleID, userID); err != nil {
				return fmt.Errorf("clear opt-out for role %d: %w", roleID, err)
			}
		}
	}
	return nil
}
