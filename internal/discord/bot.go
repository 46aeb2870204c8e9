// Package discord binds the role-management core to a Discord gateway
// session: command registration, interaction dispatch, the confirmation
// flow, and the platform port implementations.
package discord

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/awaae001/LN-IdentityGroupRobot/internal/command"
	"github.com/awaae001/LN-IdentityGroupRobot/internal/config"
)

type Bot struct {
	dg      *discordgo.Session
	cfg     *config.Config
	reg     *command.Registry
	pending *confirms
	log     zerolog.Logger
}

// New builds the bot around an existing session and command registry. The
// session is opened by Run.
func New(dg *discordgo.Session, cfg *config.Config, reg *command.Registry, log zerolog.Logger) *Bot {
	return &Bot{
		dg:      dg,
		cfg:     cfg,
		reg:     reg,
		pending: newConfirms(),
		log:     log,
	}
}

// NewSession creates a configured gateway session for the token.
func NewSession(token string) (*discordgo.Session, error) {
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildMessages
	dg.StateEnabled = true
	return dg, nil
}

// Run opens the gateway and blocks until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	b.dg.AddHandler(b.onReady)
	b.dg.AddHandler(b.onGuildCreate)
	b.dg.AddHandler(b.onInteractionCreate)
	b.dg.AddHandler(b.onMessageDelete)

	if err := b.dg.Open(); err != nil {
		return fmt.Errorf("open gateway: %w", err)
	}
	defer b.dg.Close()

	<-ctx.Done()
	b.log.Info().Msg("shutdown signal received, closing gateway")
	return nil
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	if !b.cfg.InitSlashCommands {
		b.log.Info().Msg("slash command registration skipped")
		return
	}
	for _, g := range r.Guilds {
		if err := b.registerCommands(context.Background(), g.ID); err != nil {
			b.log.Error().Err(err).Str("guild", g.ID).Msg("failed to register commands")
		}
	}
	b.log.Info().Str("user", s.State.User.Username).Int("guilds", len(r.Guilds)).Msg("gateway ready")
}

func (b *Bot) onGuildCreate(_ *discordgo.Session, g *discordgo.GuildCreate) {
	if !b.cfg.ServesGuild(parseID(g.ID)) {
		b.log.Warn().Str("guild", g.ID).Str("name", g.Name).Msg("joined unconfigured guild")
		return
	}
	if b.cfg.InitSlashCommands {
		if err := b.registerCommands(context.Background(), g.ID); err != nil {
			b.log.Error().Err(err).Str("guild", g.ID).Msg("failed to register commands for new guild")
		}
	}
}

// onMessageDelete gives commands with message-keyed state a chance to tear
// it down, e.g. a removal panel whose message is gone.
func (b *Bot) onMessageDelete(_ *discordgo.Session, m *discordgo.MessageDelete) {
	messageID := parseID(m.ID)
	if messageID == 0 {
		return
	}
	for _, cmd := range b.reg.All() {
		handler, ok := command.Root(cmd).(command.MessageDeleteHandler)
		if !ok {
			continue
		}
		if err := handler.HandleMessageDelete(context.Background(), messageID); err != nil {
			b.log.Error().Err(err).Str("command", cmd.Name()).Str("message", m.ID).Msg("message-delete cleanup failed")
		}
	}
}

func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx := context.Background()
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		b.dispatchCommand(ctx, s, i)
	case discordgo.InteractionMessageComponent:
		b.dispatchComponent(ctx, s, i)
	}
}

func (b *Bot) invocation(s *discordgo.Session, i *discordgo.InteractionCreate) *command.Invocation {
	inv := &command.Invocation{
		Session: s,
		Event:   i,
		GuildID: parseID(i.GuildID),
		Respond: &responder{
			s:       s,
			i:       i.Interaction,
			pending: b.pending,
			timeout: b.cfg.ConfirmTimeout,
		},
	}
	if i.Member != nil && i.Member.User != nil {
		inv.UserID = parseID(i.Member.User.ID)
	} else if i.User != nil {
		inv.UserID = parseID(i.User.ID)
	}
	return inv
}

func (b *Bot) dispatchCommand(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	name := i.ApplicationCommandData().Name
	cmd, ok := b.reg.Get(name)
	if !ok {
		b.log.Warn().Str("command", name).Msg("unknown command invoked")
		return
	}
	inv := b.invocation(s, i)
	if err := cmd.Run(ctx, inv); err != nil {
		b.log.Error().Err(err).Str("command", name).Msg("command failed")
		_ = inv.Respond.Reply(ctx, "Something went wrong running that command.")
	}
}

// dispatchComponent routes component clicks by the custom id's leading tag:
// "confirm:<yes|no>:<nonce>" resolves a pending gate, anything else goes to
// the command owning the tag.
func (b *Bot) dispatchComponent(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	parts := strings.Split(i.MessageComponentData().CustomID, ":")

	if parts[0] == "confirm" && len(parts) == 3 {
		// Acknowledge the click so the buttons stop spinning; the waiting
		// command rewrites the message with its outcome.
		_ = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseDeferredMessageUpdate,
		})
		if !b.pending.resolve(parts[2], parts[1] == "yes") {
			b.log.Debug().Str("nonce", parts[2]).Msg("confirmation arrived after timeout")
		}
		return
	}

	cmd, ok := b.reg.Get(parts[0])
	if !ok {
		b.log.Warn().Str("custom_id", i.MessageComponentData().CustomID).Msg("component without owner")
		return
	}
	handler, ok := command.Root(cmd).(command.ComponentHandler)
	if !ok {
		b.log.Warn().Str("command", parts[0]).Msg("command does not handle components")
		return
	}
	inv := b.invocation(s, i)
	if err := handler.HandleComponent(ctx, inv, parts[1:]); err != nil {
		b.log.Error().Err(err).Str("command", parts[0]).Msg("component handling failed")
		_ = inv.Respond.Reply(ctx, "Something went wrong handling that action.")
	}
}
