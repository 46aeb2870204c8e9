package discord

import (
	"context"
	"strconv"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
)

// ChannelNotifier publishes operational summaries to the configured log
// channel. With no channel configured it degrades to the process log.
type ChannelNotifier struct {
	s         *discordgo.Session
	channelID int64
	log       zerolog.Logger
}

func NewChannelNotifier(s *discordgo.Session, channelID int64, log zerolog.Logger) *ChannelNotifier {
	return &ChannelNotifier{s: s, channelID: channelID, log: log}
}

func (n *ChannelNotifier) Notify(ctx context.Context, text string) {
	if n.channelID == 0 {
		n.log.Info().Str("summary", text).Msg("operational summary")
		return
	}
	_, err := n.s.ChannelMessageSend(strconv.FormatInt(n.channelID, 10), text, discordgo.WithContext(ctx))
	if err != nil {
		n.log.Error().Err(err).Int64("channel", n.channelID).Msg("failed to publish summary")
	}
}
