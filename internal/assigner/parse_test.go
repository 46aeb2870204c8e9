package assigner

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseUserIDs(t *testing.T) {
	require.Equal(t, []int64{111, 222}, ParseUserIDs("<@111> <@!222>"))
	require.Equal(t, []int64{111, 222, 333}, ParseUserIDs("<@111>, 222 333"))
	require.Equal(t, []int64{111}, ParseUserIDs("<@111> 111, 111"))
	require.Empty(t, ParseUserIDs("no ids here"))
	require.Empty(t, ParseUserIDs(""))
}

func TestParseMessageLink(t *testing.T) {
	link, ok := ParseMessageLink("https://discord.com/channels/100/200/300")
	require.True(t, ok)
	require.Equal(t, MessageLink{GuildID: 100, ChannelID: 200, MessageID: 300}, link)

	_, ok = ParseMessageLink("https://discord.com/channels/100/200")
	require.False(t, ok)
	_, ok = ParseMessageLink("https://example.com/channels/100/200/300")
	require.False(t, ok)
	_, ok = ParseMessageLink("garbage")
	require.False(t, ok)
}
