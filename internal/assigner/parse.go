package assigner

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	mentionPattern = regexp.MustCompile(`<@!?(\d+)>`)
	linkPattern    = regexp.MustCompile(`^https://discord\.com/channels/(\d+)/(\d+)/(\d+)$`)
)

// ParseUserIDs extracts user ids from free-form input: mentions and bare
// numeric ids, separated by spaces or commas. Duplicates collapse, order is
// first occurrence.
func ParseUserIDs(input string) []int64 {
	var ids []int64
	for _, m := range mentionPattern.FindAllStringSubmatch(input, -1) {
		if id, err := strconv.ParseInt(m[1], 10, 64); err == nil {
			ids = append(ids, id)
		}
	}
	stripped := mentionPattern.ReplaceAllString(input, " ")
	for _, tok := range strings.FieldsFunc(stripped, func(r rune) bool {
		return r == ' ' || r == ',' || r == '\n' || r == '\t'
	}) {
		if id, err := strconv.ParseInt(tok, 10, 64); err == nil {
			ids = append(ids, id)
		}
	}
	return dedupe(ids)
}

// MessageLink is a parsed message URL.
type MessageLink struct {
	GuildID   int64
	ChannelID int64
	MessageID int64
}

// ParseMessageLink parses a full message URL. Returns false for anything that
// is not the canonical link shape.
func ParseMessageLink(input string) (MessageLink, bool) {
	m := linkPattern.FindStringSubmatch(strings.TrimSpace(input))
	if m == nil {
		return MessageLink{}, false
	}
	g, err1 := strconv.ParseInt(m[1], 10, 64)
	c, err2 := strconv.ParseInt(m[2], 10, 64)
	id, err3 := strconv.ParseInt(m[3], 10, 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return MessageLink{}, false
	}
	return MessageLink{GuildID: g, ChannelID: c, MessageID: id}, true
}
