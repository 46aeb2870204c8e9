package discord

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/time/rate"
)

// commandDigest fingerprints a command definition as one canonical line per
// command, option and choice, hashed. Only fields that shape the definition
// enter the digest; runtime fields Discord fills in (ids, versions) do not,
// and sibling option order does not matter.
func commandDigest(def *discordgo.ApplicationCommand) string {
	h := sha256.New()
	fmt.Fprintf(h, "command %s|%s|%d\n", def.Name, def.Description, def.Type)
	digestOptions(h, def.Options, 1)
	return hex.EncodeToString(h.Sum(nil))
}

func digestOptions(w io.Writer, opts []*discordgo.ApplicationCommandOption, depth int) {
	sorted := make([]*discordgo.ApplicationCommandOption, len(opts))
	copy(sorted, opts)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	for _, o := range sorted {
		fmt.Fprintf(w, "%d option %s|%s|%d|%t\n", depth, o.Name, o.Description, o.Type, o.Required)
		for _, c := range o.Choices {
			fmt.Fprintf(w, "%d choice %s=%v\n", depth, c.Name, c.Value)
		}
		digestOptions(w, o.Options, depth+1)
	}
}

// commandCachePath is the per-guild registration cache: command name to
// definition digest, so restarts do not re-register unchanged commands.
func (b *Bot) commandCachePath(guildID string) string {
	return filepath.Join(b.cfg.DataDir, "commands", guildID+".json")
}

func (b *Bot) loadCommandHashes(guildID string) map[string]string {
	hashes := make(map[string]string)
	data, err := os.ReadFile(b.commandCachePath(guildID))
	if err == nil {
		_ = json.Unmarshal(data, &hashes)
	}
	return hashes
}

func (b *Bot) saveCommandHashes(guildID string, hashes map[string]string) {
	path := b.commandCachePath(guildID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		b.log.Error().Err(err).Str("path", path).Msg("failed to create command cache directory")
		return
	}
	data, _ := json.MarshalIndent(hashes, "", "  ")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		b.log.Error().Err(err).Str("path", path).Msg("failed to save command cache")
	}
}

// registerCommands reconciles the guild's slash commands with the registry:
// delete what we no longer define, create what changed, skip the rest.
// Creates are paced to stay under the registration rate limit.
func (b *Bot) registerCommands(ctx context.Context, guildID string) error {
	appID := b.dg.State.User.ID
	existing, err := b.dg.ApplicationCommands(appID, guildID)
	if err != nil {
		return err
	}

	local := b.loadCommandHashes(guildID)
	wanted := make(map[string]string)
	for _, cmd := range b.reg.All() {
		wanted[cmd.Name()] = commandDigest(cmd.Definition())
	}

	for _, old := range existing {
		if _, ok := wanted[old.Name]; ok {
			continue
		}
		b.log.Info().Str("guild", guildID).Str("command", old.Name).Msg("deleting obsolete command")
		if err := b.dg.ApplicationCommandDelete(appID, guildID, old.ID); err != nil {
			b.log.Error().Err(err).Str("guild", guildID).Str("command", old.Name).Msg("failed to delete command")
		}
		delete(local, old.Name)
	}

	lim := rate.NewLimiter(rate.Limit(40), 1)
	for _, cmd := range b.reg.All() {
		name := cmd.Name()
		if local[name] == wanted[name] {
			continue
		}
		if err := lim.Wait(ctx); err != nil {
			return err
		}
		if _, err := b.dg.ApplicationCommandCreate(appID, guildID, cmd.Definition()); err != nil {
			b.log.Error().Err(err).Str("guild", guildID).Str("command", name).Msg("failed to create command")
			continue
		}
		b.log.Info().Str("guild", guildID).Str("command", name).Msg("command registered")
		local[name] = wanted[name]
	}

	b.saveCommandHashes(guildID, local)
	return nil
}
