// Package config loads the bot configuration from the environment once at
// startup. The resulting value is passed by reference into every component;
// nothing reads os.Getenv after Load returns.
package config

import (
	"encoding/json"
	"fmt"
	"log"
	"slices"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	DiscordToken string `env:"DISCORD_TOKEN,required"`

	// GuildIDs lists every guild the bot serves. Batch assignment targets
	// all of them.
	GuildIDs []int64 `env:"GUILD_IDS" envSeparator:","`

	// AdminUserIDs and AuthorizedRoleIDs together form the authorization
	// predicate: a user passes when listed directly or when holding any
	// authorized role.
	AdminUserIDs      []int64 `env:"ADMIN_USER_IDS" envSeparator:","`
	AuthorizedRoleIDs []int64 `env:"AUTHORIZED_ROLE_IDS" envSeparator:","`

	// ReplacementRolesJSON maps guild id to the single role granted in place
	// of an expired operation's roles, e.g. {"123456789": 987654321}.
	ReplacementRolesJSON string `env:"REPLACEMENT_ROLES"`

	// LogChannelID, when set, receives operation summaries.
	LogChannelID int64 `env:"LOG_CHANNEL_ID"`

	DataDir string `env:"DATA_DIR" envDefault:"data"`

	ExpiryWindow  time.Duration `env:"EXPIRY_WINDOW" envDefault:"720h"`
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"1h"`

	ConfirmTimeout time.Duration `env:"CONFIRM_TIMEOUT" envDefault:"60s"`

	// PaceInterval is the gap between successive per-user platform calls in
	// batch operations.
	PaceInterval time.Duration `env:"PACE_INTERVAL" envDefault:"500ms"`

	MetricsAddr string `env:"METRICS_ADDR"`

	LogFile  string `env:"LOG_FILE"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	InitSlashCommands bool `env:"INIT_SLASH_COMMANDS" envDefault:"true"`

	// ReplacementRoles is the parsed form of ReplacementRolesJSON.
	ReplacementRoles map[int64]int64 `env:"-"`
}

// Load reads .env (if present) and the process environment into a Config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, falling back to system environment variables")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if len(cfg.GuildIDs) == 0 {
		return nil, fmt.Errorf("GUILD_IDS is not set")
	}

	roles, err := ParseReplacementRoles(cfg.ReplacementRolesJSON)
	if err != nil {
		return nil, fmt.Errorf("REPLACEMENT_ROLES: %w", err)
	}
	cfg.ReplacementRoles = roles

	return cfg, nil
}

// ParseReplacementRoles decodes the guild→role map from its JSON-in-env form.
// Keys are guild ids as JSON strings; values may be numbers or strings.
// An empty input yields an empty map, not an error.
func ParseReplacementRoles(raw string) (map[int64]int64, error) {
	out := make(map[int64]int64)
	if raw == "" {
		return out, nil
	}

	var m map[string]json.Number
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		// Retry with string values before giving up.
		var ms map[string]string
		if err2 := json.Unmarshal([]byte(raw), &ms); err2 != nil {
			return nil, err
		}
		m = make(map[string]json.Number, len(ms))
		for k, v := range ms {
			m[k] = json.Number(v)
		}
	}

	for k, v := range m {
		gid, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("guild id %q: %w", k, err)
		}
		rid, err := v.Int64()
		if err != nil {
			return nil, fmt.Errorf("role id for guild %s: %w", k, err)
		}
		out[gid] = rid
	}
	return out, nil
}

// IsAdmin reports whether the user id is on the admin allowlist.
func (c *Config) IsAdmin(userID int64) bool {
	return slices.Contains(c.AdminUserIDs, userID)
}

// HasAuthorizedRole reports whether any of the given role ids is on the
// authorized-role allowlist.
func (c *Config) HasAuthorizedRole(roleIDs []int64) bool {
	for _, r := range roleIDs {
		if slices.Contains(c.AuthorizedRoleIDs, r) {
			return true
		}
	}
	return false
}

// ServesGuild reports whether the guild is one of the configured targets.
func (c *Config) ServesGuild(guildID int64) bool {
	return slices.Contains(c.GuildIDs, guildID)
}
