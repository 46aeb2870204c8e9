// Package platform defines the narrow view of the chat platform that the core
// role-management components depend on. The Discord session implements these
// interfaces in internal/discord; tests use the fakes in internal/testutil.
package platform

import (
	"context"
	"errors"
)

// ErrNotFound marks a guild, role, member or user that could not be resolved.
// For members this usually means the user left the guild.
var ErrNotFound = errors.New("not found")

// ErrForbidden marks a platform-side permission failure.
var ErrForbidden = errors.New("forbidden")

type Guild struct {
	ID   int64
	Name string
}

type Role struct {
	ID   int64
	Name string
	// Position is the role's rank in the guild; granting a role requires the
	// bot's highest role to rank strictly above it.
	Position int
}

type Member struct {
	UserID   int64
	Username string
	RoleIDs  []int64
}

// Directory resolves guilds, roles and members.
type Directory interface {
	// Guilds returns the guilds the bot currently serves.
	Guilds() []Guild
	Guild(guildID int64) (Guild, error)
	Role(guildID, roleID int64) (Role, error)
	// Member returns ErrNotFound when the user is not a member of the guild.
	Member(ctx context.Context, guildID, userID int64) (Member, error)
	RoleMembers(ctx context.Context, guildID, roleID int64) ([]int64, error)
	GuildMembers(ctx context.Context, guildID int64) ([]int64, error)
	// Username resolves a user id to an account name, ErrNotFound if unknown.
	Username(ctx context.Context, userID int64) (string, error)
	// BotTopRolePosition returns the position of the bot's highest role in
	// the guild.
	BotTopRolePosition(guildID int64) (int, error)
	// CanManageRoles reports whether the bot holds role-management
	// capability in the guild.
	CanManageRoles(guildID int64) bool
}

// Mutator changes role membership. Each call is a single membership update on
// the platform; implementations map platform errors onto ErrNotFound and
// ErrForbidden.
type Mutator interface {
	AddRoles(ctx context.Context, guildID, userID int64, roleIDs []int64, reason string) error
	RemoveRoles(ctx context.Context, guildID, userID int64, roleIDs []int64, reason string) error
}

// Notifier publishes operational summaries to an external sink, such as a log
// channel. Implementations must tolerate the sink being unconfigured.
type Notifier interface {
	Notify(ctx context.Context, text string)
}
