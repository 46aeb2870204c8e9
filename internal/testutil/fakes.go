// Package testutil provides in-memory fakes of the platform ports for tests
// of the role-management engines.
package testutil

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/awaae001/LN-IdentityGroupRobot/internal/platform"
)

// FakeGuild is the mutable in-memory state behind one guild in FakeDirectory.
type FakeGuild struct {
	Name    string
	Roles   map[int64]platform.Role
	Members map[int64]*platform.Member
	// BotTopPosition is the rank of the bot's highest role; grants require
	// strictly higher rank than the target role.
	BotTopPosition int
	ManageRoles    bool
}

// FakeDirectory implements platform.Directory and platform.Mutator over maps.
// All mutations are guarded by one mutex so tests can exercise concurrent
// paths safely.
type FakeDirectory struct {
	mu     sync.Mutex
	guilds map[int64]*FakeGuild

	// ForbiddenUsers makes AddRoles/RemoveRoles fail with ErrForbidden for
	// these user ids, regardless of guild.
	ForbiddenUsers map[int64]struct{}
	// FailUsers makes mutations fail with a generic error for these users.
	FailUsers map[int64]struct{}

	AddCalls    []MutationCall
	RemoveCalls []MutationCall
}

// MutationCall records one AddRoles/RemoveRoles invocation.
type MutationCall struct {
	GuildID int64
	UserID  int64
	RoleIDs []int64
	Reason  string
}

func NewFakeDirectory() *FakeDirectory {
	return &FakeDirectory{
		guilds:         make(map[int64]*FakeGuild),
		ForbiddenUsers: make(map[int64]struct{}),
		FailUsers:      make(map[int64]struct{}),
	}
}

// AddGuild registers a guild. The default bot rank is high enough to manage
// any role a test creates unless the test lowers it.
func (d *FakeDirectory) AddGuild(id int64, name string) *FakeGuild {
	g := &FakeGuild{
		Name:           name,
		Roles:          make(map[int64]platform.Role),
		Members:        make(map[int64]*platform.Member),
		BotTopPosition: 1000,
		ManageRoles:    true,
	}
	d.guilds[id] = g
	return g
}

func (d *FakeDirectory) AddRole(guildID, roleID int64, name string, position int) {
	d.guilds[guildID].Roles[roleID] = platform.Role{ID: roleID, Name: name, Position: position}
}

func (d *FakeDirectory) AddMember(guildID, userID int64, username string, roleIDs ...int64) {
	d.guilds[guildID].Members[userID] = &platform.Member{
		UserID:   userID,
		Username: username,
		RoleIDs:  slices.Clone(roleIDs),
	}
}

// MemberRoles returns the current role ids of a member, nil if absent.
func (d *FakeDirectory) MemberRoles(guildID, userID int64) []int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	g, ok := d.guilds[guildID]
	if !ok {
		return nil
	}
	m, ok := g.Members[userID]
	if !ok {
		return nil
	}
	return slices.Clone(m.RoleIDs)
}

func (d *FakeDirectory) Guilds() []platform.Guild {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]platform.Guild, 0, len(d.guilds))
	for id, g := range d.guilds {
		out = append(out, platform.Guild{ID: id, Name: g.Name})
	}
	slices.SortFunc(out, func(a, b platform.Guild) int {
		return int(a.ID - b.ID)
	})
	return out
}

func (d *FakeDirectory) Guild(guildID int64) (platform.Guild, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	g, ok := d.guilds[guildID]
	if !ok {
		return platform.Guild{}, fmt.Errorf("guild %d: %w", guildID, platform.ErrNotFound)
	}
	return platform.Guild{ID: guildID, Name: g.Name}, nil
}

func (d *FakeDirectory) Role(guildID, roleID int64) (platform.Role, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	g, ok := d.guilds[guildID]
	if !ok {
		return platform.Role{}, fmt.Errorf("guild %d: %w", guildID, platform.ErrNotFound)
	}
	r, ok := g.Roles[roleID]
	if !ok {
		return platform.Role{}, fmt.Errorf("role %d in guild %d: %w", roleID, guildID, platform.ErrNotFound)
	}
	return r, nil
}

func (d *FakeDirectory) Member(_ context.Context, guildID, userID int64) (platform.Member, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	g, ok := d.guilds[guildID]
	if !ok {
		return platform.Member{}, fmt.Errorf("guild %d: %w", guildID, platform.ErrNotFound)
	}
	m, ok := g.Members[userID]
	if !ok {
		return platform.Member{}, fmt.Errorf("member %d in guild %d: %w", userID, guildID, platform.ErrNotFound)
	}
	return platform.Member{UserID: m.UserID, Username: m.Username, RoleIDs: slices.Clone(m.RoleIDs)}, nil
}

func (d *FakeDirectory) RoleMembers(_ context.Context, guildID, roleID int64) ([]int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	g, ok := d.guilds[guildID]
	if !ok {
		return nil, fmt.Errorf("guild %d: %w", guildID, platform.ErrNotFound)
	}
	var out []int64
	for id, m := range g.Members {
		if slices.Contains(m.RoleIDs, roleID) {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out, nil
}

func (d *FakeDirectory) GuildMembers(_ context.Context, guildID int64) ([]int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	g, ok := d.guilds[guildID]
	if !ok {
		return nil, fmt.Errorf("guild %d: %w", guildID, platform.ErrNotFound)
	}
	out := make([]int64, 0, len(g.Members))
	for id := range g.Members {
		out = append(out, id)
	}
	slices.Sort(out)
	return out, nil
}

func (d *FakeDirectory) Username(_ context.Context, userID int64) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, g := range d.guilds {
		if m, ok := g.Members[userID]; ok {
			return m.Username, nil
		}
	}
	return "", fmt.Errorf("user %d: %w", userID, platform.ErrNotFound)
}

func (d *FakeDirectory) BotTopRolePosition(guildID int64) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	g, ok := d.guilds[guildID]
	if !ok {
		return 0, fmt.Errorf("guild %d: %w", guildID, platform.ErrNotFound)
	}
	return g.BotTopPosition, nil
}

func (d *FakeDirectory) CanManageRoles(guildID int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	g, ok := d.guilds[guildID]
	return ok && g.ManageRoles
}

func (d *FakeDirectory) AddRoles(_ context.Context, guildID, userID int64, roleIDs []int64, reason string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkMutation(userID); err != nil {
		return err
	}
	g, ok := d.guilds[guildID]
	if !ok {
		return fmt.Errorf("guild %d: %w", guildID, platform.ErrNotFound)
	}
	m, ok := g.Members[userID]
	if !ok {
		return fmt.Errorf("member %d: %w", userID, platform.ErrNotFound)
	}
	for _, r := range roleIDs {
		if !slices.Contains(m.RoleIDs, r) {
			m.RoleIDs = append(m.RoleIDs, r)
		}
	}
	slices.Sort(m.RoleIDs)
	d.AddCalls = append(d.AddCalls, MutationCall{GuildID: guildID, UserID: userID, RoleIDs: slices.Clone(roleIDs), Reason: reason})
	return nil
}

func (d *FakeDirectory) RemoveRoles(_ context.Context, guildID, userID int64, roleIDs []int64, reason string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkMutation(userID); err != nil {
		return err
	}
	g, ok := d.guilds[guildID]
	if !ok {
		return fmt.Errorf("guild %d: %w", guildID, platform.ErrNotFound)
	}
	m, ok := g.Members[userID]
	if !ok {
		return fmt.Errorf("member %d: %w", userID, platform.ErrNotFound)
	}
	m.RoleIDs = slices.DeleteFunc(m.RoleIDs, func(r int64) bool {
		return slices.Contains(roleIDs, r)
	})
	d.RemoveCalls = append(d.RemoveCalls, MutationCall{GuildID: guildID, UserID: userID, RoleIDs: slices.Clone(roleIDs), Reason: reason})
	return nil
}

func (d *FakeDirectory) checkMutation(userID int64) error {
	if _, ok := d.ForbiddenUsers[userID]; ok {
		return fmt.Errorf("user %d: %w", userID, platform.ErrForbidden)
	}
	if _, ok := d.FailUsers[userID]; ok {
		return fmt.Errorf("user %d: simulated platform outage", userID)
	}
	return nil
}

// FakeNotifier collects notifications for assertions.
type FakeNotifier struct {
	mu       sync.Mutex
	Messages []string
}

func (n *FakeNotifier) Notify(_ context.Context, text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Messages = append(n.Messages, text)
}

// Last returns the most recent notification, or "".
func (n *FakeNotifier) Last() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.Messages) == 0 {
		return ""
	}
	return n.Messages[len(n.Messages)-1]
}
