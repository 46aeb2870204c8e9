package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/bwmarrin/discordgo"

	"github.com/awaae001/LN-IdentityGroupRobot/internal/platform"
)

// Adapter implements platform.Directory and platform.Mutator over a
// discordgo session. Ids are int64 in the core and snowflake strings on the
// wire; the adapter converts at the boundary.
type Adapter struct {
	s *discordgo.Session
}

func NewAdapter(s *discordgo.Session) *Adapter {
	return &Adapter{s: s}
}

func sid(id int64) string { return strconv.FormatInt(id, 10) }

func parseID(s string) int64 {
	id, _ := strconv.ParseInt(s, 10, 64)
	return id
}

// mapError folds discordgo REST errors onto the platform sentinels.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var rest *discordgo.RESTError
	if errors.As(err, &rest) && rest.Response != nil {
		switch rest.Response.StatusCode {
		case http.StatusNotFound:
			return fmt.Errorf("%w: %v", platform.ErrNotFound, err)
		case http.StatusForbidden:
			return fmt.Errorf("%w: %v", platform.ErrForbidden, err)
		}
	}
	return err
}

func (a *Adapter) Guilds() []platform.Guild {
	out := make([]platform.Guild, 0, len(a.s.State.Guilds))
	for _, g := range a.s.State.Guilds {
		out = append(out, platform.Guild{ID: parseID(g.ID), Name: g.Name})
	}
	return out
}

func (a *Adapter) Guild(guildID int64) (platform.Guild, error) {
	g, err := a.s.State.Guild(sid(guildID))
	if err != nil {
		if g, err = a.s.Guild(sid(guildID)); err != nil {
			return platform.Guild{}, mapError(err)
		}
	}
	return platform.Guild{ID: guildID, Name: g.Name}, nil
}

func (a *Adapter) Role(guildID, roleID int64) (platform.Role, error) {
	role, err := a.s.State.Role(sid(guildID), sid(roleID))
	if err != nil {
		roles, rerr := a.s.GuildRoles(sid(guildID))
		if rerr != nil {
			return platform.Role{}, mapError(rerr)
		}
		for _, r := range roles {
			if r.ID == sid(roleID) {
				role = r
				break
			}
		}
		if role == nil {
			return platform.Role{}, fmt.Errorf("role %d in guild %d: %w", roleID, guildID, platform.ErrNotFound)
		}
	}
	return platform.Role{ID: roleID, Name: role.Name, Position: role.Position}, nil
}

func (a *Adapter) Member(ctx context.Context, guildID, userID int64) (platform.Member, error) {
	m, err := a.s.GuildMember(sid(guildID), sid(userID), discordgo.WithContext(ctx))
	if err != nil {
		return platform.Member{}, mapError(err)
	}
	roles := make([]int64, 0, len(m.Roles))
	for _, r := range m.Roles {
		roles = append(roles, parseID(r))
	}
	name := ""
	if m.User != nil {
		name = m.User.Username
	}
	return platform.Member{UserID: userID, Username: name, RoleIDs: roles}, nil
}

func (a *Adapter) RoleMembers(ctx context.Context, guildID, roleID int64) ([]int64, error) {
	var out []int64
	err := a.eachMember(ctx, guildID, func(m *discordgo.Member) {
		for _, r := range m.Roles {
			if r == sid(roleID) {
				out = append(out, parseID(m.User.ID))
				return
			}
		}
	})
	return out, err
}

func (a *Adapter) GuildMembers(ctx context.Context, guildID int64) ([]int64, error) {
	var out []int64
	err := a.eachMember(ctx, guildID, func(m *discordgo.Member) {
		out = append(out, parseID(m.User.ID))
	})
	return out, err
}

// eachMember pages through the guild's full member list.
func (a *Adapter) eachMember(ctx context.Context, guildID int64, fn func(*discordgo.Member)) error {
	after := ""
	for {
		page, err := a.s.GuildMembers(sid(guildID), after, 1000, discordgo.WithContext(ctx))
		if err != nil {
			return mapError(err)
		}
		for _, m := range page {
			if m.User == nil {
				continue
			}
			fn(m)
			after = m.User.ID
		}
		if len(page) < 1000 {
			return nil
		}
	}
}

func (a *Adapter) Username(ctx context.Context, userID int64) (string, error) {
	u, err := a.s.User(sid(userID), discordgo.WithContext(ctx))
	if err != nil {
		return "", mapError(err)
	}
	return u.Username, nil
}

func (a *Adapter) BotTopRolePosition(guildID int64) (int, error) {
	g, err := a.s.State.Guild(sid(guildID))
	if err != nil {
		return 0, mapError(err)
	}
	me, err := a.s.State.Member(sid(guildID), a.s.State.User.ID)
	if err != nil {
		if me, err = a.s.GuildMember(sid(guildID), a.s.State.User.ID); err != nil {
			return 0, mapError(err)
		}
	}
	top := 0
	for _, rid := range me.Roles {
		for _, role := range g.Roles {
			if role.ID == rid && role.Position > top {
				top = role.Position
			}
		}
	}
	return top, nil
}

func (a *Adapter) CanManageRoles(guildID int64) bool {
	g, err := a.s.State.Guild(sid(guildID))
	if err != nil {
		return false
	}
	me, err := a.s.State.Member(sid(guildID), a.s.State.User.ID)
	if err != nil {
		return false
	}
	for _, rid := range me.Roles {
		for _, role := range g.Roles {
			if role.ID == rid && role.Permissions&(discordgo.PermissionManageRoles|discordgo.PermissionAdministrator) != 0 {
				return true
			}
		}
	}
	return false
}

// AddRoles grants roleIDs in one member edit, preserving existing roles.
func (a *Adapter) AddRoles(ctx context.Context, guildID, userID int64, roleIDs []int64, reason string) error {
	m, err := a.s.GuildMember(sid(guildID), sid(userID), discordgo.WithContext(ctx))
	if err != nil {
		return mapError(err)
	}
	roles := make([]string, 0, len(m.Roles)+len(roleIDs))
	roles = append(roles, m.Roles...)
	for _, rid := range roleIDs {
		if !contains(roles, sid(rid)) {
			roles = append(roles, sid(rid))
		}
	}
	_, err = a.s.GuildMemberEdit(sid(guildID), sid(userID),
		&discordgo.GuildMemberParams{Roles: &roles},
		discordgo.WithContext(ctx), discordgo.WithAuditLogReason(reason))
	return mapError(err)
}

// RemoveRoles removes roleIDs in one member edit.
func (a *Adapter) RemoveRoles(ctx context.Context, guildID, userID int64, roleIDs []int64, reason string) error {
	m, err := a.s.GuildMember(sid(guildID), sid(userID), discordgo.WithContext(ctx))
	if err != nil {
		return mapError(err)
	}
	drop := make(map[string]struct{}, len(roleIDs))
	for _, rid := range roleIDs {
		drop[sid(rid)] = struct{}{}
	}
	roles := make([]string, 0, len(m.Roles))
	for _, r := range m.Roles {
		if _, ok := drop[r]; !ok {
			roles = append(roles, r)
		}
	}
	_, err = a.s.GuildMemberEdit(sid(guildID), sid(userID),
		&discordgo.GuildMemberParams{Roles: &roles},
		discordgo.WithContext(ctx), discordgo.WithAuditLogReason(reason))
	return mapError(err)
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
