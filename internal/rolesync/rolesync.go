// Package rolesync reconciles the memberships of two roles across two
// guilds. The diff is pure set math over live membership, never the operation
// log; applying it grants or removes roles per user with independent failure
// handling.
package rolesync

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/rs/zerolog"

	"github.com/awaae001/LN-IdentityGroupRobot/internal/platform"
	"github.com/awaae001/LN-IdentityGroupRobot/pkg/pacer"
)

// Mode selects the reconciliation direction.
type Mode string

const (
	ModeBidirectional Mode = "bidirectional"
	ModePush          Mode = "push"
	ModePull          Mode = "pull"
	ModeRemoveLocal   Mode = "remove-local"
)

var ErrUnknownMode = errors.New("unknown sync mode")

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeBidirectional, ModePush, ModePull, ModeRemoveLocal:
		return Mode(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// Request names the two role/guild pairs to reconcile.
type Request struct {
	LocalGuildID  int64
	LocalRoleID   int64
	RemoteGuildID int64
	RemoteRoleID  int64
	Mode          Mode
}

// Diff is the computed reconciliation plan shown to the operator.
type Diff struct {
	LocalGuild  platform.Guild
	LocalRole   platform.Role
	RemoteGuild platform.Guild
	RemoteRole  platform.Role

	// ToPush holds the role locally, is present in the remote guild, and
	// lacks the role remotely.
	ToPush []int64
	// ToPull is the symmetric case.
	ToPull []int64
	// ToRemove is only populated in remove-local mode: remote role holders
	// who are local guild members and lose the local role.
	ToRemove []int64
}

// InSync reports the short-circuit case: nothing to move in either
// direction. Remove-local mode never short-circuits on it.
func (d *Diff) InSync(mode Mode) bool {
	return mode != ModeRemoveLocal && len(d.ToPush) == 0 && len(d.ToPull) == 0
}

// Report is the outcome of applying a diff.
type Report struct {
	LocalAdded   []int64
	RemoteAdded  []int64
	LocalRemoved []int64
	Failed       map[int64]string
}

// Syncer computes and applies cross-guild role diffs.
type Syncer struct {
	dir  platform.Directory
	mut  platform.Mutator
	pace *pacer.Pacer
	log  zerolog.Logger
}

func New(dir platform.Directory, mut platform.Mutator, pace *pacer.Pacer, log zerolog.Logger) *Syncer {
	return &Syncer{dir: dir, mut: mut, pace: pace, log: log}
}

// Diff resolves both sides and computes the membership sets. Any resolution
// failure aborts before any set is fetched.
func (s *Syncer) Diff(ctx context.Context, req Request) (*Diff, error) {
	d := &Diff{}
	var err error
	if d.LocalGuild, err = s.dir.Guild(req.LocalGuildID); err != nil {
		return nil, fmt.Errorf("resolve local guild: %w", err)
	}
	if d.LocalRole, err = s.dir.Role(req.LocalGuildID, req.LocalRoleID); err != nil {
		return nil, fmt.Errorf("resolve local role: %w", err)
	}
	if d.RemoteGuild, err = s.dir.Guild(req.RemoteGuildID); err != nil {
		return nil, fmt.Errorf("resolve remote guild: %w", err)
	}
	if d.RemoteRole, err = s.dir.Role(req.RemoteGuildID, req.RemoteRoleID); err != nil {
		return nil, fmt.Errorf("resolve remote role: %w", err)
	}

	localRole, err := s.dir.RoleMembers(ctx, req.LocalGuildID, req.LocalRoleID)
	if err != nil {
		return nil, fmt.Errorf("list local role members: %w", err)
	}
	remoteRole, err := s.dir.RoleMembers(ctx, req.RemoteGuildID, req.RemoteRoleID)
	if err != nil {
		return nil, fmt.Errorf("list remote role members: %w", err)
	}
	localGuild, err := s.dir.GuildMembers(ctx, req.LocalGuildID)
	if err != nil {
		return nil, fmt.Errorf("list local guild members: %w", err)
	}
	remoteGuild, err := s.dir.GuildMembers(ctx, req.RemoteGuildID)
	if err != nil {
		return nil, fmt.Errorf("list remote guild members: %w", err)
	}

	d.ToPush = minus(intersect(localRole, remoteGuild), remoteRole)
	d.ToPull = minus(intersect(remoteRole, localGuild), localRole)
	if req.Mode == ModeRemoveLocal {
		d.ToRemove = intersect(remoteRole, localGuild)
	}
	return d, nil
}

// Apply executes the diff per mode. Every grant or removal is attempted
// independently; failures accumulate per user.
func (s *Syncer) Apply(ctx context.Context, req Request, d *Diff) (*Report, error) {
	rep := &Report{Failed: make(map[int64]string)}

	if req.Mode == ModeRemoveLocal {
		reason := fmt.Sprintf("role sync removal from %s", d.RemoteGuild.Name)
		for _, uid := range d.ToRemove {
			if err := s.pace.Wait(ctx); err != nil {
				return rep, err
			}
			if err := s.mut.RemoveRoles(ctx, req.LocalGuildID, uid, []int64{req.LocalRoleID}, reason); err != nil {
				rep.Failed[uid] = err.Error()
				continue
			}
			rep.LocalRemoved = append(rep.LocalRemoved, uid)
		}
		return rep, nil
	}

	if req.Mode == ModePull || req.Mode == ModeBidirectional {
		reason := fmt.Sprintf("role sync from %s", d.RemoteGuild.Name)
		for _, uid := range d.ToPull {
			if err := s.pace.Wait(ctx); err != nil {
				return rep, err
			}
			if err := s.mut.AddRoles(ctx, req.LocalGuildID, uid, []int64{req.LocalRoleID}, reason); err != nil {
				rep.Failed[uid] = err.Error()
				continue
			}
			rep.LocalAdded = append(rep.LocalAdded, uid)
		}
	}
	if req.Mode == ModePush || req.Mode == ModeBidirectional {
		reason := fmt.Sprintf("role sync from %s", d.LocalGuild.Name)
		for _, uid := range d.ToPush {
			if err := s.pace.Wait(ctx); err != nil {
				return rep, err
			}
			if err := s.mut.AddRoles(ctx, req.RemoteGuildID, uid, []int64{req.RemoteRoleID}, reason); err != nil {
				rep.Failed[uid] = err.Error()
				continue
			}
			rep.RemoteAdded = append(rep.RemoteAdded, uid)
		}
	}
	return rep, nil
}

// FailureLines resolves the failed user ids to account names for the
// operator-facing report. Unresolvable ids render as "unknown user (id)".
func (s *Syncer) FailureLines(ctx context.Context, rep *Report) []string {
	ids := make([]int64, 0, len(rep.Failed))
	for uid := range rep.Failed {
		ids = append(ids, uid)
	}
	slices.Sort(ids)

	lines := make([]string, 0, len(ids))
	for _, uid := range ids {
		name, err := s.dir.Username(ctx, uid)
		if err != nil {
			name = fmt.Sprintf("unknown user (%d)", uid)
		}
		lines = append(lines, fmt.Sprintf("%s: %s", name, rep.Failed[uid]))
	}
	return lines
}

func intersect(a, b []int64) []int64 {
	in := make(map[int64]struct{}, len(b))
	for _, id := range b {
		in[id] = struct{}{}
	}
	var out []int64
	for _, id := range a {
		if _, ok := in[id]; ok {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out
}

func minus(a, b []int64) []int64 {
	drop := make(map[int64]struct{}, len(b))
	for _, id := range b {
		drop[id] = struct{}{}
	}
	var out []int64
	for _, id := range a {
		if _, ok := drop[id]; !ok {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out
}
