// Package expiry implements the periodic sweep over the operation log. An
// expired operation has its original roles replaced by the configured
// replacement role per guild; the operation is compacted out of the log only
// once every guild's portion fully resolved, so partial failures retry on the
// next tick.
package expiry

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/awaae001/LN-IdentityGroupRobot/internal/platform"
	"github.com/awaae001/LN-IdentityGroupRobot/internal/storage"
)

// Sweeper drives one expiry pass at a time over the operation log.
type Sweeper struct {
	dir          platform.Directory
	mut          platform.Mutator
	oplog        *storage.OperationLog
	exits        *storage.ExitList
	notifier     platform.Notifier
	replacements map[int64]int64
	window       time.Duration
	log          zerolog.Logger
	now          func() time.Time
}

func New(dir platform.Directory, mut platform.Mutator, oplog *storage.OperationLog, exits *storage.ExitList, notifier platform.Notifier, replacements map[int64]int64, window time.Duration, log zerolog.Logger) *Sweeper {
	return &Sweeper{
		dir:          dir,
		mut:          mut,
		oplog:        oplog,
		exits:        exits,
		notifier:     notifier,
		replacements: replacements,
		window:       window,
		log:          log,
		now:          time.Now,
	}
}

// Summary is the outcome of one sweep pass.
type Summary struct {
	// Compacted counts operations fully processed and removed from the log.
	Compacted int
	// Retained counts expired operations kept for retry.
	Retained int
	// RetainedIDs names the retained operations so a permanently stuck one
	// is visible at the notification sink, not just in the process log.
	RetainedIDs []string
	// AffectedUsers lists every user whose roles were changed this pass.
	AffectedUsers []int64
}

// Run performs one sweep pass. The log is rewritten only when it shrank; an
// optional summary goes to the notifier when anything was compacted.
func (s *Sweeper) Run(ctx context.Context) (Summary, error) {
	entries := s.oplog.Load()
	now := s.now()
	exits := s.exits.LoadAll()

	var sum Summary
	affected := make(map[int64]struct{})
	kept := make([]storage.Entry, 0, len(entries))

	for _, e := range entries {
		// Malformed entries and fade operations are exempt.
		if e.Op == nil || e.Op.Fade {
			kept = append(kept, e)
			continue
		}
		age := now.Sub(time.Unix(e.Op.CreatedAt, 0))
		if age <= e.Op.Window(s.window) {
			kept = append(kept, e)
			continue
		}

		resolved := s.processOperation(ctx, e.Op, exits, affected)
		if resolved {
			sum.Compacted++
			s.log.Info().Str("operation", e.Op.ID).Msg("expired operation compacted")
		} else {
			sum.Retained++
			sum.RetainedIDs = append(sum.RetainedIDs, e.Op.ID)
			kept = append(kept, e)
			s.log.Warn().Str("operation", e.Op.ID).Msg("expired operation retained for retry")
		}
	}

	for uid := range affected {
		sum.AffectedUsers = append(sum.AffectedUsers, uid)
	}
	slices.Sort(sum.AffectedUsers)

	if len(kept) != len(entries) {
		if err := s.oplog.Save(kept); err != nil {
			return sum, fmt.Errorf("compact operation log: %w", err)
		}
	}

	if (sum.Compacted > 0 || sum.Retained > 0) && s.notifier != nil {
		s.notifier.Notify(ctx, s.summaryText(sum))
	}
	return sum, nil
}

// processOperation attempts full replacement for one expired operation.
// Returns true only when every guild assignment resolved without failure.
func (s *Sweeper) processOperation(ctx context.Context, op *storage.Operation, exits map[int64]map[int64]struct{}, affected map[int64]struct{}) bool {
	resolved := true
	for _, ga := range op.Assignments {
		if !s.processAssignment(ctx, op.ID, ga, exits, affected) {
			resolved = false
		}
	}
	return resolved
}

func (s *Sweeper) processAssignment(ctx context.Context, opID string, ga storage.GuildAssignment, exits map[int64]map[int64]struct{}, affected map[int64]struct{}) bool {
	replacement, ok := s.replacements[ga.GuildID]
	if !ok {
		s.log.Warn().Str("operation", opID).Int64("guild", ga.GuildID).Msg("no replacement role configured")
		return false
	}

	if _, err := s.dir.Guild(ga.GuildID); err != nil {
		s.log.Warn().Err(err).Str("operation", opID).Int64("guild", ga.GuildID).Msg("guild inaccessible")
		return false
	}
	if !s.dir.CanManageRoles(ga.GuildID) {
		s.log.Warn().Str("operation", opID).Int64("guild", ga.GuildID).Msg("missing role management capability")
		return false
	}

	// Missing original roles degrade to whichever still resolve.
	liveRoles := make([]int64, 0, len(ga.RoleIDs))
	for _, rid := range ga.RoleIDs {
		if _, err := s.dir.Role(ga.GuildID, rid); err != nil {
			s.log.Warn().Err(err).Int64("guild", ga.GuildID).Int64("role", rid).Msg("original role no longer resolves")
			continue
		}
		liveRoles = append(liveRoles, rid)
	}

	reason := "expired operation " + opID
	ok = true
	for _, uid := range ga.AssignedUserIDs {
		if userOptedOut(exits, ga.RoleIDs, uid) {
			continue
		}

		member, err := s.dir.Member(ctx, ga.GuildID, uid)
		if err != nil {
			if errors.Is(err, platform.ErrNotFound) {
				continue // member left, nothing to unwind
			}
			s.log.Warn().Err(err).Int64("guild", ga.GuildID).Int64("user", uid).Msg("member lookup failed")
			ok = false
			continue
		}

		var held []int64
		for _, rid := range liveRoles {
			if slices.Contains(member.RoleIDs, rid) {
				held = append(held, rid)
			}
		}
		if len(held) > 0 {
			if err := s.mut.RemoveRoles(ctx, ga.GuildID, uid, held, reason); err != nil {
				s.log.Warn().Err(err).Int64("guild", ga.GuildID).Int64("user", uid).Msg("failed to remove expired roles")
				ok = false
				continue
			}
			affected[uid] = struct{}{}
		}

		if !slices.Contains(member.RoleIDs, replacement) {
			if err := s.mut.AddRoles(ctx, ga.GuildID, uid, []int64{replacement}, reason); err != nil {
				s.log.Warn().Err(err).Int64("guild", ga.GuildID).Int64("user", uid).Msg("failed to grant replacement role")
				ok = false
				continue
			}
			affected[uid] = struct{}{}
		}
	}
	return ok
}

// userOptedOut reports whether uid self-removed any of the assignment's
// roles; such users are never handed the replacement role.
func userOptedOut(exits map[int64]map[int64]struct{}, roleIDs []int64, uid int64) bool {
	for _, rid := range roleIDs {
		if users, ok := exits[rid]; ok {
			if _, out := users[uid]; out {
				return true
			}
		}
	}
	return false
}

func (s *Sweeper) summaryText(sum Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Expiry sweep: %d operation(s) compacted, %d retained for retry.", sum.Compacted, sum.Retained)
	if n := len(sum.AffectedUsers); n > 0 {
		fmt.Fprintf(&b, " %d user(s) affected:", n)
		for _, uid := range sum.AffectedUsers {
			fmt.Fprintf(&b, " %d", uid)
		}
	}
	if len(sum.RetainedIDs) > 0 {
		b.WriteString(" Retained operations: " + strings.Join(sum.RetainedIDs, ", ") + ".")
	}
	return b.String()
}
