// Package assigner orchestrates batch role assignment across guilds: it
// validates requested roles per guild, grants them to a user set one member
// at a time, and records the outcome as an operation in the log so the expiry
// sweep can unwind it later.
package assigner

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"slices"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/awaae001/LN-IdentityGroupRobot/internal/platform"
	"github.com/awaae001/LN-IdentityGroupRobot/internal/storage"
	"github.com/awaae001/LN-IdentityGroupRobot/pkg/pacer"
)

// MaxRoles is the most roles one request may grant together.
const MaxRoles = 3

var (
	ErrNoRoles           = errors.New("no roles requested")
	ErrTooManyRoles      = fmt.Errorf("at most %d roles per assignment", MaxRoles)
	ErrNoUsers           = errors.New("no users resolvable from input")
	ErrNoGuilds          = errors.New("no target guilds")
	ErrOperationNotFound = errors.New("operation not found")
)

// Request is one batch-assignment invocation.
type Request struct {
	// RoleIDs are the roles to grant together, ignored when OperationID is
	// set (top-up reuses the stored role set).
	RoleIDs []int64
	UserIDs []int64
	// GuildIDs are the target guilds, normally every configured guild.
	GuildIDs []int64
	Fade     bool
	// OutTime is the requested expiry window in days, nil for the default.
	OutTime *int
	// OperationID selects an existing operation to top up.
	OperationID string
}

// GuildPlan is the per-guild validation result shown to the operator before
// anything is mutated.
type GuildPlan struct {
	GuildID      int64
	GuildName    string
	Valid        []platform.Role
	InvalidRoles []int64
}

// Plan is a validated request awaiting operator confirmation.
type Plan struct {
	OperationID string
	TopUp       bool
	Fade        bool
	OutTime     *int
	RoleIDs     []int64
	UserIDs     []int64
	Guilds      []GuildPlan
}

// GuildReport is the outcome of executing a plan in one guild.
type GuildReport struct {
	GuildID   int64
	GuildName string
	RoleIDs   []int64
	RoleNames []string
	// Skipped is set when the whole guild was bypassed, e.g. the bot ranks
	// below a requested role.
	Skipped    bool
	SkipReason string
	Succeeded  []int64
	NotFound   []int64
	Forbidden  []int64
	Failed     map[int64]string
}

// Report aggregates a whole run.
type Report struct {
	OperationID string
	TopUp       bool
	Guilds      []GuildReport
}

// Itemization thresholds: past these the per-user lists are dropped from the
// operator-facing report and only counts are shown.
const (
	maxItemizedSuccesses = 50
	maxItemizedFailures  = 20
)

func (r *Report) Successes() int {
	n := 0
	for _, g := range r.Guilds {
		n += len(g.Succeeded)
	}
	return n
}

func (r *Report) Failures() int {
	n := 0
	for _, g := range r.Guilds {
		n += len(g.NotFound) + len(g.Forbidden) + len(g.Failed)
	}
	return n
}

// Itemize reports whether per-user lists fit the presentation layer's
// message-size limits.
func (r *Report) Itemize() bool {
	return r.Successes() <= maxItemizedSuccesses && r.Failures() <= maxItemizedFailures
}

// Assigner wires the directory, the mutator and the operation log together.
type Assigner struct {
	dir   platform.Directory
	mut   platform.Mutator
	oplog *storage.OperationLog
	pace  *pacer.Pacer
	log   zerolog.Logger
	now   func() time.Time
	randn func(n int) int
}

func New(dir platform.Directory, mut platform.Mutator, oplog *storage.OperationLog, pace *pacer.Pacer, log zerolog.Logger) *Assigner {
	return &Assigner{
		dir:   dir,
		mut:   mut,
		oplog: oplog,
		pace:  pace,
		log:   log,
		now:   time.Now,
		randn: rand.Intn,
	}
}

// NewOperationID returns a fresh four-digit operation id.
func (a *Assigner) NewOperationID() string {
	return strconv.Itoa(1000 + a.randn(9000))
}

// Prepare validates the request against every target guild without mutating
// anything. The returned plan is what the operator confirms.
func (a *Assigner) Prepare(req Request) (*Plan, error) {
	if len(req.UserIDs) == 0 {
		return nil, ErrNoUsers
	}
	if len(req.GuildIDs) == 0 {
		return nil, ErrNoGuilds
	}

	plan := &Plan{
		OperationID: req.OperationID,
		Fade:        req.Fade,
		OutTime:     req.OutTime,
		UserIDs:     dedupe(req.UserIDs),
	}

	if req.OperationID != "" {
		op := a.oplog.Find(req.OperationID)
		if op == nil {
			return nil, fmt.Errorf("operation %s: %w", req.OperationID, ErrOperationNotFound)
		}
		plan.TopUp = true
		plan.Fade = op.Fade
		plan.OutTime = op.OutTime
		plan.RoleIDs = op.RoleSet()
	} else {
		if len(req.RoleIDs) == 0 {
			return nil, ErrNoRoles
		}
		if len(req.RoleIDs) > MaxRoles {
			return nil, ErrTooManyRoles
		}
		plan.OperationID = a.NewOperationID()
		plan.RoleIDs = dedupe(req.RoleIDs)
	}

	for _, gid := range req.GuildIDs {
		gp := GuildPlan{GuildID: gid}
		guild, err := a.dir.Guild(gid)
		if err != nil {
			gp.InvalidRoles = slices.Clone(plan.RoleIDs)
			plan.Guilds = append(plan.Guilds, gp)
			continue
		}
		gp.GuildName = guild.Name
		for _, rid := range plan.RoleIDs {
			role, err := a.dir.Role(gid, rid)
			if err != nil {
				gp.InvalidRoles = append(gp.InvalidRoles, rid)
				continue
			}
			gp.Valid = append(gp.Valid, role)
		}
		plan.Guilds = append(plan.Guilds, gp)
	}
	return plan, nil
}

// Execute runs a confirmed plan: per guild, gate on the bot's rank, then
// grant the guild's valid roles to each user with one membership update. The
// resulting operation is persisted even when only some guilds succeed.
func (a *Assigner) Execute(ctx context.Context, plan *Plan) (*Report, error) {
	report := &Report{OperationID: plan.OperationID, TopUp: plan.TopUp}

	// Gate every guild up front so the progress total only counts users in
	// guilds that will actually be processed.
	for _, gp := range plan.Guilds {
		gr := GuildReport{
			GuildID:   gp.GuildID,
			GuildName: gp.GuildName,
			Failed:    make(map[int64]string),
		}
		for _, role := range gp.Valid {
			gr.RoleIDs = append(gr.RoleIDs, role.ID)
			gr.RoleNames = append(gr.RoleNames, role.Name)
		}
		gr.Skipped, gr.SkipReason = a.gateGuild(gp)
		report.Guilds = append(report.Guilds, gr)
	}

	total := 0
	for i := range report.Guilds {
		if !report.Guilds[i].Skipped {
			total += len(plan.UserIDs)
		}
	}
	done := 0

	for i := range report.Guilds {
		gr := &report.Guilds[i]
		if gr.Skipped {
			continue
		}

		reason := "batch role assignment " + plan.OperationID
		for _, uid := range plan.UserIDs {
			if err := a.pace.Wait(ctx); err != nil {
				return report, err
			}
			if _, err := a.dir.Member(ctx, gr.GuildID, uid); err != nil {
				if errors.Is(err, platform.ErrNotFound) {
					gr.NotFound = append(gr.NotFound, uid)
				} else {
					gr.Failed[uid] = err.Error()
				}
				done++
				a.pace.Step(done, total)
				continue
			}

			err := a.mut.AddRoles(ctx, gr.GuildID, uid, gr.RoleIDs, reason)
			switch {
			case err == nil:
				gr.Succeeded = append(gr.Succeeded, uid)
			case errors.Is(err, platform.ErrForbidden):
				gr.Forbidden = append(gr.Forbidden, uid)
			case errors.Is(err, platform.ErrNotFound):
				gr.NotFound = append(gr.NotFound, uid)
			default:
				gr.Failed[uid] = err.Error()
			}
			done++
			a.pace.Step(done, total)
		}
	}

	if err := a.persist(plan, report); err != nil {
		// The in-memory report stands; the durable record may be stale.
		a.log.Error().Err(err).Str("operation", plan.OperationID).Msg("failed to persist operation")
	}
	return report, nil
}

// gateGuild decides whether a whole guild is bypassed: no valid roles, an
// unknown bot rank, or a requested role ranking at or above the bot's top
// role.
func (a *Assigner) gateGuild(gp GuildPlan) (bool, string) {
	if len(gp.Valid) == 0 {
		return true, "no requested role exists in this guild"
	}
	botPos, err := a.dir.BotTopRolePosition(gp.GuildID)
	if err != nil {
		return true, "could not determine bot role rank"
	}
	for _, role := range gp.Valid {
		if role.Position >= botPos {
			return true, fmt.Sprintf("role '%s' ranks above the bot", role.Name)
		}
	}
	return false, ""
}

// persist merges the run's successes into the operation log. Nothing is
// written when no guild succeeded on a fresh operation.
func (a *Assigner) persist(plan *Plan, report *Report) error {
	anySuccess := false
	for _, gr := range report.Guilds {
		if len(gr.Succeeded) > 0 {
			anySuccess = true
			break
		}
	}
	if !anySuccess && !plan.TopUp {
		return nil
	}

	op := a.oplog.Find(plan.OperationID)
	if op == nil {
		op = &storage.Operation{
			ID:        plan.OperationID,
			Fade:      plan.Fade,
			OutTime:   plan.OutTime,
			CreatedAt: a.now().Unix(),
		}
	}

	stamp := a.now().UTC().Format(time.RFC3339)
	for _, gr := range report.Guilds {
		if len(gr.Succeeded) == 0 {
			continue
		}
		ga := op.Assignment(gr.GuildID)
		if ga == nil {
			op.Assignments = append(op.Assignments, storage.GuildAssignment{
				GuildID:     gr.GuildID,
				GuildName:   gr.GuildName,
				RoleIDs:     slices.Clone(gr.RoleIDs),
				RoleNames:   slices.Clone(gr.RoleNames),
				OperationID: op.ID,
				Timestamp:   stamp,
			})
			ga = op.Assignment(gr.GuildID)
		}
		ga.MergeUsers(gr.Succeeded)
	}

	return a.oplog.Upsert(op)
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
