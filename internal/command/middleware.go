package command

import (
	"context"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/awaae001/LN-IdentityGroupRobot/internal/config"
	"github.com/awaae001/LN-IdentityGroupRobot/internal/metrics"
)

// GuildOnly rejects invocations arriving outside a guild (DMs).
func GuildOnly() Middleware {
	return func(next Command) Command {
		return Wrap(next, func(ctx context.Context, inv *Invocation) error {
			if inv.GuildID == 0 || inv.Event.Member == nil {
				return inv.Respond.Reply(ctx, "This command only works inside a server.")
			}
			return next.Run(ctx, inv)
		})
	}
}

// Authorized gates a command on the admin allowlist or the authorized-role
// allowlist. Denials are answered directly, never escalated.
func Authorized(cfg *config.Config) Middleware {
	return func(next Command) Command {
		return Wrap(next, func(ctx context.Context, inv *Invocation) error {
			if cfg.IsAdmin(inv.UserID) {
				return next.Run(ctx, inv)
			}
			if inv.Event.Member != nil {
				roles := make([]int64, 0, len(inv.Event.Member.Roles))
				for _, r := range inv.Event.Member.Roles {
					if id, err := strconv.ParseInt(r, 10, 64); err == nil {
						roles = append(roles, id)
					}
				}
				if cfg.HasAuthorizedRole(roles) {
					return next.Run(ctx, inv)
				}
			}
			return inv.Respond.Reply(ctx, "You are not authorized to use this command.")
		})
	}
}

// LogInvocations records every invocation with its duration and outcome, and
// bumps the per-command counter.
func LogInvocations(log zerolog.Logger) Middleware {
	return func(next Command) Command {
		return Wrap(next, func(ctx context.Context, inv *Invocation) error {
			metrics.CommandInvocations.WithLabelValues(next.Name()).Inc()
			start := time.Now()
			err := next.Run(ctx, inv)
			evt := log.Info()
			if err != nil {
				evt = log.Error().Err(err)
			}
			evt.Str("command", next.Name()).
				Int64("guild", inv.GuildID).
				Int64("user", inv.UserID).
				Dur("took", time.Since(start)).
				Msg("command handled")
			return err
		})
	}
}
