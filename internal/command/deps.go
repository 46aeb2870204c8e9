package command

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/awaae001/LN-IdentityGroupRobot/internal/config"
	"github.com/awaae001/LN-IdentityGroupRobot/internal/platform"
	"github.com/awaae001/LN-IdentityGroupRobot/internal/projection"
	"github.com/awaae001/LN-IdentityGroupRobot/internal/storage"
)

// Deps bundles everything the commands operate on. Built once in main and
// shared; per-invocation state (pacers, responders) is created per run.
type Deps struct {
	Cfg        *config.Config
	Dir        platform.Directory
	Mut        platform.Mutator
	Oplog      *storage.OperationLog
	Exits      *storage.ExitList
	Groups     *storage.GroupStore
	Panels     *storage.PanelStore
	Projection *projection.Store
	Log        zerolog.Logger
	StartedAt  time.Time
}

// RegisterAll builds the full command surface with the standard middleware
// chain: invocation logging outermost, then guild gating, then authorization
// where the command mutates state.
func RegisterAll(reg *Registry, deps *Deps) {
	logged := LogInvocations(deps.Log)
	guarded := []Middleware{Authorized(deps.Cfg), GuildOnly(), logged}
	open := []Middleware{GuildOnly(), logged}

	reg.Register(Apply(&AssignRoles{deps: deps}, guarded...))
	reg.Register(Apply(&SyncRole{deps: deps}, guarded...))
	reg.Register(Apply(&RemoveRole{deps: deps}, guarded...))
	reg.Register(Apply(&RoleMembers{deps: deps}, guarded...))
	reg.Register(Apply(&RoleGroupCmd{deps: deps}, guarded...))
	reg.Register(Apply(&MyRoles{deps: deps}, open...))
	reg.Register(Apply(&Status{deps: deps}, open...))
}
