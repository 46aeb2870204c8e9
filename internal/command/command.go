// Package command defines the slash command surface: the command contract,
// the registry the Discord adapter dispatches from, and the middleware chain
// applied to every command.
package command

import (
	"context"
	"sort"
	"strconv"

	"github.com/bwmarrin/discordgo"
)

// Responder is how a command talks back to the invoking operator. The
// Discord adapter binds one to the originating interaction; tests substitute
// a recorder.
type Responder interface {
	// Reply sends the initial (ephemeral) response.
	Reply(ctx context.Context, text string) error
	// Edit rewrites the initial response, used for progress and final
	// reports.
	Edit(ctx context.Context, text string) error
	// Confirm presents a yes/no gate and waits for the operator. Timeout
	// counts as declined.
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// Invocation carries one slash command invocation.
type Invocation struct {
	Session *discordgo.Session
	Event   *discordgo.InteractionCreate
	GuildID int64
	UserID  int64
	Respond Responder
}

// Option returns a named option from the invocation, or nil.
func (inv *Invocation) Option(name string) *discordgo.ApplicationCommandInteractionDataOption {
	for _, opt := range inv.Event.ApplicationCommandData().Options {
		if opt.Name == name {
			return opt
		}
	}
	return nil
}

// StringOption returns a string option's value, or "".
func (inv *Invocation) StringOption(name string) string {
	if opt := inv.Option(name); opt != nil {
		return opt.StringValue()
	}
	return ""
}

// BoolOption returns a bool option's value, or false.
func (inv *Invocation) BoolOption(name string) bool {
	if opt := inv.Option(name); opt != nil {
		return opt.BoolValue()
	}
	return false
}

// IntOption returns an integer option's value and whether it was supplied.
func (inv *Invocation) IntOption(name string) (int64, bool) {
	if opt := inv.Option(name); opt != nil {
		return opt.IntValue(), true
	}
	return 0, false
}

// SnowflakeOption parses a string option as an id. Returns 0 when absent or
// malformed.
func (inv *Invocation) SnowflakeOption(name string) int64 {
	id, err := strconv.ParseInt(inv.StringOption(name), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// RoleOption returns a role option's id, or 0.
func (inv *Invocation) RoleOption(name string) int64 {
	opt := inv.Option(name)
	if opt == nil {
		return 0
	}
	return parseSnowflake(opt.Value)
}

func parseSnowflake(v any) int64 {
	s, ok := v.(string)
	if !ok {
		return 0
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// Command is one slash command: identity, registration payload, execution.
type Command interface {
	Name() string
	Description() string
	// Definition is the application command sent to Discord on startup.
	Definition() *discordgo.ApplicationCommand
	Run(ctx context.Context, inv *Invocation) error
}

// Middleware wraps a command; the first middleware applied is the outermost.
type Middleware func(Command) Command

func Apply(c Command, mws ...Middleware) Command {
	for _, mw := range mws {
		c = mw(c)
	}
	return c
}

// wrapped lets middleware replace Run while delegating identity to the inner
// command.
type wrapped struct {
	Command
	run func(ctx context.Context, inv *Invocation) error
}

func (w *wrapped) Run(ctx context.Context, inv *Invocation) error {
	return w.run(ctx, inv)
}

func (w *wrapped) Unwrap() Command { return w.Command }

// Wrap builds a middleware-wrapped command around c.
func Wrap(c Command, run func(ctx context.Context, inv *Invocation) error) Command {
	return &wrapped{Command: c, run: run}
}

// Root strips all middleware layers, exposing the underlying command so the
// dispatcher can reach optional interfaces such as ComponentHandler.
func Root(c Command) Command {
	for {
		u, ok := c.(interface{ Unwrap() Command })
		if !ok {
			return c
		}
		c = u.Unwrap()
	}
}

// ComponentHandler is implemented by commands that own message components.
// The dispatcher routes a parsed component action to the command whose name
// tags the custom id; args are the remaining id segments.
type ComponentHandler interface {
	HandleComponent(ctx context.Context, inv *Invocation, args []string) error
}

// MessageDeleteHandler is implemented by commands that keep state keyed to
// messages they posted, so deleting the message tears the state down.
type MessageDeleteHandler interface {
	HandleMessageDelete(ctx context.Context, messageID int64) error
}

// Registry stores commands by name. Dispatch itself lives in the Discord
// adapter.
type Registry struct {
	commands map[string]Command
}

func NewRegistry() *Registry {
	return &Registry{commands: make(map[string]Command)}
}

func (r *Registry) Register(c Command) {
	r.commands[c.Name()] = c
}

func (r *Registry) Get(name string) (Command, bool) {
	c, ok := r.commands[name]
	return c, ok
}

// All returns every registered command sorted by name.
func (r *Registry) All() []Command {
	list := make([]Command, 0, len(r.commands))
	for _, c := range r.commands {
		list = append(list, c)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name() < list[j].Name() })
	return list
}
