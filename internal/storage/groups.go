package storage

import (
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"github.com/rs/zerolog"
)

// RoleGroup is one named group in the role mapping table. Data maps role id
// (as a string, historical format) to display name.
type RoleGroup struct {
	Name string            `json:"name"`
	Data map[string]string `json:"data"`
}

// GroupStore is the role-group mapping table used for display names and
// self-service role pickers. Add/remove go through one mutex so concurrent
// command invocations cannot interleave their load-mutate-save cycles.
type GroupStore struct {
	file *File
	mu   sync.Mutex
	log  zerolog.Logger
}

func NewGroupStore(path string, log zerolog.Logger) *GroupStore {
	return &GroupStore{file: NewFile(path), log: log}
}

// Groups returns the whole mapping table.
func (g *GroupStore) Groups() map[string]RoleGroup {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.load()
}

// CreateGroup adds an empty group. Fails if the id is taken.
func (g *GroupStore) CreateGroup(groupID, name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	groups := g.load()
	if _, ok := groups[groupID]; ok {
		return fmt.Errorf("group '%s' already exists", groupID)
	}
	groups[groupID] = RoleGroup{Name: name, Data: map[string]string{}}
	return g.save(groups)
}

// AddRole maps a role id to a display name inside a group.
func (g *GroupStore) AddRole(groupID string, roleID int64, roleName string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	groups := g.load()
	group, ok := groups[groupID]
	if !ok {
		return fmt.Errorf("group '%s' not found", groupID)
	}
	if group.Data == nil {
		group.Data = map[string]string{}
	}
	key := strconv.FormatInt(roleID, 10)
	if _, exists := group.Data[key]; exists {
		return fmt.Errorf("role %d already in group '%s'", roleID, groupID)
	}
	group.Data[key] = roleName
	groups[groupID] = group
	return g.save(groups)
}

// RemoveRole drops a role id from a group.
func (g *GroupStore) RemoveRole(groupID string, roleID int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	groups := g.load()
	group, ok := groups[groupID]
	if !ok {
		return fmt.Errorf("group '%s' not found", groupID)
	}
	key := strconv.FormatInt(roleID, 10)
	if _, exists := group.Data[key]; !exists {
		return fmt.Errorf("role %d not in group '%s'", roleID, groupID)
	}
	delete(group.Data, key)
	groups[groupID] = group
	return g.save(groups)
}

// RoleName resolves a role id to its display name across all groups.
func (g *GroupStore) RoleName(roleID int64) (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	key := strconv.FormatInt(roleID, 10)
	for _, group := range g.load() {
		if name, ok := group.Data[key]; ok {
			return name, true
		}
	}
	return "", false
}

func (g *GroupStore) load() map[string]RoleGroup {
	out := make(map[string]RoleGroup)
	data, err := g.file.Read()
	if err != nil {
		g.log.Error().Err(err).Str("file", g.file.Path()).Msg("failed to read role mapping table")
		return out
	}
	if len(data) == 0 {
		return out
	}
	if err := json.Unmarshal(data, &out); err != nil {
		g.log.Error().Err(err).Str("file", g.file.Path()).Msg("role mapping table is corrupt, treating as empty")
		return make(map[string]RoleGroup)
	}
	return out
}

func (g *GroupStore) save(groups map[string]RoleGroup) error {
	data, err := json.MarshalIndent(groups, "", "    ")
	if err != nil {
		return fmt.Errorf("marshal role mapping table: %w", err)
	}
	if err := g.file.Write(data); err != nil {
		return fmt.Errorf("save role mapping table: %w", err)
	}
	return nil
}
