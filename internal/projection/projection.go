// Package projection derives a user-centric index from the operation log:
// which roles each user was granted in each guild. The output is purely
// derived state, rebuilt from scratch on every run, and safe to delete.
package projection

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/rs/zerolog"

	"github.com/awaae001/LN-IdentityGroupRobot/internal/storage"
)

// Index maps user id -> guild id -> sorted role ids.
type Index map[int64]map[int64][]int64

// Build computes the index from the full operation log. Role ids per
// (user, guild) pair are unioned across operations. Malformed entries carry
// no parsed operation and contribute nothing.
func Build(entries []storage.Entry) Index {
	sets := make(map[int64]map[int64]map[int64]struct{})
	for _, e := range entries {
		if e.Op == nil {
			continue
		}
		for _, a := range e.Op.Assignments {
			for _, uid := range a.AssignedUserIDs {
				guilds, ok := sets[uid]
				if !ok {
					guilds = make(map[int64]map[int64]struct{})
					sets[uid] = guilds
				}
				roles, ok := guilds[a.GuildID]
				if !ok {
					roles = make(map[int64]struct{})
					guilds[a.GuildID] = roles
				}
				for _, rid := range a.RoleIDs {
					roles[rid] = struct{}{}
				}
			}
		}
	}

	idx := make(Index, len(sets))
	for uid, guilds := range sets {
		idx[uid] = make(map[int64][]int64, len(guilds))
		for gid, roles := range guilds {
			sorted := make([]int64, 0, len(roles))
			for rid := range roles {
				sorted = append(sorted, rid)
			}
			slices.Sort(sorted)
			idx[uid][gid] = sorted
		}
	}
	return idx
}

// Roles returns the recorded role ids for a user in a guild, or nil.
func (i Index) Roles(userID, guildID int64) []int64 {
	return i[userID][guildID]
}

// Users returns how many users the index covers.
func (i Index) Users() int { return len(i) }

// Store persists the index as a single JSON file and rebuilds it from the
// operation log on demand.
type Store struct {
	file *storage.File
	log  zerolog.Logger
}

func NewStore(path string, log zerolog.Logger) *Store {
	return &Store{file: storage.NewFile(path), log: log}
}

// Rebuild recomputes the index from the log and overwrites the output file.
func (s *Store) Rebuild(oplog *storage.OperationLog) (Index, error) {
	idx := Build(oplog.Load())
	if err := s.Save(idx); err != nil {
		return nil, err
	}
	s.log.Info().Int("users", idx.Users()).Msg("rebuilt user role projection")
	return idx, nil
}

func (s *Store) Save(idx Index) error {
	data, err := json.MarshalIndent(idx, "", "    ")
	if err != nil {
		return fmt.Errorf("marshal projection: %w", err)
	}
	if err := s.file.Write(data); err != nil {
		return fmt.Errorf("save projection: %w", err)
	}
	return nil
}

// Load reads the persisted index. A missing or corrupt file yields an empty
// index, since the next rebuild recreates it anyway.
func (s *Store) Load() Index {
	data, err := s.file.Read()
	if err != nil {
		s.log.Error().Err(err).Str("file", s.file.Path()).Msg("failed to read projection")
		return Index{}
	}
	if len(data) == 0 {
		return Index{}
	}
	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		s.log.Error().Err(err).Str("file", s.file.Path()).Msg("projection is corrupt, will be rebuilt")
		return Index{}
	}
	return idx
}
