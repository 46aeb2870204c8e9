package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// exitRecord is the on-disk shape of one role's exit list. User ids are
// stored as strings, matching the historical file format.
type exitRecord struct {
	RoleID string   `json:"roleid"`
	Data   []string `json:"data"`
}

// ExitList tracks, per role, the users who removed that role themselves.
// The expiry sweep consults it to avoid handing those users the replacement
// role after their operation expires. One JSON file per role id.
type ExitList struct {
	dir string
	mu  sync.Mutex
	log zerolog.Logger
}

func NewExitList(dir string, log zerolog.Logger) *ExitList {
	return &ExitList{dir: dir, log: log}
}

func (e *ExitList) path(roleID int64) string {
	return filepath.Join(e.dir, strconv.FormatInt(roleID, 10)+".json")
}

// Add records that userID opted out of roleID. Idempotent.
func (e *ExitList) Add(roleID, userID int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	rec := e.load(roleID)
	uid := strconv.FormatInt(userID, 10)
	if slices.Contains(rec.Data, uid) {
		return nil
	}
	rec.Data = append(rec.Data, uid)
	return e.save(roleID, rec)
}

// Remove drops userID from roleID's record, e.g. when the user takes the
// role back on. Missing entries are not an error.
func (e *ExitList) Remove(roleID, userID int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	rec := e.load(roleID)
	uid := strconv.FormatInt(userID, 10)
	i := slices.Index(rec.Data, uid)
	if i < 0 {
		return nil
	}
	rec.Data = slices.Delete(rec.Data, i, i+1)
	return e.save(roleID, rec)
}

// Contains reports whether userID opted out of roleID.
func (e *ExitList) Contains(roleID, userID int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Contains(e.load(roleID).Data, strconv.FormatInt(userID, 10))
}

// Users returns the opted-out user ids for a role.
func (e *ExitList) Users(roleID int64) []int64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	rec := e.load(roleID)
	out := make([]int64, 0, len(rec.Data))
	for _, s := range rec.Data {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, id)
	}
	return out
}

// LoadAll reads every record once, keyed by role id. The sweep uses this to
// avoid re-reading files per user.
func (e *ExitList) LoadAll() map[int64]map[int64]struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make(map[int64]map[int64]struct{})
	names, err := os.ReadDir(e.dir)
	if err != nil {
		if !os.IsNotExist(err) {
			e.log.Error().Err(err).Str("dir", e.dir).Msg("failed to list exit records")
		}
		return out
	}

	for _, entry := range names {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		roleID, err := strconv.ParseInt(strings.TrimSuffix(name, ".json"), 10, 64)
		if err != nil {
			continue
		}
		users := make(map[int64]struct{})
		for _, s := range e.load(roleID).Data {
			if uid, err := strconv.ParseInt(s, 10, 64); err == nil {
				users[uid] = struct{}{}
			}
		}
		out[roleID] = users
	}
	return out
}

func (e *ExitList) load(roleID int64) exitRecord {
	rec := exitRecord{RoleID: strconv.FormatInt(roleID, 10)}
	data, err := os.ReadFile(e.path(roleID))
	if err != nil {
		if !os.IsNotExist(err) {
			e.log.Error().Err(err).Int64("role", roleID).Msg("failed to read exit record")
		}
		return rec
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		e.log.Error().Err(err).Int64("role", roleID).Msg("exit record is corrupt, treating as empty")
		rec.Data = nil
	}
	if rec.RoleID == "" {
		rec.RoleID = strconv.FormatInt(roleID, 10)
	}
	return rec
}

func (e *ExitList) save(roleID int64, rec exitRecord) error {
	if rec.Data == nil {
		rec.Data = []string{}
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal exit record: %w", err)
	}
	if err := NewFile(e.path(roleID)).Write(data); err != nil {
		return fmt.Errorf("save exit record for role %d: %w", roleID, err)
	}
	return nil
}
