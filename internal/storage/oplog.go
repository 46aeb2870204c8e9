package storage

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog"
)

// GuildAssignment records the roles granted in one guild as part of an
// operation, and the users who successfully received all of them.
type GuildAssignment struct {
	GuildID         int64    `json:"guild_id"`
	GuildName       string   `json:"guild_name,omitempty"`
	RoleIDs         []int64  `json:"role_ids"`
	RoleNames       []string `json:"role_names,omitempty"`
	AssignedUserIDs []int64  `json:"assigned_user_ids"`
	OperationID     string   `json:"operation_id,omitempty"`
	Timestamp       string   `json:"timestamp,omitempty"`
}

// MergeUsers unions ids into the assignment's user set. Duplicates collapse;
// the stored order is ascending so repeated saves are byte-stable.
func (a *GuildAssignment) MergeUsers(ids []int64) {
	seen := make(map[int64]struct{}, len(a.AssignedUserIDs)+len(ids))
	for _, id := range a.AssignedUserIDs {
		seen[id] = struct{}{}
	}
	for _, id := range ids {
		seen[id] = struct{}{}
	}
	merged := make([]int64, 0, len(seen))
	for id := range seen {
		merged = append(merged, id)
	}
	slices.Sort(merged)
	a.AssignedUserIDs = merged
}

// Operation is one tracked batch-assignment event spanning one or more guilds.
type Operation struct {
	ID          string            `json:"operation_id"`
	Fade        bool              `json:"fade"`
	OutTime     *int              `json:"outtime"`
	CreatedAt   int64             `json:"timestamp"`
	Assignments []GuildAssignment `json:"data"`
}

// Assignment returns the entry for guildID, or nil.
func (o *Operation) Assignment(guildID int64) *GuildAssignment {
	for i := range o.Assignments {
		if o.Assignments[i].GuildID == guildID {
			return &o.Assignments[i]
		}
	}
	return nil
}

// RoleSet returns the union of role ids across all guilds, deduplicated and
// sorted. Used when topping up an existing operation.
func (o *Operation) RoleSet() []int64 {
	seen := make(map[int64]struct{})
	for _, a := range o.Assignments {
		for _, r := range a.RoleIDs {
			seen[r] = struct{}{}
		}
	}
	out := make([]int64, 0, len(seen))
	for r := range seen {
		out = append(out, r)
	}
	slices.Sort(out)
	return out
}

// Window returns the operation's expiry window: its own outtime in days when
// set and positive, the default otherwise.
func (o *Operation) Window(def time.Duration) time.Duration {
	if o.OutTime != nil && *o.OutTime > 0 {
		return time.Duration(*o.OutTime) * 24 * time.Hour
	}
	return def
}

// Entry is one element of the on-disk log. A well-formed element carries a
// parsed Operation; anything else keeps its raw JSON so a schema surprise
// never silently drops a record on compaction.
type Entry struct {
	Raw json.RawMessage
	Op  *Operation
}

// MarshalJSON writes untouched entries back verbatim; only entries rebuilt
// in memory (no raw bytes) are re-serialized from the parsed operation.
func (e Entry) MarshalJSON() ([]byte, error) {
	if len(e.Raw) > 0 {
		return e.Raw, nil
	}
	if e.Op == nil {
		return []byte("null"), nil
	}
	return json.Marshal([2]any{e.Op.ID, e.Op})
}

// OperationLog is the append-only-ish assignment log, stored as a list of
// [operation_id, operation] pairs in creation order.
type OperationLog struct {
	file *File
	log  zerolog.Logger
}

func NewOperationLog(path string, log zerolog.Logger) *OperationLog {
	return &OperationLog{file: NewFile(path), log: log}
}

func (l *OperationLog) Path() string { return l.file.Path() }

// Load reads the log. A missing or unparseable file yields an empty log;
// corruption is logged, not fatal.
func (l *OperationLog) Load() []Entry {
	data, err := l.file.Read()
	if err != nil {
		l.log.Error().Err(err).Str("file", l.file.Path()).Msg("failed to read operation log")
		return nil
	}
	if len(data) == 0 {
		return nil
	}

	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		l.log.Error().Err(err).Str("file", l.file.Path()).Msg("operation log is not a JSON list, treating as empty")
		return nil
	}

	entries := make([]Entry, 0, len(raws))
	for _, raw := range raws {
		entries = append(entries, parseEntry(raw))
	}
	return entries
}

// parseEntry accepts only the full pair shape with a numeric timestamp and a
// data list; everything else stays raw.
func parseEntry(raw json.RawMessage) Entry {
	var pair []json.RawMessage
	if err := json.Unmarshal(raw, &pair); err != nil || len(pair) != 2 {
		return Entry{Raw: raw}
	}

	var id string
	if err := json.Unmarshal(pair[0], &id); err != nil {
		return Entry{Raw: raw}
	}

	var probe struct {
		ID        string             `json:"operation_id"`
		Fade      bool               `json:"fade"`
		OutTime   *int               `json:"outtime"`
		Timestamp *json.Number       `json:"timestamp"`
		Data      *[]GuildAssignment `json:"data"`
	}
	if err := json.Unmarshal(pair[1], &probe); err != nil || probe.Timestamp == nil || probe.Data == nil {
		return Entry{Raw: raw}
	}

	created, err := probe.Timestamp.Int64()
	if err != nil {
		f, ferr := probe.Timestamp.Float64()
		if ferr != nil {
			return Entry{Raw: raw}
		}
		created = int64(f)
	}

	op := &Operation{
		ID:          id,
		Fade:        probe.Fade,
		OutTime:     probe.OutTime,
		CreatedAt:   created,
		Assignments: *probe.Data,
	}
	if probe.ID != "" {
		op.ID = probe.ID
	}
	return Entry{Raw: raw, Op: op}
}

// Save rewrites the whole log.
func (l *OperationLog) Save(entries []Entry) error {
	if entries == nil {
		entries = []Entry{}
	}
	data, err := json.MarshalIndent(entries, "", "    ")
	if err != nil {
		return fmt.Errorf("marshal operation log: %w", err)
	}
	if err := l.file.Write(data); err != nil {
		return fmt.Errorf("save operation log: %w", err)
	}
	return nil
}

// Find returns the operation with the given id, or nil.
func (l *OperationLog) Find(id string) *Operation {
	for _, e := range l.Load() {
		if e.Op != nil && e.Op.ID == id {
			return e.Op
		}
	}
	return nil
}

// Upsert replaces the entry with op's id, or appends op at the end. The
// caller is responsible for having merged user sets on top-up.
func (l *OperationLog) Upsert(op *Operation) error {
	entries := l.Load()
	replaced := false
	for i := range entries {
		if entries[i].Op != nil && entries[i].Op.ID == op.ID {
			entries[i] = Entry{Op: op}
			replaced = true
			break
		}
	}
	if !replaced {
		entries = append(entries, Entry{Op: op})
	}
	return l.Save(entries)
}
