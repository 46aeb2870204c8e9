package storage

import (
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"github.com/rs/zerolog"
)

// Panel is the persisted state of one self-removal panel message, so its
// buttons keep working across restarts.
type Panel struct {
	RoleIDs     []int64 `json:"role_ids"`
	PersistList bool    `json:"persist_list"`
}

// PanelStore keeps panel state keyed by message id in a single JSON file.
type PanelStore struct {
	file *File
	mu   sync.Mutex
	log  zerolog.Logger
}

func NewPanelStore(path string, log zerolog.Logger) *PanelStore {
	return &PanelStore{file: NewFile(path), log: log}
}

func (p *PanelStore) Save(messageID int64, panel Panel) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	panels := p.load()
	panels[strconv.FormatInt(messageID, 10)] = panel
	return p.save(panels)
}

func (p *PanelStore) Get(messageID int64) (Panel, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	panel, ok := p.load()[strconv.FormatInt(messageID, 10)]
	return panel, ok
}

func (p *PanelStore) Delete(messageID int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	panels := p.load()
	key := strconv.FormatInt(messageID, 10)
	if _, ok := panels[key]; !ok {
		return nil
	}
	delete(panels, key)
	return p.save(panels)
}

func (p *PanelStore) load() map[string]Panel {
	out := make(map[string]Panel)
	data, err := p.file.Read()
	if err != nil {
		p.log.Error().Err(err).Str("file", p.file.Path()).Msg("failed to read panel state")
		return out
	}
	if len(data) == 0 {
		return out
	}
	if err := json.Unmarshal(data, &out); err != nil {
		p.log.Error().Err(err).Str("file", p.file.Path()).Msg("panel state is corrupt, treating as empty")
		return make(map[string]Panel)
	}
	return out
}

func (p *PanelStore) save(panels map[string]Panel) error {
	data, err := json.MarshalIndent(panels, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal panel state: %w", err)
	}
	if err := p.file.Write(data); err != nil {
		return fmt.Errorf("save panel state: %w", err)
	}
	return nil
}
