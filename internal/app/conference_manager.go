// Package app wires conferences, their shims, and their relay
// transports together and drives request processing against them.
package app

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/vbridge-io/vbridge/internal/core"
	"github.com/vbridge-io/vbridge/internal/domain"
	"github.com/vbridge-io/vbridge/internal/octo"
	"github.com/vbridge-io/vbridge/internal/shim"
)

// ConferenceEntry bundles one conference with its shim and its relay
// transport. All three share the conference lifetime.
type ConferenceEntry struct {
	Conf      core.Conference
	Shim      *shim.Conference
	Tentacle  *octo.Tentacle
	CreatedAt time.Time
}

type ConferenceManager struct {
	mu    sync.RWMutex
	confs map[domain.ConferenceID]*ConferenceEntry
}

func NewConferenceManager() *ConferenceManager {
	return &ConferenceManager{confs: make(map[domain.ConferenceID]*ConferenceEntry)}
}

// Create allocates a conference with a fresh id and wires its shim and
// tentacle. Ids are bridge-allocated, so creation never races a lookup
// for the same id.
func (m *ConferenceManager) Create(name string) *ConferenceEntry {
	id := domain.ConferenceID(uuid.NewString())
	tentacle := octo.NewTentacle(id)
	conf := core.NewConference(id, name, tentacle)
	entry := &ConferenceEntry{
		Conf:      conf,
		Shim:      shim.NewConference(conf),
		Tentacle:  tentacle,
		CreatedAt: time.Now(),
	}
	m.mu.Lock()
	m.confs[id] = entry
	m.mu.Unlock()
	log.Info().Str("module", "app.confmgr").Str("conf", string(id)).Str("name", name).Msg("conference created")
	return entry
}

func (m *ConferenceManager) Get(id domain.ConferenceID) (*ConferenceEntry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.confs[id]
	return entry, ok
}

// List returns a snapshot ordered by conference id.
func (m *ConferenceManager) List() []*ConferenceEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*ConferenceEntry, 0, len(m.confs))
	for _, entry := range m.confs {
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Conf.ID() < out[j].Conf.ID() })
	return out
}

func (m *ConferenceManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.confs)
}

// Expire removes the conference and tears down everything it owns:
// every endpoint's transport and the relay tentacle.
func (m *ConferenceManager) Expire(id domain.ConferenceID) bool {
	m.mu.Lock()
	entry, ok := m.confs[id]
	if ok {
		delete(m.confs, id)
	}
	m.mu.Unlock()
	if !ok {
		return false
	}
	for _, ep := range entry.Conf.Endpoints() {
		ep.Expire()
		entry.Conf.RemoveEndpoint(ep.ID())
	}
	entry.Tentacle.Expire()
	log.Info().Str("module", "app.confmgr").Str("conf", string(id)).Msg("conference expired")
	return true
}
