package core

import (
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/vbridge-io/vbridge/internal/domain"
)

// conferenceImpl is a threadsafe in-memory conference. It owns the
// endpoint set but never touches transport resources beyond handing out
// the tentacle it was wired with.
type conferenceImpl struct {
	id       domain.ConferenceID
	name     string
	tentacle Tentacle

	mu        sync.RWMutex
	endpoints map[domain.EndpointID]Endpoint
}

func NewConference(id domain.ConferenceID, name string, tentacle Tentacle) Conference {
	return &conferenceImpl{
		id:        id,
		name:      name,
		tentacle:  tentacle,
		endpoints: make(map[domain.EndpointID]Endpoint),
	}
}

func (c *conferenceImpl) ID() domain.ConferenceID { return c.id }
func (c *conferenceImpl) Name() string            { return c.name }
func (c *conferenceImpl) Tentacle() Tentacle      { return c.tentacle }

// Endpoints returns a snapshot ordered by endpoint id. Inserts arriving
// after the call returns are not reflected.
func (c *conferenceImpl) Endpoints() []Endpoint {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Endpoint, 0, len(c.endpoints))
	for _, ep := range c.endpoints {
		out = append(out, ep)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

func (c *conferenceImpl) Endpoint(id domain.EndpointID) (Endpoint, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ep, ok := c.endpoints[id]
	return ep, ok
}

func (c *conferenceImpl) GetOrCreateEndpoint(id domain.EndpointID) Endpoint {
	c.mu.RLock()
	ep, ok := c.endpoints[id]
	c.mu.RUnlock()
	if ok {
		return ep
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if ep, ok = c.endpoints[id]; ok {
		return ep
	}
	ep = NewEndpoint(id)
	c.endpoints[id] = ep
	log.Info().Str("module", "core.conference").Str("conf", string(c.id)).Str("endpoint", string(id)).Msg("endpoint added")
	return ep
}

func (c *conferenceImpl) RemoveEndpoint(id domain.EndpointID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.endpoints[id]; !ok {
		return
	}
	delete(c.endpoints, id)
	log.Info().Str("module", "core.conference").Str("conf", string(c.id)).Str("endpoint", string(id)).Msg("endpoint removed")
}
