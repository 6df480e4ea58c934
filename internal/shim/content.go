package shim

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vbridge-io/vbridge/internal/colibri"
	"github.com/vbridge-io/vbridge/internal/core"
	"github.com/vbridge-io/vbridge/internal/domain"
)

// Content is the per-media-type channel registry of a conference. It is
// created lazily on first request and lives for the conference lifetime.
type Content struct {
	conf      core.Conference
	mediaType domain.MediaType
	logger    zerolog.Logger

	mu       sync.RWMutex
	channels map[string]*Channel
}

func newContent(conf core.Conference, mediaType domain.MediaType, logger zerolog.Logger) *Content {
	return &Content{
		conf:      conf,
		mediaType: mediaType,
		logger:    logger.With().Str("content", string(mediaType)).Logger(),
		channels:  make(map[string]*Channel),
	}
}

func (c *Content) MediaType() domain.MediaType { return c.mediaType }

// CreateChannel registers a new channel for the given endpoint and
// returns it. The channel id is allocated here.
func (c *Content) CreateChannel(endpoint domain.EndpointID, bundleID, direction string, expire int, now time.Time) *Channel {
	if direction == "" {
		direction = DirectionSendRecv
	}
	ch := &Channel{
		id:       uuid.NewString(),
		endpoint: endpoint,
		bundleID: bundleID,
	}
	ch.direction = direction
	ch.SetExpire(expire, now)

	c.mu.Lock()
	c.channels[ch.id] = ch
	c.mu.Unlock()

	c.logger.Info().Str("channel", ch.id).Str("endpoint", string(endpoint)).Int("expire", expire).Msg("channel created")
	return ch
}

func (c *Content) Channel(id string) (*Channel, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ch, ok := c.channels[id]
	return ch, ok
}

// Channels returns a point-in-time snapshot ordered by channel id.
func (c *Content) Channels() []*Channel {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Channel, 0, len(c.channels))
	for _, ch := range c.channels {
		out = append(out, ch)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

func (c *Content) ChannelCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.channels)
}

// ExpireChannel removes a channel. Unknown ids are a no-op.
func (c *Content) ExpireChannel(id string) (*Channel, bool) {
	c.mu.Lock()
	ch, ok := c.channels[id]
	if ok {
		delete(c.channels, id)
	}
	c.mu.Unlock()
	if ok {
		c.logger.Info().Str("channel", id).Msg("channel expired")
	}
	return ch, ok
}

// SweepExpired removes every channel whose deadline passed and returns
// the removed records so the caller can release their endpoints.
func (c *Content) SweepExpired(now time.Time) []*Channel {
	c.mu.Lock()
	var removed []*Channel
	for id, ch := range c.channels {
		if ch.ExpiredAt(now) {
			delete(c.channels, id)
			removed = append(removed, ch)
		}
	}
	c.mu.Unlock()
	for _, ch := range removed {
		c.logger.Info().Str("channel", ch.id).Msg("channel expired by sweep")
	}
	return removed
}

// Describe writes the content and its channel tree into doc.
func (c *Content) Describe(doc *colibri.ConferenceDoc) {
	contentDoc := doc.GetOrCreateContent(string(c.mediaType))
	for _, ch := range c.Channels() {
		chDoc := &colibri.ChannelDoc{}
		ch.Describe(chDoc)
		contentDoc.AddChannel(chDoc)
	}
}
