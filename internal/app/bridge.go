package app

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/vbridge-io/vbridge/internal/colibri"
	"github.com/vbridge-io/vbridge/internal/domain"
	"github.com/vbridge-io/vbridge/internal/shim"
)

// Notifier receives change notifications after a conference has been
// modified. The signaling layer registers itself here to fan events out
// to subscribed connections.
type Notifier interface {
	ConferenceModified(id domain.ConferenceID)
	ConferenceExpired(id domain.ConferenceID)
}

type nopNotifier struct{}

func (nopNotifier) ConferenceModified(domain.ConferenceID) {}
func (nopNotifier) ConferenceExpired(domain.ConferenceID)  {}

// Bridge applies conference request documents against the conference
// set. Requests for the same conference are serialized via a per-id
// mutex so the relay transport never sees two in-flight
// reconciliations; requests for different conferences run concurrently.
type Bridge struct {
	logger   zerolog.Logger
	confs    *ConferenceManager
	lifetime time.Duration

	// per-conference locks to serialize request processing on the same id
	muxes sync.Map // map[domain.ConferenceID]*sync.Mutex

	mu       sync.RWMutex
	notifier Notifier
	clock    func() time.Time
}

func NewBridge(confs *ConferenceManager, channelLifetime time.Duration) *Bridge {
	return &Bridge{
		logger:   log.With().Str("module", "app.bridge").Logger(),
		confs:    confs,
		lifetime: channelLifetime,
		notifier: nopNotifier{},
		clock:    time.Now,
	}
}

// SetNotifier registers the event sink. Wired after construction
// because the signaling layer and the bridge reference each other.
func (b *Bridge) SetNotifier(n Notifier) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n != nil {
		b.notifier = n
	}
}

func (b *Bridge) getNotifier() Notifier {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.notifier
}

// lock acquires the per-conference mutex and returns an unlock func.
// The same id always maps to the same mutex.
func (b *Bridge) lock(id domain.ConferenceID) func() {
	v, _ := b.muxes.LoadOrStore(id, &sync.Mutex{})
	m := v.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}

// ProcessConferenceRequest applies one conference request document and
// returns the response document: a shallow description plus the
// channels touched by this request, the endpoint list, and the
// requested channel bundles. A request without a conference id creates
// a conference; a request naming an unknown id is a bad request.
func (b *Bridge) ProcessConferenceRequest(req *colibri.ConferenceDoc) (*colibri.ConferenceDoc, error) {
	var entry *ConferenceEntry
	if req.ID == "" {
		entry = b.confs.Create(req.Name)
	} else {
		var ok bool
		entry, ok = b.confs.Get(domain.ConferenceID(req.ID))
		if !ok {
			return nil, colibri.BadRequestf("conference not found: %s", req.ID)
		}
	}
	confID := entry.Conf.ID()

	unlock := b.lock(confID)
	defer unlock()

	resp := &colibri.ConferenceDoc{}
	entry.Shim.DescribeShallow(resp)

	bundleIDs := make([]string, 0, len(req.ChannelBundleIDs))
	bundleSeen := make(map[string]struct{})
	addBundleID := func(id string) {
		if id == "" {
			return
		}
		if _, ok := bundleSeen[id]; ok {
			return
		}
		bundleSeen[id] = struct{}{}
		bundleIDs = append(bundleIDs, id)
	}
	for _, id := range req.ChannelBundleIDs {
		addBundleID(id)
	}
	for _, bundle := range req.ChannelBundles {
		addBundleID(bundle.ID)
	}

	octoDocs := make(map[domain.MediaType]*colibri.OctoChannelDoc)
	now := b.clock()

	for _, reqContent := range req.Contents {
		mediaType, err := domain.ParseMediaType(reqContent.Name)
		if err != nil {
			return nil, colibri.BadRequestf("unknown content type: %s", reqContent.Name)
		}
		content := entry.Shim.GetOrCreateContent(mediaType)
		respContent := resp.GetOrCreateContent(string(mediaType))

		for _, chDoc := range reqContent.Channels {
			described, err := b.processChannel(entry, content, chDoc, now)
			if err != nil {
				return nil, err
			}
			respContent.AddChannel(described)
		}

		if reqContent.OctoChannel != nil {
			if mediaType != domain.MediaTypeAudio && mediaType != domain.MediaTypeVideo {
				return nil, colibri.BadRequestf("octo channels are audio/video only, got %s", mediaType)
			}
			octoDocs[mediaType] = reqContent.OctoChannel
		}
	}

	audioOcto, videoOcto := octoDocs[domain.MediaTypeAudio], octoDocs[domain.MediaTypeVideo]
	switch {
	case audioOcto != nil && videoOcto != nil:
		entry.Shim.ProcessOctoChannels(audioOcto, videoOcto)
		expire := min(audioOcto.Expire, videoOcto.Expire)
		relays := entry.Tentacle.Relays()
		resp.GetOrCreateContent(string(domain.MediaTypeAudio)).OctoChannel = describeOcto(audioOcto, expire, relays)
		resp.GetOrCreateContent(string(domain.MediaTypeVideo)).OctoChannel = describeOcto(videoOcto, expire, relays)
	case audioOcto != nil || videoOcto != nil:
		return nil, colibri.BadRequestf("octo channels must be signaled as an audio+video pair")
	}

	for _, epDoc := range req.Endpoints {
		entry.Shim.UpdateEndpoint(epDoc.ID, epDoc.DisplayName, epDoc.StatsID)
	}

	entry.Shim.DescribeEndpoints(resp)
	if err := entry.Shim.DescribeChannelBundles(resp, bundleIDs); err != nil {
		return nil, err
	}

	b.getNotifier().ConferenceModified(confID)
	return resp, nil
}

// processChannel creates, updates, or expires a single channel and
// returns its description for the response. A zero expire on an
// existing channel tears it down; on a create it falls back to the
// configured default lifetime.
func (b *Bridge) processChannel(entry *ConferenceEntry, content *shim.Content, chDoc *colibri.ChannelDoc, now time.Time) (*colibri.ChannelDoc, error) {
	if chDoc.Expire < 0 {
		return nil, colibri.BadRequestf("channel expire must be non-negative, got %d", chDoc.Expire)
	}
	if chDoc.Direction != "" && !shim.ValidDirection(chDoc.Direction) {
		return nil, colibri.BadRequestf("unknown channel direction: %s", chDoc.Direction)
	}

	if chDoc.ID == "" {
		if chDoc.Endpoint == "" {
			return nil, colibri.BadRequestf("channel create requires an endpoint id")
		}
		lifetime := chDoc.Expire
		if lifetime == 0 {
			lifetime = int(b.lifetime / time.Second)
		}
		ep := entry.Conf.GetOrCreateEndpoint(domain.EndpointID(chDoc.Endpoint))
		ch := content.CreateChannel(ep.ID(), chDoc.ChannelBundleID, chDoc.Direction, lifetime, now)
		ch.Update(chDoc)
		described := &colibri.ChannelDoc{}
		ch.Describe(described)
		return described, nil
	}

	ch, ok := content.Channel(chDoc.ID)
	if !ok {
		return nil, colibri.BadRequestf("channel not found: %s", chDoc.ID)
	}

	if chDoc.Expire == 0 {
		expired, _ := content.ExpireChannel(chDoc.ID)
		if expired != nil {
			b.releaseEndpoint(entry, expired.Endpoint())
		}
		described := &colibri.ChannelDoc{}
		ch.Describe(described)
		described.Expire = 0
		return described, nil
	}

	ch.SetExpire(chDoc.Expire, now)
	ch.Update(chDoc)
	described := &colibri.ChannelDoc{}
	ch.Describe(described)
	return described, nil
}

// releaseEndpoint tears an endpoint down once no channel in any content
// references it.
func (b *Bridge) releaseEndpoint(entry *ConferenceEntry, id domain.EndpointID) {
	if id == "" || entry.Shim.EndpointInUse(id) {
		return
	}
	ep, ok := entry.Conf.Endpoint(id)
	if !ok {
		return
	}
	entry.Conf.RemoveEndpoint(id)
	ep.Expire()
	b.logger.Info().Str("conf", string(entry.Conf.ID())).Str("endpoint", string(id)).Msg("endpoint released")
}

func describeOcto(src *colibri.OctoChannelDoc, expire int, relays []string) *colibri.OctoChannelDoc {
	out := &colibri.OctoChannelDoc{Relays: relays}
	out.ID = src.ID
	out.Expire = expire
	return out
}

// DescribeConference returns the full description of one conference:
// deep content/channel tree, endpoints, and every endpoint's channel
// bundle.
func (b *Bridge) DescribeConference(id string) (*colibri.ConferenceDoc, error) {
	entry, ok := b.confs.Get(domain.ConferenceID(id))
	if !ok {
		return nil, colibri.NotFoundf("conference not found: %s", id)
	}

	unlock := b.lock(entry.Conf.ID())
	defer unlock()

	doc := &colibri.ConferenceDoc{}
	entry.Shim.DescribeDeep(doc)
	entry.Shim.DescribeEndpoints(doc)

	endpointIDs := make([]string, 0)
	for _, ep := range entry.Conf.Endpoints() {
		endpointIDs = append(endpointIDs, string(ep.ID()))
	}
	if err := entry.Shim.DescribeChannelBundles(doc, endpointIDs); err != nil {
		return nil, err
	}
	return doc, nil
}

// ExpireConference tears down one conference and everything it owns.
func (b *Bridge) ExpireConference(id string) error {
	confID := domain.ConferenceID(id)
	if !b.confs.Expire(confID) {
		return colibri.NotFoundf("conference not found: %s", id)
	}
	b.muxes.Delete(confID)
	b.getNotifier().ConferenceExpired(confID)
	return nil
}

// ConferenceSummary is the list-view projection of a conference.
type ConferenceSummary struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	Contents  int    `json:"contents"`
	Endpoints int    `json:"endpoints"`
	Relays    int    `json:"relays"`
}

func (b *Bridge) ListConferences() []ConferenceSummary {
	entries := b.confs.List()
	out := make([]ConferenceSummary, 0, len(entries))
	for _, entry := range entries {
		out = append(out, ConferenceSummary{
			ID:        string(entry.Conf.ID()),
			Name:      entry.Conf.Name(),
			Contents:  len(entry.Shim.Contents()),
			Endpoints: len(entry.Conf.Endpoints()),
			Relays:    len(entry.Tentacle.Relays()),
		})
	}
	return out
}

// Sweep expires channels past their deadline, releases endpoints no
// channel references anymore, and removes conferences that have been
// empty for longer than the default channel lifetime.
func (b *Bridge) Sweep(now time.Time) {
	for _, entry := range b.confs.List() {
		confID := entry.Conf.ID()
		unlock := b.lock(confID)

		channels := 0
		for _, ct := range entry.Shim.Contents() {
			for _, ch := range ct.SweepExpired(now) {
				b.releaseEndpoint(entry, ch.Endpoint())
			}
			channels += ct.ChannelCount()
		}

		empty := channels == 0 &&
			len(entry.Conf.Endpoints()) == 0 &&
			len(entry.Tentacle.Relays()) == 0 &&
			now.Sub(entry.CreatedAt) > b.lifetime
		unlock()

		if empty {
			if b.confs.Expire(confID) {
				b.muxes.Delete(confID)
				b.logger.Info().Str("conf", string(confID)).Msg("idle conference swept")
				b.getNotifier().ConferenceExpired(confID)
			}
		}
	}
}
