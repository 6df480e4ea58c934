// Package shim translates between conference descriptions and the
// bridge's runtime state: it keeps the per-media-type content registry,
// describes conferences into documents, and reconciles octo relay
// channel pairs into the conference's relay transport.
package shim

import (
	"sort"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/vbridge-io/vbridge/internal/colibri"
	"github.com/vbridge-io/vbridge/internal/core"
	"github.com/vbridge-io/vbridge/internal/domain"
	"github.com/vbridge-io/vbridge/internal/payload"
)

// Conference is the shim over one core conference.
type Conference struct {
	conf   core.Conference
	logger zerolog.Logger

	mu       sync.RWMutex
	contents map[domain.MediaType]*Content
}

func NewConference(conf core.Conference) *Conference {
	return &Conference{
		conf:     conf,
		logger:   log.With().Str("module", "shim").Str("conf", string(conf.ID())).Logger(),
		contents: make(map[domain.MediaType]*Content),
	}
}

// Conference returns the underlying conference.
func (s *Conference) Conference() core.Conference { return s.conf }

// GetOrCreateContent returns the content for mediaType, creating it on
// first request. Concurrent callers for the same unseen media type all
// observe the same record.
func (s *Conference) GetOrCreateContent(mediaType domain.MediaType) *Content {
	s.mu.RLock()
	ct, ok := s.contents[mediaType]
	s.mu.RUnlock()
	if ok {
		return ct
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if ct, ok = s.contents[mediaType]; ok {
		return ct
	}
	ct = newContent(s.conf, mediaType, s.logger)
	s.contents[mediaType] = ct
	s.logger.Info().Str("content", string(mediaType)).Msg("content created")
	return ct
}

// Contents returns a point-in-time snapshot, ordered by media type. It
// may exclude contents created after the call returns.
func (s *Conference) Contents() []*Content {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Content, 0, len(s.contents))
	for _, ct := range s.contents {
		out = append(out, ct)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].mediaType < out[j].mediaType })
	return out
}

// EndpointInUse reports whether any channel of any content still
// references the endpoint.
func (s *Conference) EndpointInUse(id domain.EndpointID) bool {
	for _, ct := range s.Contents() {
		for _, ch := range ct.Channels() {
			if ch.Endpoint() == id {
				return true
			}
		}
	}
	return false
}

// DescribeShallow writes only the conference identity into doc.
func (s *Conference) DescribeShallow(doc *colibri.ConferenceDoc) {
	doc.ID = string(s.conf.ID())
	doc.Name = s.conf.Name()
}

// DescribeDeep writes the identity plus the full content/channel tree.
// Source records are never mutated.
func (s *Conference) DescribeDeep(doc *colibri.ConferenceDoc) {
	s.DescribeShallow(doc)
	for _, ct := range s.Contents() {
		ct.Describe(doc)
	}
}

// DescribeEndpoints adds one endpoint description per conference
// endpoint.
func (s *Conference) DescribeEndpoints(doc *colibri.ConferenceDoc) {
	for _, ep := range s.conf.Endpoints() {
		doc.AddEndpoint(&colibri.EndpointDoc{
			ID:          string(ep.ID()),
			StatsID:     ep.StatsID(),
			DisplayName: ep.DisplayName(),
		})
	}
}

// DescribeChannelBundles adds a transport bundle for every conference
// endpoint named in endpointIDs. A failing endpoint description aborts
// the batch with an internal-server-error processing error; bundles
// described before the failure stay in doc.
func (s *Conference) DescribeChannelBundles(doc *colibri.ConferenceDoc, endpointIDs []string) error {
	want := make(map[string]struct{}, len(endpointIDs))
	for _, id := range endpointIDs {
		want[id] = struct{}{}
	}
	for _, ep := range s.conf.Endpoints() {
		id := string(ep.ID())
		if _, ok := want[id]; !ok {
			continue
		}
		bundle := colibri.NewChannelBundleDoc(id)
		if err := ep.Describe(bundle); err != nil {
			return colibri.NewProcessingError(colibri.ConditionInternalServerError, err.Error())
		}
		doc.AddChannelBundle(bundle)
	}
	return nil
}

// UpdateEndpoint sets the display name and stats id of the endpoint with
// the given id. An empty or unknown id is a silent no-op; otherwise both
// attributes are set unconditionally, including to empty values.
func (s *Conference) UpdateEndpoint(id, displayName, statsID string) {
	if id == "" {
		return
	}
	ep, ok := s.conf.Endpoint(domain.EndpointID(id))
	if !ok {
		return
	}
	ep.SetDisplayName(displayName)
	ep.SetStatsID(statsID)
}

// ProcessOctoChannels reconciles the audio and video relay channel
// descriptions into the conference's relay transport as one update.
//
// The expiry is the minimum of the two descriptions'; zero tears the
// relay down and nothing else from that call is applied. The relay-peer
// union replaces the transport's relay set, while header extensions and
// payload types only ever accumulate: the transport keeps entries no
// later description mentions. That asymmetry is deliberate.
func (s *Conference) ProcessOctoChannels(audio, video *colibri.OctoChannelDoc) {
	tentacle := s.conf.Tentacle()

	expire := min(audio.Expire, video.Expire)
	if expire == 0 {
		s.logger.Info().Msg("octo channels expired, tearing down relay")
		tentacle.Expire()
		return
	}

	tentacle.SetRelays(unionStrings(audio.Relays, video.Relays))

	for _, ext := range unionExtensions(audio.RTPHeaderExtensions, video.RTPHeaderExtensions) {
		tentacle.AddRTPExtension(ext.ID, webrtc.RTPHeaderExtensionParameter{
			ID:  int(ext.ID),
			URI: ext.URI,
		})
	}

	s.applyPayloadTypes(tentacle, audio.PayloadTypes, domain.MediaTypeAudio)
	s.applyPayloadTypes(tentacle, video.PayloadTypes, domain.MediaTypeVideo)

	tentacle.SetSources(audio.Sources, video.Sources, video.SourceGroups)
}

// applyPayloadTypes builds each declaration with its owning media type
// and adds the result to the transport. A declaration that cannot be
// built is skipped with a warning; the rest of the merge continues.
func (s *Conference) applyPayloadTypes(tentacle core.Tentacle, docs []colibri.PayloadTypeDoc, mediaType domain.MediaType) {
	for _, doc := range docs {
		pt, err := payload.Build(doc, mediaType)
		if err != nil {
			s.logger.Warn().Err(err).Int("id", doc.ID).Str("name", doc.Name).Str("media", string(mediaType)).Msg("unrecognized payload type")
			continue
		}
		tentacle.AddPayloadType(pt)
	}
}

// unionStrings merges both slices preserving first-seen order.
func unionStrings(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range a {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	for _, s := range b {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// unionExtensions deduplicates by extension id; audio entries win over
// video entries carrying the same id within one call.
func unionExtensions(a, b []colibri.RTPHdrExtDoc) []colibri.RTPHdrExtDoc {
	seen := make(map[uint8]struct{}, len(a)+len(b))
	out := make([]colibri.RTPHdrExtDoc, 0, len(a)+len(b))
	for _, ext := range a {
		if _, ok := seen[ext.ID]; ok {
			continue
		}
		seen[ext.ID] = struct{}{}
		out = append(out, ext)
	}
	for _, ext := range b {
		if _, ok := seen[ext.ID]; ok {
			continue
		}
		seen[ext.ID] = struct{}{}
		out = append(out, ext)
	}
	return out
}
