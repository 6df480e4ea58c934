// Package octo owns the relay side of a conference when it is bridged
// across server instances: the set of relay peers and the merged
// transceiver configuration (header extensions, payload types, sources)
// applied to the relay link.
//
// The tentacle is a configuration owner only; moving media between
// bridges is the relay connection's job and out of scope here.
package octo

import (
	"sort"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/vbridge-io/vbridge/internal/colibri"
	"github.com/vbridge-io/vbridge/internal/domain"
)

// RelayLink is one established relay-peer link.
type RelayLink struct {
	ID    string
	Since time.Time
}

// Tentacle implements core.Tentacle for a single conference. All methods
// take the tentacle lock, so concurrent reconciliations never lose
// updates to a race; the additive tables only ever grow for the lifetime
// of the conference.
type Tentacle struct {
	logger zerolog.Logger

	mu      sync.Mutex
	expired bool
	links   map[string]RelayLink

	extensions   map[uint8]webrtc.RTPHeaderExtensionParameter
	payloadTypes map[webrtc.PayloadType]webrtc.RTPCodecParameters

	audioSources      []colibri.SourceDoc
	videoSources      []colibri.SourceDoc
	videoSourceGroups []colibri.SourceGroupDoc
}

func NewTentacle(confID domain.ConferenceID) *Tentacle {
	return &Tentacle{
		logger:       log.With().Str("module", "octo").Str("conf", string(confID)).Logger(),
		links:        make(map[string]RelayLink),
		extensions:   make(map[uint8]webrtc.RTPHeaderExtensionParameter),
		payloadTypes: make(map[webrtc.PayloadType]webrtc.RTPCodecParameters),
	}
}

// Expire tears the relay down. Idempotent. The additive configuration
// tables survive so a later re-establishment keeps the negotiated state.
func (t *Tentacle) Expire() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.expired {
		return
	}
	t.expired = true
	for id := range t.links {
		delete(t.links, id)
	}
	t.logger.Info().Msg("relay expired")
}

// SetRelays replaces the relay-peer set wholesale. Peers absent from the
// new set are dropped, new ones are linked. Setting a non-empty set on
// an expired tentacle re-establishes the relay.
func (t *Tentacle) SetRelays(relays []string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	next := make(map[string]struct{}, len(relays))
	for _, id := range relays {
		next[id] = struct{}{}
	}

	var added, removed []string
	for id := range t.links {
		if _, keep := next[id]; !keep {
			delete(t.links, id)
			removed = append(removed, id)
		}
	}
	now := time.Now()
	for id := range next {
		if _, ok := t.links[id]; !ok {
			t.links[id] = RelayLink{ID: id, Since: now}
			added = append(added, id)
		}
	}

	if t.expired && len(t.links) > 0 {
		t.expired = false
		t.logger.Info().Msg("relay re-established")
	}
	if len(added) > 0 || len(removed) > 0 {
		t.logger.Info().Strs("added", added).Strs("removed", removed).Int("relays", len(t.links)).Msg("relay set updated")
	}
}

// AddRTPExtension registers a header extension under its id. An id
// already present is left untouched; entries are never removed.
func (t *Tentacle) AddRTPExtension(id uint8, ext webrtc.RTPHeaderExtensionParameter) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.extensions[id]; ok {
		return
	}
	t.extensions[id] = ext
	t.logger.Debug().Uint8("id", id).Str("uri", ext.URI).Msg("rtp extension added")
}

// AddPayloadType registers a codec record under its payload type number.
// A number already present is left untouched; entries are never removed.
func (t *Tentacle) AddPayloadType(pt webrtc.RTPCodecParameters) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.payloadTypes[pt.PayloadType]; ok {
		return
	}
	t.payloadTypes[pt.PayloadType] = pt
	t.logger.Debug().Uint8("pt", uint8(pt.PayloadType)).Str("mime", pt.MimeType).Msg("payload type added")
}

// SetSources replaces the most-recently-applied source descriptors.
// Audio sources carry no grouping rules.
func (t *Tentacle) SetSources(audio, video []colibri.SourceDoc, videoGroups []colibri.SourceGroupDoc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.audioSources = append([]colibri.SourceDoc(nil), audio...)
	t.videoSources = append([]colibri.SourceDoc(nil), video...)
	t.videoSourceGroups = append([]colibri.SourceGroupDoc(nil), videoGroups...)
	t.logger.Debug().Int("audio", len(audio)).Int("video", len(video)).Int("groups", len(videoGroups)).Msg("sources updated")
}

func (t *Tentacle) Expired() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.expired
}

// Relays returns the current relay ids, sorted.
func (t *Tentacle) Relays() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.links))
	for id := range t.links {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// RTPExtensions returns a copy of the extension table sorted by id.
func (t *Tentacle) RTPExtensions() []webrtc.RTPHeaderExtensionParameter {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]webrtc.RTPHeaderExtensionParameter, 0, len(t.extensions))
	for _, ext := range t.extensions {
		out = append(out, ext)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// PayloadTypes returns a copy of the payload-type table sorted by number.
func (t *Tentacle) PayloadTypes() []webrtc.RTPCodecParameters {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]webrtc.RTPCodecParameters, 0, len(t.payloadTypes))
	for _, pt := range t.payloadTypes {
		out = append(out, pt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PayloadType < out[j].PayloadType })
	return out
}

// Sources returns copies of the applied source descriptors.
func (t *Tentacle) Sources() (audio, video []colibri.SourceDoc, videoGroups []colibri.SourceGroupDoc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	audio = append([]colibri.SourceDoc(nil), t.audioSources...)
	video = append([]colibri.SourceDoc(nil), t.videoSources...)
	videoGroups = append([]colibri.SourceGroupDoc(nil), t.videoSourceGroups...)
	return audio, video, videoGroups
}
