package core

import (
	"github.com/pion/webrtc/v4"

	"github.com/vbridge-io/vbridge/internal/colibri"
	"github.com/vbridge-io/vbridge/internal/domain"
)

// Endpoint is a conference participant as the shim layer sees it:
// mutable attributes plus the capability of describing its own transport
// into a channel bundle. Describe may fail with an I/O-class error (for
// example when the endpoint's transport is already closed); callers must
// not swallow that.
type Endpoint interface {
	ID() domain.EndpointID
	DisplayName() string
	SetDisplayName(name string)
	StatsID() string
	SetStatsID(id string)
	Describe(bundle *colibri.ChannelBundleDoc) error
	Expire()
}

// Tentacle is the relay transport of a conference: the component owning
// the relay link and its applied configuration. The shim only mutates
// relay state through these operations; the tentacle serializes them
// internally.
//
// SetRelays replaces the relay-peer set wholesale. AddRTPExtension and
// AddPayloadType are additive only: an entry already present is never
// removed or overwritten for the lifetime of the conference.
type Tentacle interface {
	Expire()
	SetRelays(relays []string)
	AddRTPExtension(id uint8, ext webrtc.RTPHeaderExtensionParameter)
	AddPayloadType(pt webrtc.RTPCodecParameters)
	SetSources(audio, video []colibri.SourceDoc, videoGroups []colibri.SourceGroupDoc)
}

// Conference is the endpoint membership a shim operates on. Endpoints
// returns a point-in-time snapshot safe to iterate without locks.
type Conference interface {
	ID() domain.ConferenceID
	Name() string
	Endpoints() []Endpoint
	Endpoint(id domain.EndpointID) (Endpoint, bool)
	GetOrCreateEndpoint(id domain.EndpointID) Endpoint
	RemoveEndpoint(id domain.EndpointID)
	Tentacle() Tentacle
}
