package app

import (
	"github.com/vbridge-io/vbridge/internal/colibri"
	"github.com/vbridge-io/vbridge/internal/domain"
)

// RelayExtension is one negotiated header extension on the relay link.
type RelayExtension struct {
	ID  int    `json:"id"`
	URI string `json:"uri"`
}

// RelayPayloadType is one negotiated codec mapping on the relay link.
type RelayPayloadType struct {
	ID        uint8  `json:"id"`
	MimeType  string `json:"mimeType"`
	ClockRate uint32 `json:"clockRate"`
	Channels  uint16 `json:"channels,omitempty"`
	FmtpLine  string `json:"fmtpLine,omitempty"`
}

// RelaySnapshot is the externally visible state of a conference's relay
// transport: the current peer set plus the accumulated negotiation
// tables and the last applied sources.
type RelaySnapshot struct {
	ConferenceID      string                   `json:"conferenceId"`
	Expired           bool                     `json:"expired"`
	Relays            []string                 `json:"relays"`
	RTPHdrExts        []RelayExtension         `json:"rtpHdrExts"`
	PayloadTypes      []RelayPayloadType       `json:"payloadTypes"`
	AudioSources      []colibri.SourceDoc      `json:"audioSources"`
	VideoSources      []colibri.SourceDoc      `json:"videoSources"`
	VideoSourceGroups []colibri.SourceGroupDoc `json:"videoSourceGroups"`
}

// RelaySnapshot reports the relay transport state of one conference.
func (b *Bridge) RelaySnapshot(id string) (*RelaySnapshot, error) {
	entry, ok := b.confs.Get(domain.ConferenceID(id))
	if !ok {
		return nil, colibri.NotFoundf("conference not found: %s", id)
	}

	tentacle := entry.Tentacle
	snap := &RelaySnapshot{
		ConferenceID: id,
		Expired:      tentacle.Expired(),
		Relays:       tentacle.Relays(),
	}
	for _, ext := range tentacle.RTPExtensions() {
		snap.RTPHdrExts = append(snap.RTPHdrExts, RelayExtension{ID: ext.ID, URI: ext.URI})
	}
	for _, pt := range tentacle.PayloadTypes() {
		snap.PayloadTypes = append(snap.PayloadTypes, RelayPayloadType{
			ID:        uint8(pt.PayloadType),
			MimeType:  pt.MimeType,
			ClockRate: pt.ClockRate,
			Channels:  pt.Channels,
			FmtpLine:  pt.SDPFmtpLine,
		})
	}
	snap.AudioSources, snap.VideoSources, snap.VideoSourceGroups = tentacle.Sources()
	return snap, nil
}
