package colibri

// ChannelDoc describes a single media transceiver configuration within a
// content. Expire is the requested lifetime in seconds; zero tears the
// channel down.
type ChannelDoc struct {
	ID              string `json:"id,omitempty"`
	Endpoint        string `json:"endpoint,omitempty"`
	ChannelBundleID string `json:"channelBundleId,omitempty"`
	Expire          int    `json:"expire"`
	Direction       string `json:"direction,omitempty"`

	Sources             []SourceDoc      `json:"sources,omitempty"`
	SourceGroups        []SourceGroupDoc `json:"sourceGroups,omitempty"`
	PayloadTypes        []PayloadTypeDoc `json:"payloadTypes,omitempty"`
	RTPHeaderExtensions []RTPHdrExtDoc   `json:"rtpHdrExts,omitempty"`
}

// OctoChannelDoc is the channel description of a distributed relay peer
// link for one media type. Two of these, one audio and one video, are
// reconciled into a single relay configuration.
type OctoChannelDoc struct {
	ChannelDoc
	Relays []string `json:"relays,omitempty"`
}

// SourceDoc identifies one media source.
type SourceDoc struct {
	SSRC  uint32 `json:"ssrc"`
	CName string `json:"cname,omitempty"`
	MSID  string `json:"msid,omitempty"`
}

// SourceGroupDoc is a source-grouping rule (FID, SIM, ...).
type SourceGroupDoc struct {
	Semantics string   `json:"semantics"`
	SSRCs     []uint32 `json:"ssrcs"`
}

// PayloadTypeDoc is a raw payload-type declaration: a negotiated codec
// mapping before it is turned into a structured record.
type PayloadTypeDoc struct {
	ID            int               `json:"id"`
	Name          string            `json:"name"`
	ClockRate     uint32            `json:"clockrate"`
	Channels      uint16            `json:"channels,omitempty"`
	Parameters    map[string]string `json:"parameters,omitempty"`
	RTCPFeedbacks []FeedbackDoc     `json:"rtcpFbs,omitempty"`
}

// FeedbackDoc is an RTCP feedback declaration attached to a payload type.
type FeedbackDoc struct {
	Type    string `json:"type"`
	Subtype string `json:"subtype,omitempty"`
}

// RTPHdrExtDoc is an RTP header-extension declaration.
type RTPHdrExtDoc struct {
	ID  uint8  `json:"id"`
	URI string `json:"uri"`
}
