package colibri

// ConferenceDoc describes a conference: its identity plus, depending on
// the depth of the describe call that produced it, the content/channel
// tree, the endpoint list and the requested channel bundles.
//
// On the request path the same shape carries the desired state: contents
// with channels to create or expire, octo channels to reconcile and
// endpoint attributes to update.
type ConferenceDoc struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`

	Contents       []*ContentDoc       `json:"contents,omitempty"`
	Endpoints      []*EndpointDoc      `json:"endpoints,omitempty"`
	ChannelBundles []*ChannelBundleDoc `json:"channelBundles,omitempty"`

	// ChannelBundleIDs limits which bundles the response should describe.
	ChannelBundleIDs []string `json:"channelBundleIds,omitempty"`
}

// GetOrCreateContent returns the content with the given name, appending
// a new one if the document has none yet.
func (d *ConferenceDoc) GetOrCreateContent(name string) *ContentDoc {
	for _, c := range d.Contents {
		if c.Name == name {
			return c
		}
	}
	c := &ContentDoc{Name: name}
	d.Contents = append(d.Contents, c)
	return c
}

func (d *ConferenceDoc) AddEndpoint(ep *EndpointDoc) {
	d.Endpoints = append(d.Endpoints, ep)
}

func (d *ConferenceDoc) AddChannelBundle(b *ChannelBundleDoc) {
	d.ChannelBundles = append(d.ChannelBundles, b)
}

// ContentDoc groups the channels of one media type. At most one octo
// channel may be present per content.
type ContentDoc struct {
	Name        string          `json:"name"`
	Channels    []*ChannelDoc   `json:"channels,omitempty"`
	OctoChannel *OctoChannelDoc `json:"octoChannel,omitempty"`
}

func (c *ContentDoc) AddChannel(ch *ChannelDoc) {
	c.Channels = append(c.Channels, ch)
}

// EndpointDoc carries the mutable endpoint attributes. An empty ID makes
// the update a no-op.
type EndpointDoc struct {
	ID          string `json:"id,omitempty"`
	StatsID     string `json:"statsId,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
}

// ChannelBundleDoc is the per-endpoint transport description produced by
// Endpoint.Describe.
type ChannelBundleDoc struct {
	ID        string        `json:"id"`
	Transport *TransportDoc `json:"transport,omitempty"`
}

func NewChannelBundleDoc(id string) *ChannelBundleDoc {
	return &ChannelBundleDoc{ID: id}
}

// TransportDoc mirrors the ICE/DTLS transport attributes a bundle
// advertises.
type TransportDoc struct {
	Ufrag        string           `json:"ufrag,omitempty"`
	Pwd          string           `json:"pwd,omitempty"`
	RTCPMux      bool             `json:"rtcpMux,omitempty"`
	Fingerprints []FingerprintDoc `json:"fingerprints,omitempty"`
	Candidates   []CandidateDoc   `json:"candidates,omitempty"`
}

type FingerprintDoc struct {
	Value string `json:"value"`
	Hash  string `json:"hash"`
	Setup string `json:"setup,omitempty"`
}

type CandidateDoc struct {
	Foundation string `json:"foundation"`
	Component  int    `json:"component"`
	Protocol   string `json:"protocol"`
	Priority   int    `json:"priority"`
	IP         string `json:"ip"`
	Port       int    `json:"port"`
	Type       string `json:"type"`
	RelAddr    string `json:"relAddr,omitempty"`
	RelPort    int    `json:"relPort,omitempty"`
	Generation string `json:"generation,omitempty"`
}
