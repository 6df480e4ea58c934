package app

import (
	"sync"
	"testing"
	"time"

	"github.com/vbridge-io/vbridge/internal/colibri"
	"github.com/vbridge-io/vbridge/internal/domain"
	"github.com/vbridge-io/vbridge/internal/shim"
)

func testClock() time.Time {
	return time.Date(2025, time.March, 14, 9, 30, 0, 0, time.UTC)
}

func newTestBridge() *Bridge {
	b := NewBridge(NewConferenceManager(), time.Minute)
	b.clock = testClock
	return b
}

// recordingNotifier counts fanned-out events per conference.
type recordingNotifier struct {
	mu       sync.Mutex
	modified []domain.ConferenceID
	expired  []domain.ConferenceID
}

func (n *recordingNotifier) ConferenceModified(id domain.ConferenceID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.modified = append(n.modified, id)
}

func (n *recordingNotifier) ConferenceExpired(id domain.ConferenceID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.expired = append(n.expired, id)
}

func createConference(t *testing.T, b *Bridge) string {
	t.Helper()
	resp, err := b.ProcessConferenceRequest(&colibri.ConferenceDoc{Name: "standup"})
	if err != nil {
		t.Fatalf("create conference: %v", err)
	}
	if resp.ID == "" {
		t.Fatalf("create conference returned no id")
	}
	return resp.ID
}

func channelRequest(confID, content string, ch *colibri.ChannelDoc) *colibri.ConferenceDoc {
	return &colibri.ConferenceDoc{
		ID: confID,
		Contents: []*colibri.ContentDoc{
			{Name: content, Channels: []*colibri.ChannelDoc{ch}},
		},
	}
}

func TestProcessConferenceRequest_CreatesConference(t *testing.T) {
	b := newTestBridge()
	notif := &recordingNotifier{}
	b.SetNotifier(notif)

	resp, err := b.ProcessConferenceRequest(&colibri.ConferenceDoc{Name: "standup"})
	if err != nil {
		t.Fatalf("ProcessConferenceRequest: %v", err)
	}
	if resp.ID == "" || resp.Name != "standup" {
		t.Fatalf("resp=%q/%q, want a fresh id and the name echoed", resp.ID, resp.Name)
	}
	if b.confs.Count() != 1 {
		t.Fatalf("Count()=%d, want 1", b.confs.Count())
	}
	if len(notif.modified) != 1 || notif.modified[0] != domain.ConferenceID(resp.ID) {
		t.Fatalf("modified events=%v, want one for %s", notif.modified, resp.ID)
	}
}

func TestProcessConferenceRequest_UnknownConference(t *testing.T) {
	b := newTestBridge()

	_, err := b.ProcessConferenceRequest(&colibri.ConferenceDoc{ID: "no-such-conf"})
	pe, ok := colibri.AsProcessingError(err)
	if !ok || pe.Condition != colibri.ConditionBadRequest {
		t.Fatalf("err=%v, want bad-request", err)
	}
}

func TestProcessConferenceRequest_ChannelLifecycle(t *testing.T) {
	b := newTestBridge()
	confID := createConference(t, b)

	// Create: no channel id, default lifetime from config.
	resp, err := b.ProcessConferenceRequest(channelRequest(confID, "audio", &colibri.ChannelDoc{
		Endpoint:        "ep-1",
		ChannelBundleID: "ep-1",
	}))
	if err != nil {
		t.Fatalf("create channel: %v", err)
	}
	if len(resp.Contents) != 1 || len(resp.Contents[0].Channels) != 1 {
		t.Fatalf("resp contents=%v, want one audio channel", resp.Contents)
	}
	created := resp.Contents[0].Channels[0]
	if created.ID == "" || created.Endpoint != "ep-1" {
		t.Fatalf("created=%+v, want an allocated id bound to ep-1", created)
	}
	if created.Expire != 60 {
		t.Fatalf("created.Expire=%d, want the 60s default", created.Expire)
	}
	if created.Direction != shim.DirectionSendRecv {
		t.Fatalf("created.Direction=%q, want sendrecv", created.Direction)
	}

	entry, ok := b.confs.Get(domain.ConferenceID(confID))
	if !ok {
		t.Fatalf("conference %s disappeared", confID)
	}
	if _, ok := entry.Conf.Endpoint("ep-1"); !ok {
		t.Fatalf("endpoint ep-1 not created alongside its channel")
	}

	// Update: direction and lifetime renewal.
	resp, err = b.ProcessConferenceRequest(channelRequest(confID, "audio", &colibri.ChannelDoc{
		ID:        created.ID,
		Expire:    120,
		Direction: shim.DirectionRecvOnly,
	}))
	if err != nil {
		t.Fatalf("update channel: %v", err)
	}
	updated := resp.Contents[0].Channels[0]
	if updated.Expire != 120 || updated.Direction != shim.DirectionRecvOnly {
		t.Fatalf("updated=%+v, want expire 120 and recvonly", updated)
	}

	// Expire: zero tears down and releases the endpoint.
	resp, err = b.ProcessConferenceRequest(channelRequest(confID, "audio", &colibri.ChannelDoc{
		ID: created.ID,
	}))
	if err != nil {
		t.Fatalf("expire channel: %v", err)
	}
	gone := resp.Contents[0].Channels[0]
	if gone.Expire != 0 {
		t.Fatalf("gone.Expire=%d, want 0", gone.Expire)
	}
	if _, ok := entry.Conf.Endpoint("ep-1"); ok {
		t.Fatalf("endpoint ep-1 still present after its last channel expired")
	}
}

func TestProcessConferenceRequest_EndpointSharedAcrossChannels(t *testing.T) {
	b := newTestBridge()
	confID := createConference(t, b)

	audio, err := b.ProcessConferenceRequest(channelRequest(confID, "audio", &colibri.ChannelDoc{Endpoint: "ep-1"}))
	if err != nil {
		t.Fatalf("create audio channel: %v", err)
	}
	if _, err = b.ProcessConferenceRequest(channelRequest(confID, "video", &colibri.ChannelDoc{Endpoint: "ep-1"})); err != nil {
		t.Fatalf("create video channel: %v", err)
	}

	entry, _ := b.confs.Get(domain.ConferenceID(confID))

	// Expiring the audio channel must keep ep-1: the video channel still
	// references it.
	chID := audio.Contents[0].Channels[0].ID
	if _, err = b.ProcessConferenceRequest(channelRequest(confID, "audio", &colibri.ChannelDoc{ID: chID})); err != nil {
		t.Fatalf("expire audio channel: %v", err)
	}
	if _, ok := entry.Conf.Endpoint("ep-1"); !ok {
		t.Fatalf("endpoint ep-1 released while its video channel is live")
	}
}

func TestProcessConferenceRequest_Rejections(t *testing.T) {
	b := newTestBridge()
	confID := createConference(t, b)

	cases := []struct {
		name string
		req  *colibri.ConferenceDoc
	}{
		{"unknown content", channelRequest(confID, "screenshare", &colibri.ChannelDoc{Endpoint: "ep-1"})},
		{"negative expire", channelRequest(confID, "audio", &colibri.ChannelDoc{Endpoint: "ep-1", Expire: -1})},
		{"bad direction", channelRequest(confID, "audio", &colibri.ChannelDoc{Endpoint: "ep-1", Direction: "both"})},
		{"create without endpoint", channelRequest(confID, "audio", &colibri.ChannelDoc{})},
		{"update unknown channel", channelRequest(confID, "audio", &colibri.ChannelDoc{ID: "no-such-channel", Expire: 60})},
	}
	for _, tc := range cases {
		_, err := b.ProcessConferenceRequest(tc.req)
		pe, ok := colibri.AsProcessingError(err)
		if !ok || pe.Condition != colibri.ConditionBadRequest {
			t.Fatalf("%s: err=%v, want bad-request", tc.name, err)
		}
	}
}

func octoRequest(confID string, audioExpire, videoExpire int, relays []string) *colibri.ConferenceDoc {
	audio := &colibri.OctoChannelDoc{Relays: relays}
	audio.Expire = audioExpire
	video := &colibri.OctoChannelDoc{Relays: relays}
	video.Expire = videoExpire
	return &colibri.ConferenceDoc{
		ID: confID,
		Contents: []*colibri.ContentDoc{
			{Name: "audio", OctoChannel: audio},
			{Name: "video", OctoChannel: video},
		},
	}
}

func TestProcessConferenceRequest_OctoPair(t *testing.T) {
	b := newTestBridge()
	confID := createConference(t, b)

	resp, err := b.ProcessConferenceRequest(octoRequest(confID, 10, 20, []string{"relay-a", "relay-b"}))
	if err != nil {
		t.Fatalf("octo request: %v", err)
	}

	entry, _ := b.confs.Get(domain.ConferenceID(confID))
	relays := entry.Tentacle.Relays()
	if len(relays) != 2 {
		t.Fatalf("Relays()=%v, want relay-a and relay-b", relays)
	}

	for _, ct := range resp.Contents {
		if ct.OctoChannel == nil {
			t.Fatalf("content %s has no octo echo", ct.Name)
		}
		if ct.OctoChannel.Expire != 10 {
			t.Fatalf("octo echo expire=%d, want the 10s minimum", ct.OctoChannel.Expire)
		}
		if len(ct.OctoChannel.Relays) != 2 {
			t.Fatalf("octo echo relays=%v, want both", ct.OctoChannel.Relays)
		}
	}

	// Zero expire on either side tears the relay down.
	if _, err = b.ProcessConferenceRequest(octoRequest(confID, 0, 20, nil)); err != nil {
		t.Fatalf("octo teardown: %v", err)
	}
	if !entry.Tentacle.Expired() {
		t.Fatalf("tentacle still live after zero-expire octo pair")
	}
}

func TestProcessConferenceRequest_LoneOcto(t *testing.T) {
	b := newTestBridge()
	confID := createConference(t, b)

	audio := &colibri.OctoChannelDoc{}
	audio.Expire = 10
	req := &colibri.ConferenceDoc{
		ID:       confID,
		Contents: []*colibri.ContentDoc{{Name: "audio", OctoChannel: audio}},
	}
	_, err := b.ProcessConferenceRequest(req)
	pe, ok := colibri.AsProcessingError(err)
	if !ok || pe.Condition != colibri.ConditionBadRequest {
		t.Fatalf("err=%v, want bad-request for a lone octo channel", err)
	}
}

func TestProcessConferenceRequest_DataOcto(t *testing.T) {
	b := newTestBridge()
	confID := createConference(t, b)

	data := &colibri.OctoChannelDoc{}
	data.Expire = 10
	req := &colibri.ConferenceDoc{
		ID:       confID,
		Contents: []*colibri.ContentDoc{{Name: "data", OctoChannel: data}},
	}
	_, err := b.ProcessConferenceRequest(req)
	pe, ok := colibri.AsProcessingError(err)
	if !ok || pe.Condition != colibri.ConditionBadRequest {
		t.Fatalf("err=%v, want bad-request for a data octo channel", err)
	}
}

func TestProcessConferenceRequest_EndpointAttributes(t *testing.T) {
	b := newTestBridge()
	confID := createConference(t, b)
	if _, err := b.ProcessConferenceRequest(channelRequest(confID, "audio", &colibri.ChannelDoc{Endpoint: "ep-1"})); err != nil {
		t.Fatalf("create channel: %v", err)
	}

	resp, err := b.ProcessConferenceRequest(&colibri.ConferenceDoc{
		ID:        confID,
		Endpoints: []*colibri.EndpointDoc{{ID: "ep-1", DisplayName: "alice", StatsID: "alice-s1"}},
	})
	if err != nil {
		t.Fatalf("endpoint update: %v", err)
	}
	if len(resp.Endpoints) != 1 {
		t.Fatalf("resp.Endpoints=%v, want one", resp.Endpoints)
	}
	if resp.Endpoints[0].DisplayName != "alice" || resp.Endpoints[0].StatsID != "alice-s1" {
		t.Fatalf("endpoint echo=%+v, want the updated attributes", resp.Endpoints[0])
	}
}

func TestProcessConferenceRequest_ChannelBundles(t *testing.T) {
	b := newTestBridge()
	confID := createConference(t, b)
	if _, err := b.ProcessConferenceRequest(channelRequest(confID, "audio", &colibri.ChannelDoc{Endpoint: "ep-1"})); err != nil {
		t.Fatalf("create channel: %v", err)
	}

	resp, err := b.ProcessConferenceRequest(&colibri.ConferenceDoc{
		ID:               confID,
		ChannelBundleIDs: []string{"ep-1", "ep-1", "ep-ghost"},
	})
	if err != nil {
		t.Fatalf("bundle request: %v", err)
	}
	if len(resp.ChannelBundles) != 1 || resp.ChannelBundles[0].ID != "ep-1" {
		t.Fatalf("ChannelBundles=%v, want a single ep-1 bundle", resp.ChannelBundles)
	}
	if resp.ChannelBundles[0].Transport == nil {
		t.Fatalf("bundle has no transport")
	}
}

func TestDescribeConference(t *testing.T) {
	b := newTestBridge()

	if _, err := b.DescribeConference("no-such-conf"); err == nil {
		t.Fatalf("DescribeConference found a ghost")
	} else if pe, ok := colibri.AsProcessingError(err); !ok || pe.Condition != colibri.ConditionItemNotFound {
		t.Fatalf("err=%v, want item-not-found", err)
	}

	confID := createConference(t, b)
	if _, err := b.ProcessConferenceRequest(channelRequest(confID, "audio", &colibri.ChannelDoc{Endpoint: "ep-1"})); err != nil {
		t.Fatalf("create channel: %v", err)
	}

	doc, err := b.DescribeConference(confID)
	if err != nil {
		t.Fatalf("DescribeConference: %v", err)
	}
	if doc.ID != confID {
		t.Fatalf("doc.ID=%q, want %q", doc.ID, confID)
	}
	if len(doc.Contents) != 1 || len(doc.Contents[0].Channels) != 1 {
		t.Fatalf("doc contents=%v, want the audio channel tree", doc.Contents)
	}
	if len(doc.Endpoints) != 1 || len(doc.ChannelBundles) != 1 {
		t.Fatalf("endpoints=%v bundles=%v, want one of each", doc.Endpoints, doc.ChannelBundles)
	}
}

func TestExpireConference(t *testing.T) {
	b := newTestBridge()
	notif := &recordingNotifier{}
	b.SetNotifier(notif)
	confID := createConference(t, b)
	if _, err := b.ProcessConferenceRequest(channelRequest(confID, "audio", &colibri.ChannelDoc{Endpoint: "ep-1"})); err != nil {
		t.Fatalf("create channel: %v", err)
	}
	entry, _ := b.confs.Get(domain.ConferenceID(confID))
	ep, _ := entry.Conf.Endpoint("ep-1")

	if err := b.ExpireConference(confID); err != nil {
		t.Fatalf("ExpireConference: %v", err)
	}
	if b.confs.Count() != 0 {
		t.Fatalf("Count()=%d after expire, want 0", b.confs.Count())
	}
	if err := ep.Describe(colibri.NewChannelBundleDoc("ep-1")); err == nil {
		t.Fatalf("endpoint transport survived the conference")
	}
	if !entry.Tentacle.Expired() {
		t.Fatalf("tentacle survived the conference")
	}
	if len(notif.expired) != 1 || notif.expired[0] != domain.ConferenceID(confID) {
		t.Fatalf("expired events=%v, want one for %s", notif.expired, confID)
	}

	if err := b.ExpireConference(confID); err == nil {
		t.Fatalf("second expire succeeded")
	}
}

func TestListConferences(t *testing.T) {
	b := newTestBridge()
	createConference(t, b)
	second := createConference(t, b)
	if _, err := b.ProcessConferenceRequest(channelRequest(second, "audio", &colibri.ChannelDoc{Endpoint: "ep-1"})); err != nil {
		t.Fatalf("create channel: %v", err)
	}

	list := b.ListConferences()
	if len(list) != 2 {
		t.Fatalf("len(list)=%d, want 2", len(list))
	}
	if list[0].ID > list[1].ID {
		t.Fatalf("list not sorted by id: %v", list)
	}
	for _, summary := range list {
		if summary.ID != second {
			continue
		}
		if summary.Contents != 1 || summary.Endpoints != 1 {
			t.Fatalf("summary=%+v, want one content and one endpoint", summary)
		}
	}
}

func TestRelaySnapshot(t *testing.T) {
	b := newTestBridge()
	confID := createConference(t, b)

	if _, err := b.RelaySnapshot("no-such-conf"); err == nil {
		t.Fatalf("RelaySnapshot found a ghost")
	}

	req := octoRequest(confID, 10, 10, []string{"relay-a"})
	req.Contents[0].OctoChannel.PayloadTypes = []colibri.PayloadTypeDoc{{ID: 111, Name: "opus"}}
	req.Contents[0].OctoChannel.RTPHeaderExtensions = []colibri.RTPHdrExtDoc{{ID: 1, URI: "urn:audio-level"}}
	if _, err := b.ProcessConferenceRequest(req); err != nil {
		t.Fatalf("octo request: %v", err)
	}

	snap, err := b.RelaySnapshot(confID)
	if err != nil {
		t.Fatalf("RelaySnapshot: %v", err)
	}
	if snap.Expired || len(snap.Relays) != 1 || snap.Relays[0] != "relay-a" {
		t.Fatalf("snapshot=%+v, want a live relay-a link", snap)
	}
	if len(snap.RTPHdrExts) != 1 || snap.RTPHdrExts[0].URI != "urn:audio-level" {
		t.Fatalf("RTPHdrExts=%v, want the audio-level extension", snap.RTPHdrExts)
	}
	if len(snap.PayloadTypes) != 1 || snap.PayloadTypes[0].ID != 111 {
		t.Fatalf("PayloadTypes=%v, want the opus mapping", snap.PayloadTypes)
	}
}

func TestSweep(t *testing.T) {
	b := newTestBridge()
	notif := &recordingNotifier{}
	b.SetNotifier(notif)
	t0 := testClock()

	confID := createConference(t, b)
	if _, err := b.ProcessConferenceRequest(channelRequest(confID, "audio", &colibri.ChannelDoc{Endpoint: "ep-1", Expire: 30})); err != nil {
		t.Fatalf("create channel: %v", err)
	}
	entry, _ := b.confs.Get(domain.ConferenceID(confID))
	entry.CreatedAt = t0

	// Before the channel deadline nothing moves.
	b.Sweep(t0.Add(10 * time.Second))
	if entry.Shim.Contents()[0].ChannelCount() != 1 {
		t.Fatalf("channel swept before its deadline")
	}

	// Past the deadline the channel goes and the endpoint is released,
	// but the conference is younger than the idle threshold.
	b.Sweep(t0.Add(31 * time.Second))
	if entry.Shim.Contents()[0].ChannelCount() != 0 {
		t.Fatalf("channel survived its deadline")
	}
	if _, ok := entry.Conf.Endpoint("ep-1"); ok {
		t.Fatalf("endpoint survived its last channel")
	}
	if b.confs.Count() != 1 {
		t.Fatalf("conference swept before the idle threshold")
	}

	// Once empty and old enough the conference itself goes.
	b.Sweep(t0.Add(2 * time.Minute))
	if b.confs.Count() != 0 {
		t.Fatalf("idle conference not swept")
	}
	if len(notif.expired) != 1 {
		t.Fatalf("expired events=%v, want one", notif.expired)
	}
}

func TestSweep_KeepsConferencesWithRelays(t *testing.T) {
	b := newTestBridge()
	t0 := testClock()

	confID := createConference(t, b)
	if _, err := b.ProcessConferenceRequest(octoRequest(confID, 600, 600, []string{"relay-a"})); err != nil {
		t.Fatalf("octo request: %v", err)
	}
	entry, _ := b.confs.Get(domain.ConferenceID(confID))
	entry.CreatedAt = t0

	b.Sweep(t0.Add(10 * time.Minute))
	if b.confs.Count() != 1 {
		t.Fatalf("conference with a live relay link was swept")
	}
}
