package shim

import (
	"sort"
	"testing"
	"time"

	"github.com/vbridge-io/vbridge/internal/colibri"
)

func TestChannels_SortedSnapshot(t *testing.T) {
	ct := newTestContent()
	now := testNow()
	for i := 0; i < 5; i++ {
		ct.CreateChannel("ep-1", "", "", 60, now)
	}

	chans := ct.Channels()
	if len(chans) != 5 {
		t.Fatalf("len(Channels())=%d, want 5", len(chans))
	}
	ids := make([]string, len(chans))
	for i, ch := range chans {
		ids[i] = ch.ID()
	}
	if !sort.StringsAreSorted(ids) {
		t.Fatalf("Channels() ids not sorted: %v", ids)
	}
}

func TestExpireChannel(t *testing.T) {
	ct := newTestContent()
	ch := ct.CreateChannel("ep-1", "", "", 60, testNow())

	if _, ok := ct.ExpireChannel("no-such-channel"); ok {
		t.Fatalf("ExpireChannel removed an unknown id")
	}
	removed, ok := ct.ExpireChannel(ch.ID())
	if !ok || removed != ch {
		t.Fatalf("ExpireChannel=%v/%v, want the created channel", removed, ok)
	}
	if ct.ChannelCount() != 0 {
		t.Fatalf("ChannelCount()=%d after expire, want 0", ct.ChannelCount())
	}
}

func TestSweepExpired(t *testing.T) {
	ct := newTestContent()
	now := testNow()
	overdue := ct.CreateChannel("ep-1", "", "", 10, now)
	ct.CreateChannel("ep-2", "", "", 120, now)

	removed := ct.SweepExpired(now.Add(30 * time.Second))
	if len(removed) != 1 || removed[0].ID() != overdue.ID() {
		t.Fatalf("SweepExpired removed %v, want only the overdue channel", removed)
	}
	if ct.ChannelCount() != 1 {
		t.Fatalf("ChannelCount()=%d after sweep, want 1", ct.ChannelCount())
	}
}

func TestContent_Describe(t *testing.T) {
	ct := newTestContent()
	ct.CreateChannel("ep-1", "ep-1", "", 60, testNow())
	ct.CreateChannel("ep-2", "ep-2", "", 60, testNow())

	doc := &colibri.ConferenceDoc{}
	ct.Describe(doc)
	ct.Describe(doc) // same content doc reused, channels re-added

	if len(doc.Contents) != 1 || doc.Contents[0].Name != "audio" {
		t.Fatalf("Contents=%v, want a single audio entry", doc.Contents)
	}
	if len(doc.Contents[0].Channels) != 4 {
		t.Fatalf("len(Channels)=%d, want 4 after two describes", len(doc.Contents[0].Channels))
	}
	if doc.Contents[0].Channels[0].Endpoint == "" {
		t.Fatalf("channel description missing endpoint: %+v", doc.Contents[0].Channels[0])
	}
}
