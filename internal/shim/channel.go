package shim

import (
	"sync"
	"time"

	"github.com/vbridge-io/vbridge/internal/colibri"
	"github.com/vbridge-io/vbridge/internal/domain"
)

// DirectionSendRecv is the default transceiver direction a channel is
// created with when the request names none.
const (
	DirectionSendRecv = "sendrecv"
	DirectionSendOnly = "sendonly"
	DirectionRecvOnly = "recvonly"
	DirectionInactive = "inactive"
)

// ValidDirection reports whether s is a known transceiver direction.
func ValidDirection(s string) bool {
	switch s {
	case DirectionSendRecv, DirectionSendOnly, DirectionRecvOnly, DirectionInactive:
		return true
	}
	return false
}

// Channel is a single media transceiver configuration within a content.
type Channel struct {
	id       string
	endpoint domain.EndpointID
	bundleID string

	mu           sync.RWMutex
	direction    string
	expire       int
	deadline     time.Time
	sources      []colibri.SourceDoc
	sourceGroups []colibri.SourceGroupDoc
	payloadTypes []colibri.PayloadTypeDoc
	rtpHdrExts   []colibri.RTPHdrExtDoc
}

func (ch *Channel) ID() string                  { return ch.id }
func (ch *Channel) Endpoint() domain.EndpointID { return ch.endpoint }
func (ch *Channel) ChannelBundleID() string     { return ch.bundleID }

func (ch *Channel) Direction() string {
	ch.mu.RLock()
	defer ch.mu.RUnlock()
	return ch.direction
}

// SetExpire renews the channel lifetime. The deadline is measured from
// now; a later shorter expire shortens it.
func (ch *Channel) SetExpire(seconds int, now time.Time) {
	ch.mu.Lock()
	ch.expire = seconds
	ch.deadline = now.Add(time.Duration(seconds) * time.Second)
	ch.mu.Unlock()
}

// ExpiredAt reports whether the channel's lifetime has run out.
func (ch *Channel) ExpiredAt(now time.Time) bool {
	ch.mu.RLock()
	defer ch.mu.RUnlock()
	return now.After(ch.deadline)
}

// Update applies the mutable fields of a channel description. Unlike the
// relay transport's tables this is plain last-write-wins translation.
func (ch *Channel) Update(doc *colibri.ChannelDoc) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if doc.Direction != "" {
		ch.direction = doc.Direction
	}
	if doc.Sources != nil {
		ch.sources = append([]colibri.SourceDoc(nil), doc.Sources...)
	}
	if doc.SourceGroups != nil {
		ch.sourceGroups = append([]colibri.SourceGroupDoc(nil), doc.SourceGroups...)
	}
	if doc.PayloadTypes != nil {
		ch.payloadTypes = append([]colibri.PayloadTypeDoc(nil), doc.PayloadTypes...)
	}
	if doc.RTPHeaderExtensions != nil {
		ch.rtpHdrExts = append([]colibri.RTPHdrExtDoc(nil), doc.RTPHeaderExtensions...)
	}
}

// Describe copies the channel state into doc without exposing internal
// slices.
func (ch *Channel) Describe(doc *colibri.ChannelDoc) {
	ch.mu.RLock()
	defer ch.mu.RUnlock()
	doc.ID = ch.id
	doc.Endpoint = string(ch.endpoint)
	doc.ChannelBundleID = ch.bundleID
	doc.Expire = ch.expire
	doc.Direction = ch.direction
	doc.Sources = append([]colibri.SourceDoc(nil), ch.sources...)
	doc.SourceGroups = append([]colibri.SourceGroupDoc(nil), ch.sourceGroups...)
	doc.PayloadTypes = append([]colibri.PayloadTypeDoc(nil), ch.payloadTypes...)
	doc.RTPHeaderExtensions = append([]colibri.RTPHdrExtDoc(nil), ch.rtpHdrExts...)
}
