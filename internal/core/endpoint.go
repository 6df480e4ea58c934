package core

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"sync"

	"github.com/vbridge-io/vbridge/internal/colibri"
	"github.com/vbridge-io/vbridge/internal/domain"
)

// ErrTransportClosed is the I/O failure Describe reports once an
// endpoint has expired.
var ErrTransportClosed = errors.New("endpoint transport closed")

// endpointImpl implements Endpoint. The advertised ICE credentials are
// generated at creation and live as long as the endpoint.
type endpointImpl struct {
	id domain.EndpointID

	mu          sync.RWMutex
	displayName string
	statsID     string
	transport   colibri.TransportDoc
	expired     bool
}

func NewEndpoint(id domain.EndpointID) Endpoint {
	return &endpointImpl{
		id: id,
		transport: colibri.TransportDoc{
			Ufrag:   randomHex(4),
			Pwd:     randomHex(16),
			RTCPMux: true,
		},
	}
}

func (e *endpointImpl) ID() domain.EndpointID { return e.id }

func (e *endpointImpl) DisplayName() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.displayName
}

func (e *endpointImpl) SetDisplayName(name string) {
	e.mu.Lock()
	e.displayName = name
	e.mu.Unlock()
}

func (e *endpointImpl) StatsID() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.statsID
}

func (e *endpointImpl) SetStatsID(id string) {
	e.mu.Lock()
	e.statsID = id
	e.mu.Unlock()
}

// Describe copies the endpoint's transport into the bundle. It fails
// with ErrTransportClosed after Expire.
func (e *endpointImpl) Describe(bundle *colibri.ChannelBundleDoc) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.expired {
		return ErrTransportClosed
	}
	t := e.transport
	bundle.Transport = &t
	return nil
}

func (e *endpointImpl) Expire() {
	e.mu.Lock()
	e.expired = true
	e.mu.Unlock()
}

func randomHex(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms.
		panic(err)
	}
	return hex.EncodeToString(buf)
}
