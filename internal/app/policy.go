package app

import "github.com/vbridge-io/vbridge/internal/domain"

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	DropEvent
	Disconnect
)

// Policy decides what happens to a subscriber whose event queue is
// full when a conference notification is fanned out.
type Policy interface {
	OnBackpressure(conf domain.ConferenceID, subscriber string) BackpressureAction
}

// SimplePolicy drops slow subscribers so a stalled connection never
// backs up conference notifications for the rest.
type SimplePolicy struct{}

func (SimplePolicy) OnBackpressure(conf domain.ConferenceID, subscriber string) BackpressureAction {
	return Disconnect
}
