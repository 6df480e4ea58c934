// Package domain contains the bridge's entity identifiers and media
// vocabulary, no logic attached.
package domain

type (
	ConferenceID string
	EndpointID   string
)
