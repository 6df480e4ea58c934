package domain

import "fmt"

// MediaType identifies the kind of media a content groups. The bridge
// only ever creates one content per media type within a conference.
type MediaType string

const (
	MediaTypeAudio MediaType = "audio"
	MediaTypeVideo MediaType = "video"
	MediaTypeData  MediaType = "data"
)

// ParseMediaType maps a wire-level content name to a MediaType.
func ParseMediaType(s string) (MediaType, error) {
	switch MediaType(s) {
	case MediaTypeAudio, MediaTypeVideo, MediaTypeData:
		return MediaType(s), nil
	}
	return "", fmt.Errorf("unknown media type %q", s)
}

// MimePrefix returns the MIME top-level prefix ("audio/", "video/") used
// when building codec records. Data contents carry no RTP payloads.
func (t MediaType) MimePrefix() string {
	switch t {
	case MediaTypeAudio:
		return "audio/"
	case MediaTypeVideo:
		return "video/"
	}
	return ""
}

func (t MediaType) String() string { return string(t) }
