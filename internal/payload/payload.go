// Package payload turns raw payload-type declarations into the codec
// records the relay transport stores.
package payload

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pion/webrtc/v4"

	"github.com/vbridge-io/vbridge/internal/colibri"
	"github.com/vbridge-io/vbridge/internal/domain"
)

// Canonical MIME types per media type. Encodings outside these tables
// are unrecognized; the caller is expected to skip them.
var (
	audioMimes = map[string]string{
		"opus":            webrtc.MimeTypeOpus,
		"g722":            webrtc.MimeTypeG722,
		"pcmu":            webrtc.MimeTypePCMU,
		"pcma":            webrtc.MimeTypePCMA,
		"red":             "audio/red",
		"telephone-event": "audio/telephone-event",
	}
	videoMimes = map[string]string{
		"vp8":        webrtc.MimeTypeVP8,
		"vp9":        webrtc.MimeTypeVP9,
		"h264":       webrtc.MimeTypeH264,
		"av1":        webrtc.MimeTypeAV1,
		"rtx":        webrtc.MimeTypeRTX,
		"ulpfec":     "video/ulpfec",
		"flexfec-03": "video/flexfec-03",
	}
)

func defaultClockRate(mediaType domain.MediaType, encoding string) uint32 {
	if mediaType == domain.MediaTypeVideo {
		return 90000
	}
	switch encoding {
	case "opus":
		return 48000
	default:
		return 8000
	}
}

// Build constructs a structured codec record from a raw declaration and
// the media type of the channel that carried it. It returns an error for
// declarations the bridge does not recognize: out-of-range ids, unknown
// encodings, encodings tagged with the wrong media type, or an rtx
// declaration without its associated payload type.
func Build(doc colibri.PayloadTypeDoc, mediaType domain.MediaType) (webrtc.RTPCodecParameters, error) {
	var zero webrtc.RTPCodecParameters

	if doc.ID < 0 || doc.ID > 127 {
		return zero, fmt.Errorf("payload type id %d out of range", doc.ID)
	}
	encoding := strings.ToLower(doc.Name)
	if encoding == "" {
		return zero, fmt.Errorf("payload type %d has no encoding name", doc.ID)
	}

	var mimes map[string]string
	switch mediaType {
	case domain.MediaTypeAudio:
		mimes = audioMimes
	case domain.MediaTypeVideo:
		mimes = videoMimes
	default:
		return zero, fmt.Errorf("media type %s carries no payload types", mediaType)
	}
	mime, ok := mimes[encoding]
	if !ok {
		return zero, fmt.Errorf("unrecognized %s encoding %q", mediaType, doc.Name)
	}

	if encoding == "rtx" {
		if _, ok := doc.Parameters["apt"]; !ok {
			return zero, fmt.Errorf("rtx payload type %d without apt parameter", doc.ID)
		}
	}

	clock := doc.ClockRate
	if clock == 0 {
		clock = defaultClockRate(mediaType, encoding)
	}
	channels := doc.Channels
	if mime == webrtc.MimeTypeOpus && channels == 0 {
		channels = 2
	}

	fbs := make([]webrtc.RTCPFeedback, 0, len(doc.RTCPFeedbacks))
	for _, fb := range doc.RTCPFeedbacks {
		fbs = append(fbs, webrtc.RTCPFeedback{Type: fb.Type, Parameter: fb.Subtype})
	}

	return webrtc.RTPCodecParameters{
		RTPCodecCapability: webrtc.RTPCodecCapability{
			MimeType:     mime,
			ClockRate:    clock,
			Channels:     channels,
			SDPFmtpLine:  fmtpLine(doc.Parameters),
			RTCPFeedback: fbs,
		},
		PayloadType: webrtc.PayloadType(doc.ID),
	}, nil
}

// fmtpLine renders fmtp parameters as "a=1;b=2" with sorted keys so the
// same declaration always produces the same record.
func fmtpLine(params map[string]string) string {
	if len(params) == 0 {
		return ""
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+params[k])
	}
	return strings.Join(parts, ";")
}
