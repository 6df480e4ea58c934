package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/vbridge-io/vbridge/internal/colibri"
	"github.com/vbridge-io/vbridge/internal/domain"
)

const (
	classConferenceRequest       = "ConferenceRequest"
	classConferenceResponse      = "ConferenceResponse"
	classConferenceModifiedEvent = "ConferenceModifiedEvent"
	classConferenceExpiredEvent  = "ConferenceExpiredEvent"
	classError                   = "Error"
	classPing                    = "Ping"
	classPong                    = "Pong"
)

type requestDoc struct {
	ColibriClass string                 `json:"colibriClass"`
	Conference   *colibri.ConferenceDoc `json:"conference"`
}

type responseDoc struct {
	ColibriClass string                 `json:"colibriClass"`
	Conference   *colibri.ConferenceDoc `json:"conference"`
}

type errorDoc struct {
	ColibriClass string `json:"colibriClass"`
	Condition    string `json:"condition"`
	Message      string `json:"message"`
}

type eventDoc struct {
	ColibriClass string `json:"colibriClass"`
	ConferenceID string `json:"conferenceId"`
}

// handleConferenceRequest applies one conference document against the
// bridge and answers with the response document. The connection is
// subscribed to the conference so later modifications reach it as
// events.
func (ctl *SignalWSController) handleConferenceRequest(conn *WsSignalConn, data []byte) {
	if ctl.Limiter != nil && !ctl.Limiter.Allow(conn.id) {
		log.Warn().Str("module", "signal").Str("conn", conn.id).Msg("request rate limit exceeded")
		ctl.sendError(conn, string(colibri.ConditionBadRequest), "rate limit exceeded")
		return
	}

	var p requestDoc
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad conference request payload")
		ctl.sendError(conn, string(colibri.ConditionBadRequest), "malformed conference request")
		return
	}
	if p.Conference == nil {
		ctl.sendError(conn, string(colibri.ConditionBadRequest), "conference request without conference")
		return
	}

	resp, err := ctl.Bridge.ProcessConferenceRequest(p.Conference)
	if err != nil {
		condition, message := string(colibri.ConditionInternalServerError), err.Error()
		if perr, ok := colibri.AsProcessingError(err); ok {
			condition = string(perr.Condition)
			message = perr.Message
		}
		log.Warn().Str("module", "signal").Str("conn", conn.id).Str("condition", condition).Str("reason", message).Msg("conference request failed")
		ctl.sendError(conn, condition, message)
		return
	}

	conn.Subscribe(domain.ConferenceID(resp.ID))
	if err := ctl.sendJSON(conn, responseDoc{ColibriClass: classConferenceResponse, Conference: resp}); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("conn", conn.id).Msg("conference response not sent")
	}
}
