package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/vbridge-io/vbridge/internal/app"
	"github.com/vbridge-io/vbridge/internal/colibri"
)

// ConferenceHandler serves the REST view of the bridge:
//
//   - POST   /api/conferences           → apply a conference request doc
//   - GET    /api/conferences           → list conference summaries
//   - GET    /api/conferences/{id}      → full conference description
//   - DELETE /api/conferences/{id}      → expire a conference
//   - GET    /api/conferences/{id}/relay → relay transport snapshot
type ConferenceHandler struct {
	Bridge *app.Bridge
}

func NewConferenceHandler(bridge *app.Bridge) *ConferenceHandler {
	return &ConferenceHandler{Bridge: bridge}
}

// writeError maps processing error conditions onto HTTP statuses.
// Anything that is not a ProcessingError is an internal server error.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	condition := colibri.ConditionInternalServerError
	message := err.Error()
	if perr, ok := colibri.AsProcessingError(err); ok {
		condition = perr.Condition
		message = perr.Message
		switch perr.Condition {
		case colibri.ConditionBadRequest:
			status = http.StatusBadRequest
		case colibri.ConditionItemNotFound:
			status = http.StatusNotFound
		}
	}
	c.JSON(status, gin.H{"condition": string(condition), "message": message})
}

func (h *ConferenceHandler) ProcessConference(c *gin.Context) {
	var req colibri.ConferenceDoc
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn().Err(err).Str("module", "adapters.http").Msg("bad conference request body")
		c.JSON(http.StatusBadRequest, gin.H{"condition": string(colibri.ConditionBadRequest), "message": "malformed conference document"})
		return
	}

	resp, err := h.Bridge.ProcessConferenceRequest(&req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ConferenceHandler) ListConferences(c *gin.Context) {
	summaries := h.Bridge.ListConferences()
	c.Header("X-Total-Count", strconv.Itoa(len(summaries)))
	c.JSON(http.StatusOK, summaries)
}

func (h *ConferenceHandler) GetConference(c *gin.Context) {
	doc, err := h.Bridge.DescribeConference(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (h *ConferenceHandler) ExpireConference(c *gin.Context) {
	if err := h.Bridge.ExpireConference(c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ConferenceHandler) GetRelay(c *gin.Context) {
	snap, err := h.Bridge.RelaySnapshot(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *ConferenceHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
