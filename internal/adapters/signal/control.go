package signal

func (ctl *SignalWSController) handlePing(conn *WsSignalConn) {
	resp := struct {
		ColibriClass string `json:"colibriClass"`
	}{
		ColibriClass: classPong,
	}
	_ = ctl.sendJSON(conn, resp)
}

func (ctl *SignalWSController) sendError(conn *WsSignalConn, condition, message string) {
	_ = ctl.sendJSON(conn, errorDoc{
		ColibriClass: classError,
		Condition:    condition,
		Message:      message,
	})
}
