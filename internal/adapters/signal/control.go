package signal

func (ctl *SignalWSController) handlePing(
	conn *WsSignalConn,
) {
	ctl.sendFrame(conn, serverFrame{Op: "pong"})
}
