// Package rtc hands clients the ICE configuration they need to build their
// own peer connections. The relay never terminates media itself.
package rtc

import (
	"fmt"
	"strings"

	"github.com/pion/webrtc/v4"

	"github.com/dkeye/Call/internal/config"
)

const DefaultSTUN = "stun:stun.l.google.com:19302"

var schemes = []string{"stun:", "stuns:", "turn:", "turns:"}

// ICEServers converts configured servers. An empty list falls back to the
// public Google STUN server.
func ICEServers(servers []config.ICEServer) ([]webrtc.ICEServer, error) {
	if len(servers) == 0 {
		return []webrtc.ICEServer{{URLs: []string{DefaultSTUN}}}, nil
	}
	out := make([]webrtc.ICEServer, 0, len(servers))
	for i, s := range servers {
		if len(s.URLs) == 0 {
			return nil, fmt.Errorf("ice server %d: no urls", i)
		}
		turn := false
		for _, u := range s.URLs {
			if !hasScheme(u) {
				return nil, fmt.Errorf("ice server %d: unsupported url %q", i, u)
			}
			turn = turn || strings.HasPrefix(u, "turn")
		}
		if turn && (s.Username == "" || s.Credential == "") {
			return nil, fmt.Errorf("ice server %d: turn requires username and credential", i)
		}
		srv := webrtc.ICEServer{URLs: s.URLs, Username: s.Username}
		if s.Credential != "" {
			srv.Credential = s.Credential
		}
		out = append(out, srv)
	}
	return out, nil
}

func hasScheme(u string) bool {
	for _, s := range schemes {
		if strings.HasPrefix(u, s) {
			return true
		}
	}
	return false
}
