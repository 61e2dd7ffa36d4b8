package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

func newRoomWatchCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "watch CODE",
		Short: "Subscribe to a room's signaling topic and print every frame",
		Long: `watch connects to the signaling fabric with --token, subscribes to the room
topic and prints frames until interrupted. Only the room's creator or guest
may subscribe.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if g.token == "" {
				return errors.New("--token is required")
			}
			code := strings.ToUpper(strings.TrimSpace(args[0]))
			return watch(cmd.Context(), g.server, g.token, code, cmd.OutOrStdout())
		},
	}
}

func watch(ctx context.Context, server, token, code string, out io.Writer) error {
	wsURL, err := signalingURL(server)
	if err != nil {
		return err
	}
	hdr := http.Header{}
	hdr.Set("Authorization", "Bearer "+token)
	d := websocket.Dialer{Subprotocols: []string{"signal.json"}}
	conn, resp, err := d.DialContext(ctx, wsURL, hdr)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial %s: %s", wsURL, resp.Status)
		}
		return fmt.Errorf("dial %s: %w", wsURL, err)
	}
	defer conn.Close()

	sub := map[string]string{"op": "subscribe", "destination": "/topic/signaling/" + code}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	go func() {
		<-ctx.Done()
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		fmt.Fprintln(out, string(data))
	}
}

// signalingURL maps the HTTP base URL onto the WebSocket endpoint.
func signalingURL(server string) (string, error) {
	u, err := url.Parse(server)
	if err != nil {
		return "", fmt.Errorf("server url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("server url: unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws-signaling"
	return u.String(), nil
}
