// Package cli implements callctl, the operator tool for a running signaling
// server.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

type globalFlags struct {
	server string
	token  string
}

// NewRootCmd builds the callctl command tree.
func NewRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:   "callctl",
		Short: "Operate a Call signaling server",
		Long: `callctl talks to the administrative HTTP surface of a Call signaling server
and can watch a room's signaling topic live.

Examples:
  callctl member register alice
  callctl room create --creator 1 --guest 2
  callctl --token $TOKEN room watch AB12CD`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVar(&g.server, "server", envOr("CALLCTL_SERVER", "http://localhost:8080"), "server base URL")
	root.PersistentFlags().StringVar(&g.token, "token", os.Getenv("CALLCTL_TOKEN"), "bearer token returned by member register")

	root.AddCommand(newMemberCmd(g), newRoomCmd(g))
	return root
}

// Execute runs callctl and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	root := NewRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(root.ErrOrStderr(), "error:", err)
		os.Exit(1)
	}
}

func (g *globalFlags) client() *apiClient {
	return newAPIClient(g.server, g.token)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
