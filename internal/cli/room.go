package cli

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/spf13/cobra"
)

func newRoomCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "room",
		Short: "Manage rooms",
	}
	cmd.AddCommand(
		newRoomCreateCmd(g),
		newRoomJoinCmd(g),
		newRoomGetCmd(g),
		newRoomDeleteCmd(g),
		newRoomListCmd(g),
		newRoomWatchCmd(g),
	)
	return cmd
}

func newRoomCreateCmd(g *globalFlags) *cobra.Command {
	var creator, guest int64
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a room, paired when --guest is given",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if creator <= 0 {
				return errors.New("--creator is required")
			}
			body := map[string]int64{"creatorId": creator}
			if guest > 0 {
				body["guestId"] = guest
			}
			var out map[string]any
			if err := g.client().do(cmd.Context(), http.MethodPost, "/api/room/create", body, &out); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().Int64Var(&creator, "creator", 0, "creator member id")
	cmd.Flags().Int64Var(&guest, "guest", 0, "guest member id")
	return cmd
}

func newRoomJoinCmd(g *globalFlags) *cobra.Command {
	var member int64
	cmd := &cobra.Command{
		Use:   "join CODE",
		Short: "Add a guest to an open room",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if member <= 0 {
				return errors.New("--member is required")
			}
			var out map[string]any
			err := g.client().do(cmd.Context(), http.MethodPost, roomPath(args[0])+"/guest", map[string]int64{"memberId": member}, &out)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().Int64Var(&member, "member", 0, "member id joining as guest")
	return cmd
}

func newRoomGetCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "get CODE",
		Short: "Show a room with participant names",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var out map[string]any
			if err := g.client().do(cmd.Context(), http.MethodGet, roomPath(args[0]), nil, &out); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
}

func newRoomDeleteCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete CODE",
		Short: "Delete a room",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var out map[string]any
			err := g.client().do(cmd.Context(), http.MethodDelete, roomPath(args[0]), nil, &out)
			if IsNotFound(err) {
				return fmt.Errorf("room %s not found", strings.ToUpper(args[0]))
			}
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
}

func newRoomListCmd(g *globalFlags) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List rooms",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch output {
			case "json":
				var out map[string]any
				if err := g.client().do(cmd.Context(), http.MethodGet, "/api/rooms", nil, &out); err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), out)
			case "table":
				var out struct {
					Rooms []roomRow `json:"rooms"`
				}
				if err := g.client().do(cmd.Context(), http.MethodGet, "/api/rooms", nil, &out); err != nil {
					return err
				}
				return renderRooms(cmd.OutOrStdout(), out.Rooms)
			default:
				return fmt.Errorf("unknown output %q (json|table)", output)
			}
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "json", "output format: json or table")
	return cmd
}

func roomPath(code string) string {
	return "/api/room/" + url.PathEscape(strings.ToUpper(strings.TrimSpace(code)))
}
