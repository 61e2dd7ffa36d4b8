package cli

import (
	"net/http"

	"github.com/spf13/cobra"
)

func newMemberCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "member",
		Short: "Manage members",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "register NAME",
		Short: "Register a member and print its id and token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var out map[string]any
			err := g.client().do(cmd.Context(), http.MethodPost, "/api/member/register", map[string]string{"name": args[0]}, &out)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	})
	return cmd
}
