package cli

import (
	"github.com/spf13/cobra"

	"managehub/internal/mcp"
)

func mcpCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the board as MCP tools over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := e.open(cmd.Context(), "mcp")
			if err != nil {
				return err
			}
			defer s.close()

			s.log.Info("mcp: serving on stdio")
			return mcp.Serve(mcp.NewServer(s.board, s.stores.Activity, e.version))
		},
	}
}
