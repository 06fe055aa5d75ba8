package main

import (
	"github.com/spf13/cobra"

	"github.com/cyl19970726/Code3/container"
	"github.com/cyl19970726/Code3/core/bounty"
	"github.com/cyl19970726/Code3/mcp"
	"github.com/cyl19970726/Code3/security"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the bounty tools over MCP stdio",
	Long: `Serve the bounty tools over MCP stdio. Mutating tools act as the operator
whose hex private key is in BOUNTY_MCP_IDENTITY. Without it only read tools work.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := container.NewContainer(cmd.Context(), configPath)
		if err != nil {
			return err
		}
		defer c.Close()

		var operator *bounty.Address
		if c.Config.MCPIdentity != "" {
			priv, err := security.ParsePrivateKey(c.Config.MCPIdentity)
			if err != nil {
				return err
			}
			id := security.Identity(priv)
			operator = &id
			c.Logger.Info("mcp operator identity loaded", "identity", id.String())
		} else {
			c.Logger.Warn("no mcp operator identity, mutating tools disabled")
		}

		return mcp.NewMCPServer(c.BountyService, operator).ServeStdio()
	},
}
