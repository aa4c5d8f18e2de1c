// Package cli implements the agentloop command line: serve, chat and version.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is the release reported by the version command and GET /info.
var Version = "0.1.0"

// NewRootCmd builds the root command with every subcommand attached.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "agentloop",
		Short: "agentloop - streaming tool-calling agent service",
		Long: `agentloop runs a conversational agent that alternates model calls and
tool executions, persists conversations per thread and streams progress
to clients as newline delimited JSON or over a websocket.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s" .Version}}
`)

	root.AddCommand(newServeCmd(), newChatCmd(), newVersionCmd())

	return root
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "agentloop version %s\n", Version)
		},
	}
}
