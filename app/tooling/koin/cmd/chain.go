package cmd

import (
	"net/http"

	"github.com/spf13/cobra"
)

var chainCmd = &cobra.Command{
	Use:   "chain",
	Short: "Print the chain held by the node.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return call(cmd.Context(), http.MethodGet, "/v1/chain", nil, nil)
	},
}

var validCmd = &cobra.Command{
	Use:   "valid",
	Short: "Ask the node to validate its chain.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return call(cmd.Context(), http.MethodGet, "/v1/chain/valid", nil, nil)
	},
}

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Ask the node to adopt the longest valid chain held by its peers.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return call(cmd.Context(), http.MethodGet, "/v1/chain/resolve", nil, nil)
	},
}

func init() {
	rootCmd.AddCommand(chainCmd)
	rootCmd.AddCommand(validCmd)
	rootCmd.AddCommand(resolveCmd)
}
