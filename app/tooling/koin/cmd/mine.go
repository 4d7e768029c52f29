package cmd

import (
	"net/http"

	"github.com/spf13/cobra"
)

var user string

var mineCmd = &cobra.Command{
	Use:   "mine",
	Short: "Mine a new block with the pending transactions.",
	RunE: func(cmd *cobra.Command, args []string) error {
		var header map[string]string
		if user != "" {
			header = map[string]string{"user": user}
		}

		return call(cmd.Context(), http.MethodPost, "/v1/blocks/mine", header, nil)
	},
}

func init() {
	rootCmd.AddCommand(mineCmd)
	mineCmd.Flags().StringVar(&user, "user", "", "Beneficiary of the mining reward.")
}
