package cmd

import (
	"net/http"

	"github.com/spf13/cobra"
)

var (
	sender   string
	receiver string
	amount   float64
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Submit a transaction to the node's mempool.",
	RunE: func(cmd *cobra.Command, args []string) error {
		tx := struct {
			Sender   string  `json:"sender"`
			Receiver string  `json:"receiver"`
			Amount   float64 `json:"amount"`
		}{
			Sender:   sender,
			Receiver: receiver,
			Amount:   amount,
		}

		return call(cmd.Context(), http.MethodPost, "/v1/tx/submit", nil, tx)
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().StringVarP(&sender, "sender", "s", "", "Sender of the transaction.")
	sendCmd.Flags().StringVarP(&receiver, "receiver", "r", "", "Receiver of the transaction.")
	sendCmd.Flags().Float64VarP(&amount, "amount", "a", 0, "Amount to send.")
	sendCmd.MarkFlagRequired("sender")
	sendCmd.MarkFlagRequired("receiver")
	sendCmd.MarkFlagRequired("amount")
}
