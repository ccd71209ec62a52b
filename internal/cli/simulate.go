package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

var (
	simulateChain string
	simulateValue float64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "Send a synthetic low-balance alert through the configured channel",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateValue < 0 {
			return errors.New("--value must not be negative")
		}
		return getApp().SimulateAlert(cmd.Context(), simulateChain, simulateValue)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateChain, "chain", "Testnet", "Display name for the simulated chain")
	simulateCmd.Flags().Float64Var(&simulateValue, "value", 0, "Simulated wallet value in USD")
}
