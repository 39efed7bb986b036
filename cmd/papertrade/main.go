package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "papertrade",
	Short: "A paper trading account server",
	Long: `Papertrade runs a single simulated trading account over HTTP.

The account holds cash and shares, prices trades through a configurable
price table, and keeps a transaction log from which profit or loss can be
recomputed as of any past instant.

Configuration is read from the environment (PORT, LOG_LEVEL, PRICE_FILE,
READ_TIMEOUT, WRITE_TIMEOUT, IDLE_TIMEOUT, SHUTDOWN_TIMEOUT); flags
override it where given.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
