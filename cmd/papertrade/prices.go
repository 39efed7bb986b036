package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/efreitasn/papertrade/internal/config"
)

var pricesCmd = &cobra.Command{
	Use:   "prices",
	Short: "Print the price table the server would trade at",
	Long: `Print the price table loaded from PRICE_FILE (or --price-file), or the
built-in AAPL/TSLA/GOOGL list when no file is configured.

Example:
  papertrade prices --price-file ./prices.yaml`,
	Args: cobra.NoArgs,
	RunE: runPrices,
}

var pricesFile string

func init() {
	rootCmd.AddCommand(pricesCmd)

	pricesCmd.Flags().StringVar(&pricesFile, "price-file", "", "YAML price file (overrides PRICE_FILE)")
}

func runPrices(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "load config")
	}
	if cmd.Flags().Changed("price-file") {
		cfg.PriceFile = pricesFile
	}

	table, err := cfg.Prices()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SYMBOL\tPRICE")
	for _, symbol := range table.Symbols() {
		price, err := table.PriceOf(context.Background(), symbol)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%s\n", symbol, price.StringFixed(2))
	}
	return w.Flush()
}
