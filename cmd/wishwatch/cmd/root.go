// Package cmd implements the wishwatch server commands.
package cmd

import (
	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "wishwatch",
	Short: "Track wishlist products for price and availability changes",
	Long: "wishwatch polls retailer listings for tracked products, detects price\n" +
		"drops, stock transitions, and auction deadlines, and raises deduplicated\n" +
		"alerts with price history for each product.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "config file path")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
