package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tlundberg/wishwatch/internal/api/handlers"
)

func productsCmd() *cobra.Command {
	productsRoot := &cobra.Command{
		Use:   "products",
		Short: "Manage tracked products",
		Long: "Track products by retailer and listing id, inspect their state and\n" +
			"price history, and stop tracking them.",
	}

	productsRoot.AddCommand(
		productTrackCmd(),
		productListCmd(),
		productGetCmd(),
		productHistoryCmd(),
		productUntrackCmd(),
	)

	return productsRoot
}

func productTrackCmd() *cobra.Command {
	var (
		title        string
		url          string
		pollInterval string
	)

	trackCmd := &cobra.Command{
		Use:   "track <retailer> <source-id>",
		Short: "Start tracking a product",
		Example: `  wwctl products track ebay 255089442512 --title "RTX 3080"
  wwctl products track amazon B08HR5SXPS --poll-interval 30m`,
		Args: cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			c := newClient()
			p, err := c.TrackProduct(context.Background(), handlers.CreateProductRequest{
				Retailer:     args[0],
				SourceID:     args[1],
				Title:        title,
				URL:          url,
				PollInterval: pollInterval,
			})
			if err != nil {
				return err
			}
			if jsonOutput() {
				return outputJSON(p)
			}
			fmt.Printf("Tracking %s/%s as %s\n", p.Retailer, p.SourceID, p.ID)
			return nil
		},
	}

	trackCmd.Flags().StringVar(&title, "title", "", "product title")
	trackCmd.Flags().StringVar(&url, "url", "", "product page URL")
	trackCmd.Flags().
		StringVar(&pollInterval, "poll-interval", "", "per-product poll interval, e.g. 30m")

	return trackCmd
}

func productListCmd() *cobra.Command {
	var trackedOnly bool

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List products",
		Example: `  wwctl products list
  wwctl products list --tracked`,
		RunE: func(_ *cobra.Command, _ []string) error {
			c := newClient()
			products, err := c.ListProducts(context.Background(), trackedOnly)
			if err != nil {
				return err
			}
			if jsonOutput() {
				return outputJSON(products)
			}
			if len(products) == 0 {
				fmt.Println("No products found.")
				return nil
			}
			return printProductTable(products)
		},
	}

	listCmd.Flags().BoolVar(&trackedOnly, "tracked", false, "only tracked products")

	return listCmd
}

func productGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show product details",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			c := newClient()
			p, err := c.GetProduct(context.Background(), args[0])
			if err != nil {
				return err
			}
			if jsonOutput() {
				return outputJSON(p)
			}
			return printProductDetail(p)
		},
	}
}

func productHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <id>",
		Short: "Show a product's price history",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			c := newClient()
			pts, err := c.GetHistory(context.Background(), args[0])
			if err != nil {
				return err
			}
			if jsonOutput() {
				return outputJSON(pts)
			}
			if len(pts) == 0 {
				fmt.Println("No history recorded yet.")
				return nil
			}
			return printHistoryTable(pts)
		},
	}
}

func productUntrackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "untrack <id>",
		Short: "Stop tracking a product and remove its history",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			c := newClient()
			if err := c.UntrackProduct(context.Background(), args[0]); err != nil {
				return err
			}
			fmt.Println("Product untracked. Its alerts are kept.")
			return nil
		},
	}
}
