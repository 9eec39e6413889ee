package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func alertsCmd() *cobra.Command {
	alertsRoot := &cobra.Command{
		Use:   "alerts",
		Short: "Manage alerts",
	}

	alertsRoot.AddCommand(
		alertListCmd(),
		alertReadCmd(),
		alertDeleteCmd(),
		alertProductCmd(),
	)

	return alertsRoot
}

func alertListCmd() *cobra.Command {
	var (
		unreadOnly bool
		limit      int
	)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List alerts, newest first",
		Example: `  wwctl alerts list
  wwctl alerts list --unread --limit 20`,
		RunE: func(_ *cobra.Command, _ []string) error {
			c := newClient()
			alerts, err := c.ListAlerts(context.Background(), unreadOnly, limit)
			if err != nil {
				return err
			}
			if jsonOutput() {
				return outputJSON(alerts)
			}
			if len(alerts) == 0 {
				fmt.Println("No alerts.")
				return nil
			}
			return printAlertTable(alerts)
		},
	}

	listCmd.Flags().BoolVar(&unreadOnly, "unread", false, "only unread alerts")
	listCmd.Flags().IntVar(&limit, "limit", 0, "maximum number of alerts")

	return listCmd
}

func alertReadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "read <id>",
		Short: "Mark an alert as read",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			c := newClient()
			a, err := c.MarkAlertRead(context.Background(), args[0])
			if err != nil {
				return err
			}
			if jsonOutput() {
				return outputJSON(a)
			}
			fmt.Printf("Alert %s marked read.\n", a.ID)
			return nil
		},
	}
}

func alertDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an alert",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			c := newClient()
			if err := c.DeleteAlert(context.Background(), args[0]); err != nil {
				return err
			}
			fmt.Println("Alert deleted.")
			return nil
		},
	}
}

func alertProductCmd() *cobra.Command {
	var limit int

	productCmd := &cobra.Command{
		Use:   "product <product-id>",
		Short: "List a product's alerts, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			c := newClient()
			alerts, err := c.ProductAlerts(context.Background(), args[0], limit)
			if err != nil {
				return err
			}
			if jsonOutput() {
				return outputJSON(alerts)
			}
			if len(alerts) == 0 {
				fmt.Println("No alerts for this product.")
				return nil
			}
			return printAlertTable(alerts)
		},
	}

	productCmd.Flags().IntVar(&limit, "limit", 0, "maximum number of alerts")

	return productCmd
}
