package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var SubscriptionsCmd = &cobra.Command{
	Use:   "subscriptions",
	Short: "Manage stop subscriptions",
	Long:  "List, add and remove the route/stop pairs whose arrivals you follow.",
}

var subscriptionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List subscriptions",
	RunE:  runSubscriptionsList,
}

var subscriptionsAddCmd = &cobra.Command{
	Use:   "add <route-id> <stop-id>",
	Short: "Subscribe to a stop on a route",
	Args:  cobra.ExactArgs(2),
	RunE:  runSubscriptionsAdd,
}

var subscriptionsRemoveCmd = &cobra.Command{
	Use:   "rm <subscription-id>",
	Short: "Remove a subscription",
	Args:  cobra.ExactArgs(1),
	RunE:  runSubscriptionsRemove,
}

func init() {
	SubscriptionsCmd.AddCommand(subscriptionsListCmd)
	SubscriptionsCmd.AddCommand(subscriptionsAddCmd)
	SubscriptionsCmd.AddCommand(subscriptionsRemoveCmd)
}

func runSubscriptionsList(cmd *cobra.Command, args []string) error {
	app, err := newAppContext()
	if err != nil {
		return err
	}
	if err := requireAuth(cmd.Context(), app); err != nil {
		return err
	}

	subs, err := app.api.ListSubscriptions(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list subscriptions: %w", err)
	}
	if len(subs) == 0 {
		fmt.Println("No subscriptions. Add one with 'transitwatch subscriptions add <route-id> <stop-id>'.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tROUTE\tSTOP")
	for _, sub := range subs {
		fmt.Fprintf(w, "%s\t%s\t%s\n", sub.ID, sub.RouteID, sub.StopID)
	}
	return w.Flush()
}

func runSubscriptionsAdd(cmd *cobra.Command, args []string) error {
	app, err := newAppContext()
	if err != nil {
		return err
	}
	if err := requireAuth(cmd.Context(), app); err != nil {
		return err
	}

	sub, err := app.api.CreateSubscription(cmd.Context(), args[0], args[1])
	if err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	fmt.Printf("Subscribed to route %s at stop %s (%s)\n", sub.RouteID, sub.StopID, sub.ID)
	return nil
}

func runSubscriptionsRemove(cmd *cobra.Command, args []string) error {
	app, err := newAppContext()
	if err != nil {
		return err
	}
	if err := requireAuth(cmd.Context(), app); err != nil {
		return err
	}

	if err := app.api.DeleteSubscription(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("failed to remove subscription: %w", err)
	}
	fmt.Println("Subscription removed")
	return nil
}
