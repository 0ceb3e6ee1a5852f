package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/transitwatch/transitwatch/pkg/client"
)

var ArrivalsCmd = &cobra.Command{
	Use:   "arrivals [route-id stop-id]",
	Short: "Show upcoming arrivals",
	Long:  "Show arrival predictions for one stop, or for every subscribed stop when no arguments are given.",
	Args:  cobra.RangeArgs(0, 2),
	RunE:  runArrivals,
}

var RoutesCmd = &cobra.Command{
	Use:   "routes [route-id]",
	Short: "Browse routes and their stops",
	Long:  "List every route, or the stops of one route when a route ID is given.",
	Args:  cobra.RangeArgs(0, 1),
	RunE:  runRoutes,
}

func runArrivals(cmd *cobra.Command, args []string) error {
	if len(args) == 1 {
		return fmt.Errorf("provide both a route ID and a stop ID, or neither")
	}

	app, err := newAppContext()
	if err != nil {
		return err
	}
	if err := requireAuth(cmd.Context(), app); err != nil {
		return err
	}

	if len(args) == 2 {
		arrivals, err := app.api.Arrivals(cmd.Context(), args[0], args[1])
		if err != nil {
			return fmt.Errorf("failed to fetch arrivals: %w", err)
		}
		printArrivals(args[0], args[1], arrivals)
		return nil
	}

	subs, err := app.api.ListSubscriptions(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list subscriptions: %w", err)
	}
	if len(subs) == 0 {
		fmt.Println("No subscriptions to show arrivals for.")
		return nil
	}

	for _, sub := range subs {
		arrivals, err := app.api.Arrivals(cmd.Context(), sub.RouteID, sub.StopID)
		if err != nil {
			fmt.Printf("route %s stop %s: fetch failed: %v\n", sub.RouteID, sub.StopID, err)
			continue
		}
		printArrivals(sub.RouteID, sub.StopID, arrivals)
	}
	return nil
}

func printArrivals(routeID, stopID string, arrivals []client.Arrival) {
	fmt.Printf("Route %s, stop %s:\n", routeID, stopID)
	if len(arrivals) == 0 {
		fmt.Println("  no upcoming arrivals")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, a := range arrivals {
		fmt.Fprintf(w, "  %d min\t%s\t%s\n", a.Minutes(), a.Destination, a.VehicleID)
	}
	_ = w.Flush()
}

func runRoutes(cmd *cobra.Command, args []string) error {
	app, err := newAppContext()
	if err != nil {
		return err
	}
	if err := requireAuth(cmd.Context(), app); err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	if len(args) == 1 {
		stops, err := app.api.ListStops(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to list stops: %w", err)
		}
		fmt.Fprintln(w, "STOP\tNAME")
		for _, s := range stops {
			fmt.Fprintf(w, "%s\t%s\n", s.ID, s.Name)
		}
		return w.Flush()
	}

	routes, err := app.api.ListRoutes(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list routes: %w", err)
	}
	fmt.Fprintln(w, "ROUTE\tNAME")
	for _, r := range routes {
		fmt.Fprintf(w, "%s\t%s\n", r.ID, r.Name)
	}
	return w.Flush()
}
