package cmd

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/transitwatch/transitwatch/pkg/auth"
	"github.com/transitwatch/transitwatch/pkg/poller"
)

var watchSchedule string

var WatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Continuously watch arrivals for every subscription",
	Long:  "Poll arrival predictions for all subscribed stops on a schedule and print each update. Stops when the session ends or on Ctrl-C.",
	RunE:  runWatch,
}

func init() {
	WatchCmd.Flags().StringVarP(&watchSchedule, "schedule", "s", "", "Poll schedule, cron or descriptor syntax (defaults to the configured arrivals_schedule)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	app, err := newAppContext()
	if err != nil {
		return err
	}
	if err := requireAuth(cmd.Context(), app); err != nil {
		return err
	}

	schedule := watchSchedule
	if schedule == "" {
		schedule = app.cfg.ArrivalsSchedule
	}

	p, err := poller.NewPoller(app.api, app.controller.Gate(), poller.Config{
		Schedule:       schedule,
		RequestTimeout: app.cfg.RequestTimeout(),
	})
	if err != nil {
		return err
	}

	unsubscribe := p.Subscribe(func(snaps []poller.Snapshot) {
		for _, snap := range snaps {
			marker := ""
			if snap.Stale {
				marker = " (stale)"
			}
			fmt.Printf("Route %s, stop %s%s:\n", snap.Subscription.RouteID, snap.Subscription.StopID, marker)
			if len(snap.Arrivals) == 0 {
				fmt.Println("  no upcoming arrivals")
				continue
			}
			for _, a := range snap.Arrivals {
				fmt.Printf("  %d min  %s  %s\n", a.Minutes(), a.Destination, a.VehicleID)
			}
		}
	})
	defer unsubscribe()

	if err := p.Start(cmd.Context()); err != nil {
		return err
	}
	defer p.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	// Stop either on a signal or when the session ends
	sessionEnded := make(chan struct{})
	var endOnce sync.Once
	unwatch := app.controller.Subscribe(func(state auth.State) {
		if state == auth.StateUnauthenticated {
			endOnce.Do(func() { close(sessionEnded) })
		}
	})
	defer unwatch()

	select {
	case <-quit:
		log.Printf("[CLI] Interrupt received, stopping watch")
	case <-sessionEnded:
		fmt.Println("Session ended, run 'transitwatch login' to sign in again.")
	}
	return nil
}
