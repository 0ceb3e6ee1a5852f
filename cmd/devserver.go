package cmd

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/transitwatch/transitwatch/internal/devserver"
)

var (
	devserverPort  string
	devserverEmail string
	devserverPass  string
)

var DevserverCmd = &cobra.Command{
	Use:   "devserver",
	Short: "Run a local stub transit API",
	Long:  "Start an in-memory transit API with real login, refresh cookie rotation and synthetic arrival data, for development and demos.",
	RunE:  runDevserver,
}

func init() {
	DevserverCmd.Flags().StringVarP(&devserverPort, "port", "p", "8080", "Port to listen on")
	DevserverCmd.Flags().StringVar(&devserverEmail, "seed-email", "rider@example.com", "Email of the pre-registered account")
	DevserverCmd.Flags().StringVar(&devserverPass, "seed-password", "transit123", "Password of the pre-registered account")

	if err := viper.BindPFlag("devserver.port", DevserverCmd.Flags().Lookup("port")); err != nil {
		log.Printf("Failed to bind port flag: %v", err)
	}
}

func runDevserver(cmd *cobra.Command, args []string) error {
	s := devserver.NewServer()
	if devserverEmail != "" {
		s.SeedUser(devserverEmail, devserverPass)
		log.Printf("[DEVSERVER] Seeded account %s", devserverEmail)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.Start(":" + devserverPort); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	fmt.Printf("Stub transit API listening on :%s\n", devserverPort)
	fmt.Printf("Point the client at it with TRANSITWATCH_API_BASE_URL=http://localhost:%s\n", devserverPort)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("devserver failed: %w", err)
	case <-quit:
		log.Printf("[DEVSERVER] Shutdown signal received")
		return s.Shutdown()
	}
}
