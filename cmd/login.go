package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/transitwatch/transitwatch/pkg/auth"
)

var (
	loginEmail    string
	loginPassword string
)

var LoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and start a session",
	Long:  "Authenticate with email and password. The access token and session cookie are persisted so later commands and restarts reuse the session.",
	RunE:  runLogin,
}

func init() {
	LoginCmd.Flags().StringVarP(&loginEmail, "email", "e", "", "Account email")
	LoginCmd.Flags().StringVarP(&loginPassword, "password", "p", "", "Account password (prompted when omitted)")
}

func runLogin(cmd *cobra.Command, args []string) error {
	app, err := newAppContext()
	if err != nil {
		return err
	}

	email := loginEmail
	if email == "" {
		email, err = promptLine("Email: ")
		if err != nil {
			return err
		}
	}
	password := loginPassword
	if password == "" {
		password, err = promptLine("Password: ")
		if err != nil {
			return err
		}
	}

	if err := app.controller.Login(cmd.Context(), email, password); err != nil {
		var loginErr *auth.LoginError
		if errors.As(err, &loginErr) {
			// The server message is meant for the user
			return fmt.Errorf("%s", loginErr.Message)
		}
		log.Printf("[CLI] Login failed: %v", err)
		return fmt.Errorf("login failed, the service could not be reached")
	}
	return nil
}

func promptLine(prompt string) (string, error) {
	fmt.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}
