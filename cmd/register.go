package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/transitwatch/transitwatch/pkg/auth"
)

var (
	registerEmail    string
	registerPassword string
)

var RegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account",
	Long:  "Create a new account. When the service issues tokens on registration the session starts immediately; otherwise sign in with 'transitwatch login'.",
	RunE:  runRegister,
}

func init() {
	RegisterCmd.Flags().StringVarP(&registerEmail, "email", "e", "", "Account email")
	RegisterCmd.Flags().StringVarP(&registerPassword, "password", "p", "", "Account password (prompted when omitted)")
}

func runRegister(cmd *cobra.Command, args []string) error {
	app, err := newAppContext()
	if err != nil {
		return err
	}

	email := registerEmail
	if email == "" {
		email, err = promptLine("Email: ")
		if err != nil {
			return err
		}
	}
	password := registerPassword
	confirm := registerPassword
	if password == "" {
		password, err = promptLine("Password: ")
		if err != nil {
			return err
		}
		confirm, err = promptLine("Confirm password: ")
		if err != nil {
			return err
		}
	}

	if err := app.controller.Register(cmd.Context(), email, password, confirm); err != nil {
		var validationErr *auth.ValidationError
		if errors.As(err, &validationErr) {
			for _, msg := range validationErr.Messages {
				fmt.Println("  -", msg)
			}
			return fmt.Errorf("registration form is invalid")
		}
		var loginErr *auth.LoginError
		if errors.As(err, &loginErr) {
			return fmt.Errorf("%s", loginErr.Message)
		}
		return fmt.Errorf("registration failed: %w", err)
	}

	if app.controller.State() != auth.StateAuthenticated {
		fmt.Println("Account created. Run 'transitwatch login' to sign in.")
	}
	return nil
}
