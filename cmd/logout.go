package cmd

import (
	"github.com/spf13/cobra"
)

var LogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "End the session and clear local credentials",
	Long:  "Invalidate the session server-side and remove the stored access token and session cookie. Local state is cleared even when the server cannot be reached.",
	RunE:  runLogout,
}

func runLogout(cmd *cobra.Command, args []string) error {
	app, err := newAppContext()
	if err != nil {
		return err
	}

	app.controller.Logout(cmd.Context())
	return nil
}
