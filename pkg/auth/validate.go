package auth

import "strings"

// ValidateRegistration checks the registration form and returns every
// failing rule as a user-displayable message. The result is computed fresh
// on each call and replaces any previous error list wholesale.
func ValidateRegistration(email, password, confirmPassword string) []string {
	var messages []string

	if len(password) < 6 {
		messages = append(messages, "Password must be at least 6 characters long")
	}
	if email == "" || !strings.Contains(email, "@") {
		messages = append(messages, "Please enter a valid email address")
	}
	if password != confirmPassword {
		messages = append(messages, "Passwords do not match")
	}

	return messages
}
