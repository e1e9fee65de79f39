package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/raphaelgruber/finchat/internal/client"
	"github.com/raphaelgruber/finchat/internal/models"
	"github.com/spf13/cobra"
)

var (
	loginEmail    string
	registerEmail string
	registerName  string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to your finchat account",
	Long: `Sign in with email and password. The password is read from the terminal
without echo. The session is stored in the credentials file so later
commands stay signed in.

Examples:
  finchat login
  finchat login --email ada@example.com`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create a finchat account",
	Args:  cobra.NoArgs,
	RunE:  runRegister,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and forget the stored session",
	Args:  cobra.NoArgs,
	RunE:  runLogout,
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	Args:  cobra.NoArgs,
	RunE:  runWhoami,
}

func init() {
	loginCmd.Flags().StringVarP(&loginEmail, "email", "e", "", "account email")
	registerCmd.Flags().StringVarP(&registerEmail, "email", "e", "", "account email")
	registerCmd.Flags().StringVarP(&registerName, "name", "n", "", "full name")
}

func runLogin(cmd *cobra.Command, args []string) error {
	email := loginEmail
	if email == "" {
		var err error
		if email, err = promptLine("Email: "); err != nil {
			return err
		}
	}
	password, err := promptPassword("Password: ")
	if err != nil {
		return err
	}

	user, err := apiClient.Login(context.Background(), email, password)
	if err != nil {
		return userError("login failed", err)
	}

	fmt.Printf("Signed in as %s\n", displayName(user))
	return nil
}

func runRegister(cmd *cobra.Command, args []string) error {
	in := models.RegisterRequest{Email: registerEmail, FullName: registerName}
	var err error
	if in.Email == "" {
		if in.Email, err = promptLine("Email: "); err != nil {
			return err
		}
	}
	if in.FullName == "" {
		if in.FullName, err = promptLine("Full name: "); err != nil {
			return err
		}
	}
	if in.Password, err = promptPassword("Password: "); err != nil {
		return err
	}
	confirm, err := promptPassword("Confirm password: ")
	if err != nil {
		return err
	}
	if confirm != in.Password {
		return errors.New("passwords do not match")
	}

	user, err := apiClient.Register(context.Background(), in)
	if err != nil {
		return userError("registration failed", err)
	}

	fmt.Printf("Welcome, %s! You are signed in.\n", displayName(user))
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	wasSignedIn := creds.IsAuthenticated()
	if err := apiClient.Logout(context.Background()); err != nil {
		// Local credentials are gone either way.
		logger.Warn("server logout failed", "error", err)
	}
	if wasSignedIn {
		fmt.Println("Signed out")
	} else {
		fmt.Println("Not signed in")
	}
	return nil
}

func runWhoami(cmd *cobra.Command, args []string) error {
	user, err := apiClient.Me(context.Background())
	if errors.Is(err, client.ErrNotAuthenticated) {
		fmt.Println("Not signed in")
		return nil
	}
	if err != nil {
		return userError("fetch profile", err)
	}

	fmt.Printf("%s <%s>\n", displayName(user), user.Email)
	fmt.Printf("  ID: %s\n", user.ID)
	if !user.CreatedAt.IsZero() {
		fmt.Printf("  Member since: %s\n", user.CreatedAt.Format("2006-01-02"))
	}
	return nil
}

func displayName(u *models.User) string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Email
}
