package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ecoloop/ecoloop/internal/api"
)

var loginCmd = &cobra.Command{
	Use:   "login <username>",
	Short: "Log in and remember the session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := readPassword(cmd)
		if err != nil {
			return err
		}
		e, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		u, err := e.provider.Login(cmd.Context(), args[0], password)
		if err != nil {
			return apiError(err)
		}
		fmt.Printf("Logged in as %s (%s coins).\n", u.Username, humanize.Comma(int64(u.Coins)))
		return nil
	},
}

var registerCmd = &cobra.Command{
	Use:   "register <username> <email>",
	Short: "Create an account and log in",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := readPassword(cmd)
		if err != nil {
			return err
		}
		e, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		u, err := e.provider.Register(cmd.Context(), args[0], args[1], password)
		if err != nil {
			return apiError(err)
		}
		fmt.Printf("Welcome to EcoLoop, %s!\n", u.Username)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the saved session",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		if err := e.provider.Logout(cmd.Context()); err != nil {
			return fmt.Errorf("logout: %w", err)
		}
		fmt.Println("Logged out.")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged-in learner",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer e.Close()
		if err := e.requireLogin(); err != nil {
			return err
		}

		u, err := e.provider.Refresh(cmd.Context())
		if err != nil {
			cached, ok := e.provider.User()
			if !ok {
				return apiError(err)
			}
			fmt.Fprintln(os.Stderr, "Offline, showing saved profile:", api.UserMessage(err))
			u = cached
		}
		printUser(u)
		return nil
	},
}

func printUser(u api.User) {
	completed := 0
	for _, p := range u.Progress {
		if api.LevelStatus(strings.ToLower(p.Status)) == api.StatusCompleted {
			completed++
		}
	}
	fmt.Printf("User:      %s\n", u.Username)
	if u.Email != "" {
		fmt.Printf("Email:     %s\n", u.Email)
	}
	fmt.Printf("Coins:     %s\n", humanize.Comma(int64(u.Coins)))
	fmt.Printf("Streak:    %d day(s)\n", u.Streak)
	fmt.Printf("Completed: %d level(s)\n", completed)
}

// readPassword takes --password or reads one line from stdin.
func readPassword(cmd *cobra.Command) (string, error) {
	if p, _ := cmd.Flags().GetString("password"); p != "" {
		return p, nil
	}
	fmt.Fprint(os.Stderr, "Password: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func init() {
	loginCmd.Flags().String("password", "", "Password (read from stdin when omitted)")
	registerCmd.Flags().String("password", "", "Password (read from stdin when omitted)")
}
