package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ecoloop/ecoloop/internal/account"
	"github.com/ecoloop/ecoloop/internal/api"
)

var levelsCmd = &cobra.Command{
	Use:   "levels",
	Short: "List levels and your progress",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer e.Close()
		if err := e.requireLogin(); err != nil {
			return err
		}

		dash, err := e.provider.LoadDashboard(cmd.Context())
		if err != nil {
			cached, ok := e.provider.CachedDashboard(cmd.Context())
			if !ok {
				return apiError(err)
			}
			fmt.Fprintln(os.Stderr, "Offline, showing saved levels:", api.UserMessage(err))
			dash = cached
		}
		printLevels(dash)
		return nil
	},
}

func printLevels(dash account.Dashboard) {
	if len(dash.Levels) == 0 {
		fmt.Println("No levels available.")
		return
	}
	fmt.Printf("%-5s  %-10s  %-36s  %6s  %s\n", "ID", "Status", "Title", "XP", "Video")
	fmt.Println(strings.Repeat("─", 80))
	for _, l := range dash.Levels {
		video := fmt.Sprintf("%ds", int(l.TotalDuration(api.DefaultDurationSeconds)))
		fmt.Printf("%-5d  %-10s  %-36s  %6d  %s\n",
			l.ID, dash.StatusOf(l.ID), truncate(l.Title, 36), l.XPReward, video)
	}
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
