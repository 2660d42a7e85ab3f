package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show your local level activity",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		activity, err := s.EventRepo().LevelActivity(context.Background(), limit)
		if err != nil {
			return fmt.Errorf("query activity: %w", err)
		}
		if len(activity) == 0 {
			fmt.Println("No levels played yet.")
			return nil
		}

		fmt.Printf("%-6s  %8s  %8s  %8s  %8s  %s\n",
			"Level", "Sessions", "Answers", "Correct", "Accuracy", "Last played")
		fmt.Println(strings.Repeat("─", 72))

		var sessions, answered, correct int
		for _, a := range activity {
			fmt.Printf("%-6d  %8d  %8d  %8d  %7.0f%%  %s\n",
				a.LevelID, a.Sessions, a.Answered, a.Correct, a.Accuracy()*100, humanize.Time(a.LastPlayed))
			sessions += a.Sessions
			answered += a.Answered
			correct += a.Correct
		}

		fmt.Println(strings.Repeat("─", 72))
		acc := 0.0
		if answered > 0 {
			acc = float64(correct) / float64(answered) * 100
		}
		fmt.Printf("%-6s  %8d  %8d  %8d  %7.0f%%\n", "TOTAL", sessions, answered, correct, acc)
		return nil
	},
}

func init() {
	statsCmd.Flags().IntP("limit", "n", 0, "Number of levels to show (0 = all)")
}
