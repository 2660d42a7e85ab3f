package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ecoloop/ecoloop/internal/proof"
	"github.com/ecoloop/ecoloop/internal/session"
)

var leaderboardCmd = &cobra.Command{
	Use:   "leaderboard",
	Short: "Show the top learners",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer e.Close()
		if err := e.requireLogin(); err != nil {
			return err
		}

		entries, err := e.client.Leaderboard(cmd.Context())
		if err != nil {
			return apiError(err)
		}
		if len(entries) == 0 {
			fmt.Println("The leaderboard is empty.")
			return nil
		}
		me, _ := e.provider.User()
		fmt.Printf("%-6s  %-20s  %10s  %6s\n", "Rank", "Name", "Coins", "Streak")
		fmt.Println(strings.Repeat("─", 48))
		for i, en := range entries {
			mark := ""
			if en.Username == me.Username {
				mark = "  ← you"
			}
			fmt.Printf("%-6s  %-20s  %10s  %6d%s\n",
				humanize.Ordinal(i+1), truncate(en.Username, 20), humanize.Comma(int64(en.Coins)), en.Streak, mark)
		}
		return nil
	},
}

var communityCmd = &cobra.Command{
	Use:   "community",
	Short: "List community events near you",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		posts, err := e.client.CommunityFeed(cmd.Context())
		if err != nil {
			return apiError(err)
		}
		if len(posts) == 0 {
			fmt.Println("No events found nearby. Check back later!")
			return nil
		}
		for _, p := range posts {
			date := ""
			if t, ok := p.Created(); ok {
				date = t.Format("2006-01-02")
			}
			fmt.Printf("[%s] %s  %s\n", p.Category, p.Title, date)
			if p.Description != "" {
				fmt.Printf("  %s\n", p.Description)
			}
			if p.Location != "" || p.ExternalLink != "" {
				fmt.Printf("  %s  %s\n", p.Location, p.ExternalLink)
			}
		}
		return nil
	},
}

var challengesCmd = &cobra.Command{
	Use:   "challenges",
	Short: "Daily and weekly challenges",
}

var challengesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the current challenges",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer e.Close()
		if err := e.requireLogin(); err != nil {
			return err
		}

		list, err := e.client.Challenges(cmd.Context())
		if err != nil {
			return apiError(err)
		}
		if len(list) == 0 {
			fmt.Println("No challenges right now.")
			return nil
		}
		fmt.Printf("%-5s  %-7s  %-32s  %8s  %s\n", "ID", "Type", "Title", "Coins", "Status")
		fmt.Println(strings.Repeat("─", 72))
		for _, c := range list {
			status := "open"
			switch {
			case c.IsCompleted:
				status = "done"
			case !c.IsActive:
				status = "inactive"
			}
			fmt.Printf("%-5d  %-7s  %-32s  %8s  %s\n",
				c.ID, c.Type, truncate(c.Title, 32), humanize.Comma(int64(c.CoinReward)), status)
		}
		return nil
	},
}

var challengesCompleteCmd = &cobra.Command{
	Use:   "complete <id> <file>",
	Short: "Complete a challenge with a proof photo or video",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid challenge ID %q: %w", args[0], err)
		}
		// Local checks run before any network setup.
		if _, err := proof.Inspect(args[1]); err != nil {
			return apiError(err)
		}

		e, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer e.Close()
		if err := e.requireLogin(); err != nil {
			return err
		}

		res, f, err := proof.SubmitChallenge(cmd.Context(), e.client, id, args[1])
		if err != nil {
			return apiError(err)
		}
		fmt.Printf("Uploaded %s\n", f.Describe())
		if res.Message != "" {
			fmt.Println(res.Message)
		}
		fmt.Printf("Balance: %s coins\n", humanize.Comma(int64(res.NewBalance)))
		if res.StreakIncremented {
			fmt.Printf("Streak: %d days\n", res.NewStreak)
		}
		return nil
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify <level-id> <file>",
	Short: "Upload proof for a level's real-world task",
	Long: "Uploads proof for a level's task and reports the completion when the proof is accepted.\n" +
		"The file must be a JPEG, PNG, WebP or MP4 of at most 10 MiB.",
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		levelID, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid level ID %q: %w", args[0], err)
		}
		if _, err := proof.Inspect(args[1]); err != nil {
			return apiError(err)
		}

		e, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer e.Close()
		if err := e.requireLogin(); err != nil {
			return err
		}

		ctx := cmd.Context()
		dash, err := e.provider.LoadDashboard(ctx)
		if err != nil {
			return apiError(err)
		}
		lvl, ok := dash.Level(levelID)
		if !ok {
			return fmt.Errorf("level %d not found", levelID)
		}

		v, f, err := proof.SubmitLevel(ctx, e.client, lvl.ID, lvl.TaskDescription, args[1])
		if err != nil {
			return apiError(err)
		}
		fmt.Printf("Uploaded %s\n", f.Describe())
		fmt.Println("Proof verified.", v.Message)

		res, err := e.provider.ReportProgress(ctx, session.CompletionRequest(lvl))
		if err != nil {
			return fmt.Errorf("proof accepted but saving progress failed, run verify again: %w", apiError(err))
		}
		fmt.Printf("Level complete! +%d coins, balance %s\n", lvl.XPReward, humanize.Comma(int64(res.NewBalance)))
		return nil
	},
}

func init() {
	challengesCmd.AddCommand(challengesListCmd)
	challengesCmd.AddCommand(challengesCompleteCmd)
}
