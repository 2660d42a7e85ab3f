package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ecoloop/ecoloop/internal/store"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect the local level event log",
}

var eventsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent level events",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		levelID, _ := cmd.Flags().GetInt("level")
		sessionID, _ := cmd.Flags().GetString("session")

		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		ctx := context.Background()
		events, err := s.EventRepo().QueryLevelEvents(ctx, store.QueryOpts{
			Limit:     limit,
			LevelID:   levelID,
			SessionID: sessionID,
		})
		if err != nil {
			return fmt.Errorf("query events: %w", err)
		}

		if len(events) == 0 {
			fmt.Println("No level events found.")
			return nil
		}

		fmt.Printf("%-6s  %-19s  %-5s  %-20s  %-7s  %-3s  %s\n",
			"Seq", "Timestamp", "Level", "Kind", "Segment", "OK", "Session")
		fmt.Println(strings.Repeat("─", 100))

		for _, e := range events {
			ok := "✓"
			if !e.Correct {
				ok = "✗"
			}
			seg := "-"
			if e.Segment >= 0 {
				seg = fmt.Sprintf("%d", e.Segment+1)
			}
			fmt.Printf("%-6d  %-19s  %-5d  %-20s  %-7s  %-3s  %s\n",
				e.Sequence,
				e.Timestamp.Local().Format("2006-01-02 15:04:05"),
				e.LevelID,
				e.Kind,
				seg,
				ok,
				truncate(e.SessionID, 8),
			)
		}
		return nil
	},
}

var eventsViewCmd = &cobra.Command{
	Use:   "view <seq>",
	Short: "View one level event with its details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var seq int64
		if _, err := fmt.Sscanf(args[0], "%d", &seq); err != nil {
			return fmt.Errorf("invalid sequence %q: %w", args[0], err)
		}

		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		ctx := context.Background()
		events, err := s.EventRepo().QueryLevelEvents(ctx, store.QueryOpts{After: seq - 1})
		if err != nil {
			return fmt.Errorf("query events: %w", err)
		}
		var e *store.LevelEventRecord
		for i := range events {
			if events[i].Sequence == seq {
				e = &events[i]
				break
			}
		}
		if e == nil {
			return fmt.Errorf("event %d not found", seq)
		}

		sep := strings.Repeat("─", 60)

		fmt.Printf("Seq:       %d\n", e.Sequence)
		fmt.Printf("Time:      %s\n", e.Timestamp.Local().Format("2006-01-02 15:04:05"))
		fmt.Printf("Session:   %s\n", e.SessionID)
		fmt.Printf("Level:     %d\n", e.LevelID)
		fmt.Printf("Kind:      %s\n", e.Kind)
		if e.Segment >= 0 {
			fmt.Printf("Segment:   %d\n", e.Segment+1)
		}
		fmt.Printf("Correct:   %v\n", e.Correct)

		fmt.Println()
		fmt.Println(sep)
		fmt.Println("DETAIL")
		fmt.Println(sep)
		if len(e.Detail) == 0 {
			fmt.Println("(none)")
			return nil
		}
		out, err := json.MarshalIndent(e.Detail, "", "  ")
		if err != nil {
			return fmt.Errorf("format detail: %w", err)
		}
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	eventsListCmd.Flags().IntP("limit", "n", 20, "Number of events to show")
	eventsListCmd.Flags().IntP("level", "l", 0, "Only events of this level")
	eventsListCmd.Flags().StringP("session", "s", "", "Only events of this session")

	eventsCmd.AddCommand(eventsListCmd)
	eventsCmd.AddCommand(eventsViewCmd)
}
