package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/facegate/facegate/internal/config"
	"github.com/facegate/facegate/internal/store"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show attendance statistics",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)

	statsCmd.Flags().Int("events", 10, "Number of recent events to show")
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	s, err := store.Open(cfg.Store)
	if err != nil {
		return fmt.Errorf("opening attendance store: %w", err)
	}
	defer s.Close()

	ctx := context.Background()
	stats, err := s.GetStats(ctx)
	if err != nil {
		return fmt.Errorf("loading stats: %w", err)
	}

	fmt.Printf("Registered users:   %d\n", stats.TotalUsers)
	fmt.Printf("Today's attendance: %d\n", stats.TodaysAttendance)

	limit := mustGetInt(cmd, "events")
	events, err := s.GetRecentEvents(ctx, limit)
	if err != nil {
		return fmt.Errorf("loading events: %w", err)
	}
	if len(events) == 0 {
		fmt.Println("\nNo attendance events yet")
		return nil
	}

	fmt.Println("\nRecent events:")
	for _, evt := range events {
		syncMark := " "
		if evt.Synced {
			syncMark = "*"
		}
		fmt.Printf("  %s %s  %s\n", syncMark, evt.Timestamp.Format("2006-01-02 15:04:05"), evt.Name)
	}
	return nil
}
