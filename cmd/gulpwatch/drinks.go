package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ayusman/gulpwatch/internal/gesture"
	"github.com/ayusman/gulpwatch/internal/store"
)

var progressDay string

var progressCmd = &cobra.Command{
	Use:   "progress",
	Short: "Show a day's gulps against the goal",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if progressDay != "" {
			if _, err := time.Parse(time.DateOnly, progressDay); err != nil {
				return fmt.Errorf("invalid --day %q, want YYYY-MM-DD", progressDay)
			}
		}
		st, err := openStore(cfg.DBPath)
		if err != nil {
			return err
		}
		defer st.Close()

		p, err := todayProgress(st, cfg, progressDay)
		if err != nil {
			return err
		}
		printProgress(cmd.OutOrStdout(), p)
		return nil
	},
}

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Count a gulp by hand",
	Long: "Add records a manual gulp directly in the database. A running service\n" +
		"does not see it in its undo history; use the tray or the HTTP API for that.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(cfg.DBPath)
		if err != nil {
			return err
		}
		defer st.Close()

		d := &store.Drink{
			ID:         uuid.NewString(),
			ML:         cfg.MLPerGulp,
			Source:     string(gesture.SourceManual),
			OccurredAt: time.Now(),
		}
		if err := st.Drinks().Create(d); err != nil {
			return fmt.Errorf("failed to record drink: %w", err)
		}
		p, err := todayProgress(st, cfg, d.Day)
		if err != nil {
			return err
		}
		printProgress(cmd.OutOrStdout(), p)
		return nil
	},
}

var undoCmd = &cobra.Command{
	Use:   "undo",
	Short: "Remove today's most recent gulp",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(cfg.DBPath)
		if err != nil {
			return err
		}
		defer st.Close()

		day := store.DayKey(time.Now())
		last, err := st.Drinks().Last(day)
		if errors.Is(err, store.ErrNotFound) {
			fmt.Fprintln(cmd.OutOrStdout(), "nothing to undo")
			return nil
		}
		if err != nil {
			return err
		}
		if err := st.Drinks().Delete(last.ID); err != nil {
			return fmt.Errorf("failed to remove drink: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed %s gulp from %s\n", last.Source, last.OccurredAt.Local().Format("15:04:05"))

		p, err := todayProgress(st, cfg, day)
		if err != nil {
			return err
		}
		printProgress(cmd.OutOrStdout(), p)
		return nil
	},
}

func init() {
	progressCmd.Flags().StringVar(&progressDay, "day", "", "day to show as YYYY-MM-DD (default today)")
	rootCmd.AddCommand(progressCmd, addCmd, undoCmd)
}
