package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/ayusman/gulpwatch/internal/app"
	"github.com/ayusman/gulpwatch/internal/config"
	"github.com/ayusman/gulpwatch/internal/detector"
	"github.com/ayusman/gulpwatch/internal/gesture"
	"github.com/ayusman/gulpwatch/internal/store"
	"github.com/ayusman/gulpwatch/internal/sequences"
)

type replayOptions struct {
	Record bool
	List   bool
	Quiet  bool
}

var replayOpts replayOptions

var replayCmd = &cobra.Command{
	Use:   "replay <file.jsonl|sequence>",
	Short: "Run recorded observations through the detector",
	Long: "Replay feeds a JSON-lines observation recording, or one of the built-in\n" +
		"sequences, through the detection engine and prints every counted gulp.",
	Args: func(cmd *cobra.Command, args []string) error {
		if replayOpts.List {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.ExactArgs(1)(cmd, args)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if replayOpts.List {
			for _, name := range sequences.Names() {
				fmt.Fprintln(out, name)
			}
			return nil
		}

		obs, err := loadObservations(args[0])
		if err != nil {
			return err
		}
		return replay(out, cfg, obs, replayOpts)
	},
}

func init() {
	replayCmd.Flags().BoolVar(&replayOpts.Record, "record", false, "store counted gulps in the configured database")
	replayCmd.Flags().BoolVar(&replayOpts.List, "list", false, "list the built-in sequences")
	replayCmd.Flags().BoolVarP(&replayOpts.Quiet, "quiet", "q", false, "hide the progress bar")
	rootCmd.AddCommand(replayCmd)
}

// loadObservations reads a recording file, falling back to a built-in
// sequence of that name.
func loadObservations(arg string) ([]detector.Observation, error) {
	f, err := os.Open(arg)
	if err == nil {
		defer f.Close()
		return detector.ReadObservations(f)
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	obs, seqErr := sequences.Load(strings.TrimSuffix(arg, ".jsonl"))
	if seqErr != nil {
		return nil, fmt.Errorf("%s is neither a file nor a built-in sequence (see --list)", arg)
	}
	return obs, nil
}

func replay(out io.Writer, cfg *config.Config, obs []detector.Observation, opts replayOptions) error {
	dbPath := cfg.DBPath
	if !opts.Record {
		dir, err := os.MkdirTemp("", "gulpwatch-replay-*")
		if err != nil {
			return err
		}
		defer os.RemoveAll(dir)
		dbPath = filepath.Join(dir, "replay.db")
	}
	st, err := openStore(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	a, err := app.New(app.Options{Config: cfg, Store: st, Logger: logger, Location: time.Local})
	if err != nil {
		return err
	}

	var (
		seen    = make(map[uuid.UUID]bool)
		counted []gesture.Event
	)
	a.OnStatus(func(s gesture.Status) {
		if ev := s.LastEvent; ev != nil && !seen[ev.ID] {
			seen[ev.ID] = true
			counted = append(counted, *ev)
		}
	})

	var bar *progressbar.ProgressBar
	if !opts.Quiet {
		bar = progressbar.NewOptions(len(obs),
			progressbar.OptionSetDescription("replaying"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}

	rejected := 0
	for i := range obs {
		if _, err := a.Process(&obs[i]); err != nil {
			if errors.Is(err, detector.ErrMalformedObservation) || errors.Is(err, gesture.ErrOutOfOrder) {
				rejected++
			} else {
				return fmt.Errorf("frame %d: %w", i, err)
			}
		}
		if bar != nil {
			bar.Add(1)
		}
	}
	if bar != nil {
		bar.Finish()
	}

	start := time.Time{}
	if len(obs) > 0 {
		start = obs[0].Timestamp
	}
	for _, ev := range counted {
		fmt.Fprintf(out, "gulp at +%s (%s)\n", ev.Timestamp.Sub(start).Round(time.Millisecond), ev.Source)
	}
	fmt.Fprintf(out, "%d frames, %d gulps, %d rejected frames, away=%v\n", len(obs), len(counted), rejected, a.Status().Away)

	if opts.Record {
		p, err := a.Progress("")
		if err != nil {
			return err
		}
		printProgress(out, p)
	}
	return nil
}

func printProgress(out io.Writer, p *store.Progress) {
	fmt.Fprintf(out, "%s: %d gulps, %d / %d ml (%.0f%%)\n", p.Day, p.Count, p.ML, p.GoalML, p.Percent)
}
