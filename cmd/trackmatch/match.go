package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/lintang-b-s/waymatcher/pkg/datastructure"
	"github.com/lintang-b-s/waymatcher/pkg/engine"
	"github.com/lintang-b-s/waymatcher/pkg/graph"
	"github.com/lintang-b-s/waymatcher/pkg/restriction"
	"github.com/lintang-b-s/waymatcher/pkg/util"
	"github.com/spf13/cobra"
)

var (
	matchGraphDir   string
	matchGraphName  string
	matchMode       string
	matchTimeout    time.Duration
	matchRefTime    string
	matchDB         string
	matchMaxResults int
	matchFixedPoint bool
	matchJSON       bool
)

var matchCmd = &cobra.Command{
	Use:   "match [track file...]",
	Short: "Match recorded tracks (.csv or .json) against a graph store",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runMatch,
}

func init() {
	matchCmd.Flags().StringVar(&matchGraphDir, "graph-dir", "./data/graph.badger", "badger directory of the graph store")
	matchCmd.Flags().StringVarP(&matchGraphName, "graph", "g", "default", "graph name used for restriction lookups")
	matchCmd.Flags().StringVarP(&matchMode, "mode", "m", "car", "car, bike or foot")
	matchCmd.Flags().DurationVar(&matchTimeout, "timeout", 0, "per track timeout, 0 = MATCH_TIMEOUT")
	matchCmd.Flags().StringVar(&matchRefTime, "reference-time", "", "RFC3339 time for restriction windows (default: first timestamp)")
	matchCmd.Flags().StringVar(&matchDB, "restrictions-db", "", "sqlite restriction database, empty = no restrictions")
	matchCmd.Flags().IntVarP(&matchMaxResults, "max-results", "n", 0, "ranked branches per track, 0 = MAX_RESULTS")
	matchCmd.Flags().BoolVar(&matchFixedPoint, "fixed-point", false, "integer millimeter costs")
	matchCmd.Flags().BoolVar(&matchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(matchCmd)
}

func runMatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	refTime, err := parseOptionalTime(matchRefTime)
	if err != nil {
		return fmt.Errorf("--reference-time: %w", err)
	}

	store, err := graph.OpenBadgerStore(matchGraphDir, 0, log)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.Load(ctx); err != nil {
		return err
	}
	registry := graph.NewRegistry()
	registry.Register(matchGraphName, store)

	var restrictions restriction.Service
	if matchDB != "" {
		svc, err := restriction.OpenSQLiteService(matchDB)
		if err != nil {
			return err
		}
		defer svc.Close()
		restrictions = svc
	}

	mc := util.LoadMatcherConfig()
	if matchFixedPoint {
		mc.FixedPointCost = true
	}
	eng, err := engine.NewEngine(registry, restrictions, mc, nil, log)
	if err != nil {
		return err
	}

	reqs := make([]engine.MatchRequest, len(args))
	for i, path := range args {
		track, err := readTrackFile(path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		reqs[i] = engine.MatchRequest{
			Track:         track,
			GraphName:     matchGraphName,
			Mode:          matchMode,
			Timeout:       matchTimeout,
			ReferenceTime: refTime,
			MaxResults:    matchMaxResults,
		}
	}

	outcomes := eng.MatchBatch(ctx, reqs)
	if matchJSON {
		return outputMatchJSON(cmd, args, outcomes)
	}
	return outputMatchTable(cmd, args, outcomes)
}

type matchOutput struct {
	Track    string         `json:"track"`
	Error    string         `json:"error,omitempty"`
	Kind     string         `json:"kind,omitempty"`
	Warnings []string       `json:"warnings,omitempty"`
	Branches []branchOutput `json:"branches"`
}

type branchOutput struct {
	Factor        float64                   `json:"factor"`
	MatchedPoints int                       `json:"matched_points"`
	Unmatched     []int                     `json:"unmatched"`
	Segments      []datastructure.SegmentID `json:"segments"`
	Path          string                    `json:"path"`
}

func outputMatchJSON(cmd *cobra.Command, tracks []string, outcomes []engine.BatchOutcome) error {
	out := make([]matchOutput, len(outcomes))
	for i, o := range outcomes {
		out[i] = matchOutput{Track: tracks[i], Branches: []branchOutput{}}
		if o.Err != nil {
			out[i].Error = o.Err.Error()
			out[i].Kind = string(engine.FailureKindOf(o.Err))
			continue
		}
		out[i].Warnings = o.Result.Warnings
		for _, b := range o.Result.Branches {
			out[i].Branches = append(out[i].Branches, branchOutput{
				Factor:        b.GetFactor(),
				MatchedPoints: b.GetMatchedPoints(),
				Unmatched:     b.GetUnmatched(),
				Segments:      b.SegmentIDs(),
				Path:          b.GetPolyline(),
			})
		}
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputMatchTable(cmd *cobra.Command, tracks []string, outcomes []engine.BatchOutcome) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TRACK\tRANK\tFACTOR\tMATCHED\tSEGMENTS")
	for i, o := range outcomes {
		if o.Err != nil {
			fmt.Fprintf(w, "%s\t-\t-\t-\t%s\n", tracks[i], o.Err)
			continue
		}
		if o.Result.NoMatch() {
			fmt.Fprintf(w, "%s\t-\t-\t-\tno match\n", tracks[i])
		}
		for rank, b := range o.Result.Branches {
			ids := make([]string, 0, len(b.SegmentIDs()))
			for _, id := range b.SegmentIDs() {
				ids = append(ids, fmt.Sprint(id))
			}
			fmt.Fprintf(w, "%s\t%d\t%.2f\t%d\t%s\n", tracks[i], rank+1, b.GetFactor(), b.GetMatchedPoints(),
				strings.Join(ids, " "))
		}
		for _, warning := range o.Result.Warnings {
			fmt.Fprintf(w, "%s\t\t\t\twarning: %s\n", tracks[i], warning)
		}
	}
	return w.Flush()
}
