package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/lintang-b-s/waymatcher/pkg/datastructure"
	"github.com/lintang-b-s/waymatcher/pkg/restriction"
	"github.com/spf13/cobra"
)

var (
	restrictDB      string
	restrictGraph   string
	restrictSegment int64
	restrictScope   string
	restrictFrom    string
	restrictUntil   string
	restrictNote    string
)

var restrictCmd = &cobra.Command{
	Use:   "restrict",
	Short: "Manage road restriction rules",
}

var restrictAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Close a segment, permanently or inside a time window",
	Args:  cobra.NoArgs,
	RunE:  runRestrictAdd,
}

var restrictListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the rules of a graph",
	Args:  cobra.NoArgs,
	RunE:  runRestrictList,
}

var restrictDeleteCmd = &cobra.Command{
	Use:   "delete [rule id]",
	Short: "Delete a rule",
	Args:  cobra.ExactArgs(1),
	RunE:  runRestrictDelete,
}

func init() {
	restrictCmd.PersistentFlags().StringVar(&restrictDB, "db", "./data/restrictions.db", "sqlite restriction database")
	restrictCmd.PersistentFlags().StringVarP(&restrictGraph, "graph", "g", "default", "graph name")

	restrictAddCmd.Flags().Int64Var(&restrictSegment, "segment", 0, "segment id")
	restrictAddCmd.Flags().StringVar(&restrictScope, "scope", "both", "both, forward or backward")
	restrictAddCmd.Flags().StringVar(&restrictFrom, "from", "", "window start, RFC3339 (empty = always)")
	restrictAddCmd.Flags().StringVar(&restrictUntil, "until", "", "window end, RFC3339, exclusive (empty = open end)")
	restrictAddCmd.Flags().StringVar(&restrictNote, "note", "", "free text")
	_ = restrictAddCmd.MarkFlagRequired("segment")

	restrictCmd.AddCommand(restrictAddCmd, restrictListCmd, restrictDeleteCmd)
	rootCmd.AddCommand(restrictCmd)
}

func parseOptionalTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}

func runRestrictAdd(cmd *cobra.Command, args []string) error {
	scope, err := restriction.ParseScope(restrictScope)
	if err != nil {
		return err
	}
	from, err := parseOptionalTime(restrictFrom)
	if err != nil {
		return fmt.Errorf("--from: %w", err)
	}
	until, err := parseOptionalTime(restrictUntil)
	if err != nil {
		return fmt.Errorf("--until: %w", err)
	}

	svc, err := restriction.OpenSQLiteService(restrictDB)
	if err != nil {
		return err
	}
	defer svc.Close()

	id, err := svc.AddRule(cmd.Context(), restriction.Rule{
		GraphName: restrictGraph,
		SegmentID: datastructure.SegmentID(restrictSegment),
		Scope:     scope,
		From:      from,
		Until:     until,
		Note:      restrictNote,
	})
	if err != nil {
		return err
	}
	cmd.Printf("added rule %d\n", id)
	return nil
}

func runRestrictList(cmd *cobra.Command, args []string) error {
	svc, err := restriction.OpenSQLiteService(restrictDB)
	if err != nil {
		return err
	}
	defer svc.Close()

	rules, err := svc.Rules(cmd.Context(), restrictGraph)
	if err != nil {
		return err
	}
	if len(rules) == 0 {
		cmd.Println("No rules.")
		return nil
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSEGMENT\tSCOPE\tFROM\tUNTIL\tNOTE")
	for _, r := range rules {
		fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\t%s\n", r.ID, r.SegmentID, r.Scope, formatTime(r.From),
			formatTime(r.Until), r.Note)
	}
	return w.Flush()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(time.RFC3339)
}

func runRestrictDelete(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid rule id %q", args[0])
	}
	svc, err := restriction.OpenSQLiteService(restrictDB)
	if err != nil {
		return err
	}
	defer svc.Close()
	if err := svc.DeleteRule(cmd.Context(), id); err != nil {
		return err
	}
	cmd.Printf("deleted rule %d\n", id)
	return nil
}
