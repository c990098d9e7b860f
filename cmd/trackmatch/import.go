package main

import (
	"fmt"

	"github.com/lintang-b-s/waymatcher/pkg/graph"
	"github.com/lintang-b-s/waymatcher/pkg/osmparser"
	"github.com/spf13/cobra"
)

var (
	importOut          string
	importMinComponent int
)

var importCmd = &cobra.Command{
	Use:   "import [osm file]",
	Short: "Import an OpenStreetMap extract (.osm.pbf, .osm or .osm.bz2) into a badger graph store",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

func init() {
	importCmd.Flags().StringVarP(&importOut, "out", "o", "./data/graph.badger", "badger directory of the graph store")
	importCmd.Flags().IntVar(&importMinComponent, "min-component", 50,
		"drop road islands with fewer nodes, 0 keeps everything")
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	parser := osmparser.NewOSMParser(log, osmparser.Options{MinComponentSize: importMinComponent})
	segments, err := parser.Parse(ctx, args[0])
	if err != nil {
		return fmt.Errorf("parsing %s: %w", args[0], err)
	}

	store, err := graph.OpenBadgerStore(importOut, 0, log)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.Save(ctx, segments); err != nil {
		return fmt.Errorf("saving segments: %w", err)
	}
	cmd.Printf("imported %d segments into %s\n", len(segments), importOut)
	return nil
}
