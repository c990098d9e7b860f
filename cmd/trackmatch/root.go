package main

import (
	"github.com/lintang-b-s/waymatcher/pkg/logger"
	"github.com/lintang-b-s/waymatcher/pkg/util"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var log *zap.Logger

var rootCmd = &cobra.Command{
	Use:   "trackmatch",
	Short: "Offline map matching of recorded tracks",
	Long: `trackmatch imports OpenStreetMap extracts into a graph store, manages
time-windowed road restrictions and matches recorded tracks against the road graph.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		log, err = logger.New()
		if err != nil {
			return err
		}
		if err := util.ReadConfig(); err != nil {
			log.Debug("no config file, using defaults and environment", zap.Error(err))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			_ = log.Sync()
		}
	},
}
