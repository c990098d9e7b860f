package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/lintang-b-s/waymatcher/pkg/engine"
	"github.com/lintang-b-s/waymatcher/pkg/graph"
	"github.com/lintang-b-s/waymatcher/pkg/http"
	"github.com/lintang-b-s/waymatcher/pkg/logger"
	"github.com/lintang-b-s/waymatcher/pkg/metrics"
	"github.com/lintang-b-s/waymatcher/pkg/restriction"
	"github.com/lintang-b-s/waymatcher/pkg/util"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

var (
	graphs         = flag.String("graphs", "default=./data/graph.badger", "comma separated name=badger_dir pairs")
	restrictionsDB = flag.String("restrictions_db", "./data/restrictions.db", "sqlite restriction rules, empty = no restrictions")
	cacheSize      = flag.Int("segment_cache_size", 1<<16, "segments cached per graph")
	useRateLimit   = flag.Bool("rate_limit", true, "per client ip rate limiting")
)

type graphDir struct {
	name string
	dir  string
}

// parseGraphs. "name=dir,name=dir" from the -graphs flag.
func parseGraphs(list string) ([]graphDir, error) {
	entries := make([]graphDir, 0)
	seen := make(map[string]struct{})
	for _, pair := range strings.Split(list, ",") {
		name, dir, ok := strings.Cut(strings.TrimSpace(pair), "=")
		name, dir = strings.TrimSpace(name), strings.TrimSpace(dir)
		if !ok || name == "" || dir == "" {
			return nil, fmt.Errorf("invalid -graphs entry %q, want name=badger_dir", pair)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("graph %q listed twice in -graphs", name)
		}
		seen[name] = struct{}{}
		entries = append(entries, graphDir{name: name, dir: dir})
	}
	return entries, nil
}

func main() {
	flag.Parse()
	logger, err := logger.New()
	if err != nil {
		panic(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, logger)
	stop()
	if err != nil {
		logger.Error("server stopped", zap.Error(err))
		logger.Sync()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger.Info("waymatcher server stopped")
	logger.Sync()
}

// run. every store opened here is closed before run returns.
func run(ctx context.Context, logger *zap.Logger) error {
	if err := util.ReadConfig(); err != nil {
		logger.Info("no config file, using defaults and environment", zap.Error(err))
	}

	entries, err := parseGraphs(*graphs)
	if err != nil {
		return err
	}

	registry := graph.NewRegistry()
	for _, entry := range entries {
		store, err := graph.OpenBadgerStore(entry.dir, *cacheSize, logger)
		if err != nil {
			return fmt.Errorf("opening graph store %q: %w", entry.name, err)
		}
		defer store.Close()
		if err := store.Load(ctx); err != nil {
			return fmt.Errorf("loading graph %q: %w", entry.name, err)
		}
		registry.Register(entry.name, store)
	}

	var restrictions restriction.Service
	if *restrictionsDB != "" {
		svc, err := restriction.OpenSQLiteService(*restrictionsDB)
		if err != nil {
			return fmt.Errorf("opening restriction rules: %w", err)
		}
		defer svc.Close()
		restrictions = svc
	}

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(promReg)

	eng, err := engine.NewEngine(registry, restrictions, util.LoadMatcherConfig(), m, logger)
	if err != nil {
		return fmt.Errorf("starting match engine: %w", err)
	}

	api := http.NewServer(logger)
	err = api.Use(ctx, *useRateLimit, eng, m, promReg)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
