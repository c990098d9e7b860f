package http

import (
	"context"

	http_router "github.com/lintang-b-s/waymatcher/pkg/http/router"
	http_server "github.com/lintang-b-s/waymatcher/pkg/http/server"
	"github.com/lintang-b-s/waymatcher/pkg/http/usecases"
	"github.com/lintang-b-s/waymatcher/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

type Server struct {
	Log *zap.Logger
}

func NewServer(log *zap.Logger) *Server {
	return &Server{Log: log}
}

// Use. serve the matching api for engine until ctx is done.
func (s *Server) Use(
	ctx context.Context,
	useRateLimit bool,
	engine usecases.MatchEngine,
	m *metrics.Metrics,
	gatherer prometheus.Gatherer,
) error {
	viper.SetDefault("WEBSOCKET_MAX_CONCURRENT_MATCHES", 16)

	config := http_server.LoadConfig()
	matchingService := usecases.NewMatchingService(s.Log, engine, config.MaxTracks)

	api, err := http_router.NewAPI(s.Log, m, gatherer)
	if err != nil {
		return err
	}
	return api.Run(ctx, config, useRateLimit, matchingService, viper.GetInt64("WEBSOCKET_MAX_CONCURRENT_MATCHES"))
}
