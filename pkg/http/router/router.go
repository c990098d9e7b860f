package router

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/justinas/alice"
	"github.com/lintang-b-s/waymatcher/pkg/concurrent"
	"github.com/lintang-b-s/waymatcher/pkg/http/router/controllers"
	router_helper "github.com/lintang-b-s/waymatcher/pkg/http/router/routerhelper"
	http_server "github.com/lintang-b-s/waymatcher/pkg/http/server"
	"github.com/lintang-b-s/waymatcher/pkg/metrics"
	"github.com/mailru/easygo/netpoll"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	wsPoolSize  = 64
	wsPoolQueue = 16
	wsPoolSpawn = 8
)

var knownRoutes = map[string]struct{}{
	"/api/matchTrack":  {},
	"/api/matchTracks": {},
	"/api/graphs":      {},
	"/ws":              {},
	"/metrics":         {},
}

type API struct {
	ctx      context.Context
	log      *zap.Logger
	hub      *controllers.Hub
	poller   netpoll.Poller
	pool     *concurrent.Pool
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
}

// NewAPI. gatherer backs /metrics, nil disables the endpoint.
func NewAPI(log *zap.Logger, m *metrics.Metrics, gatherer prometheus.Gatherer) (*API, error) {
	poller, err := netpoll.New(&netpoll.Config{
		OnWaitError: func(err error) {
			log.Error("netpoll wait error", zap.Error(err))
		},
	})
	if err != nil {
		return nil, err
	}
	return &API{
		ctx:      context.Background(),
		log:      log,
		poller:   poller,
		pool:     concurrent.NewPool(wsPoolSize, wsPoolQueue, wsPoolSpawn),
		metrics:  m,
		gatherer: gatherer,
	}, nil
}

// Handler. the whole api behind its middleware chain.
func (api *API) Handler(config http_server.Config, useRateLimit bool, matchingService controllers.MatchingService,
	wsConcurrency int64) http.Handler {
	router := httprouter.New()

	corsHandler := cors.New(cors.Options{ //nolint:gocritic // ignore
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, //nolint:mnd // ignore
	})

	group := router_helper.NewRouteGroup(router, "/api")
	matchingRoutes := controllers.New(matchingService, api.log)
	matchingRoutes.Routes(group)

	api.hub = controllers.NewHub(matchingService, wsConcurrency, api.log)
	router.GET("/ws", api.serveWebsocket)

	if api.gatherer != nil {
		router.Handler(http.MethodGet, "/metrics", promhttp.HandlerFor(api.gatherer, promhttp.HandlerOpts{}))
	}

	mwChain := []alice.Constructor{corsHandler.Handler, EnforceJSONHandler, api.recoverPanic,
		RealIP, Heartbeat("healthz"), Logger(api.log), Labels(api.metrics, routeLabel)}
	if useRateLimit && config.RateLimit > 0 {
		mwChain = append(mwChain, Limit(config.RateLimit, config.RateBurst))
	}
	return alice.New(mwChain...).Then(router)
}

func routeLabel(r *http.Request) string {
	if _, ok := knownRoutes[r.URL.Path]; ok {
		return r.URL.Path
	}
	return "other"
}

// Run. serve until ctx is done or the listener fails.
func (api *API) Run(
	ctx context.Context,
	config http_server.Config,
	useRateLimit bool,
	matchingService controllers.MatchingService,
	wsConcurrency int64,
) error {
	api.ctx = ctx
	handler := api.Handler(config, useRateLimit, matchingService, wsConcurrency)
	srv := http_server.New(ctx, handler, config)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		api.log.Info(fmt.Sprintf("API run on port %d", config.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		api.log.Info("shutting down http server")
		err := srv.Shutdown(context.Background())
		api.hub.RemoveAllUser()
		api.pool.Close()
		return err
	})

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	return err
}
