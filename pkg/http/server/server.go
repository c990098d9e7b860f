package http_server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port int
	// Timeout. upper bound of one request, match tasks are bounded by their own timeout.
	Timeout time.Duration
	// RateLimit. requests per second per client ip, 0 disables limiting.
	RateLimit float64
	RateBurst int
	// MaxTracks. tracks allowed in one batch request.
	MaxTracks int
}

func SetDefaults() {
	viper.SetDefault("API_PORT", 6060)
	viper.SetDefault("API_TIMEOUT", "60s")
	viper.SetDefault("API_RATE_LIMIT", 20.0)
	viper.SetDefault("API_RATE_BURST", 40)
	viper.SetDefault("API_MAX_TRACKS", 64)

	viper.SetDefault("HTTP_SERVER_READ_TIMEOUT", "30s")
	viper.SetDefault("HTTP_SERVER_WRITE_TIMEOUT", "10s")
	viper.SetDefault("HTTP_SERVER_IDLE_TIMEOUT", "120s")
	viper.SetDefault("HTTP_SERVER_READ_HEADER_TIMEOUT", "5s")
}

func LoadConfig() Config {
	SetDefaults()
	return Config{
		Port:      viper.GetInt("API_PORT"),
		Timeout:   viper.GetDuration("API_TIMEOUT"),
		RateLimit: viper.GetFloat64("API_RATE_LIMIT"),
		RateBurst: viper.GetInt("API_RATE_BURST"),
		MaxTracks: viper.GetInt("API_MAX_TRACKS"),
	}
}

// New. http server of the api, the write timeout leaves room for the slowest match task.
func New(ctx context.Context, handler http.Handler, config Config) *http.Server {
	SetDefaults()
	return &http.Server{
		Addr:    fmt.Sprintf(":%d", config.Port),
		Handler: handler,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
		ReadTimeout:       viper.GetDuration("HTTP_SERVER_READ_TIMEOUT"),
		WriteTimeout:      config.Timeout + viper.GetDuration("HTTP_SERVER_WRITE_TIMEOUT"),
		IdleTimeout:       viper.GetDuration("HTTP_SERVER_IDLE_TIMEOUT"),
		ReadHeaderTimeout: viper.GetDuration("HTTP_SERVER_READ_HEADER_TIMEOUT"),
	}
}
