package api

import (
	"net/http"

	"gemini-proxy/backend"
	"gemini-proxy/config"
	proxy "gemini-proxy/handler"
	"gemini-proxy/logging"
	"gemini-proxy/retry"
)

var defaultHandler http.Handler

func init() {
	defaultHandler = build()
}

func build() http.Handler {
	log := logging.GetLogger()
	cfg, err := config.Load("")
	if err != nil {
		log.Errorf("Failed to load config: %s", err)
		return proxy.NewConfigErrorHandler(err)
	}

	client := backend.NewBackendClient(backend.Options{
		Retry: retry.Config{
			MaxRetries:   cfg.Retry.MaxRetries,
			InitialDelay: cfg.Retry.InitialDelay,
			MaxDelay:     cfg.Retry.MaxDelay,
		},
		AttemptTimeout: cfg.UpstreamTimeout,
		Logger:         log,
	})
	return proxy.NewHTTPHandler(cfg, client, nil)
}

// Handler is the entry point for Vercel's Go runtime.
func Handler(w http.ResponseWriter, r *http.Request) {
	defaultHandler.ServeHTTP(w, r)
}
