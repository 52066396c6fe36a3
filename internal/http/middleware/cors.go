package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
	"github.com/straye-as/production-api/internal/config"
	"go.uber.org/zap"
)

func isDevelopment(environment string) bool {
	return environment == "development" || environment == "local" || environment == ""
}

func allowAnyOrigin(r *http.Request, origin string) bool {
	return origin != ""
}

func denyAllOrigins(r *http.Request, origin string) bool {
	return false
}

// corsOptions builds the go-chi/cors options. The operator header must be
// allowed for shop floor terminals served from another origin.
func corsOptions(cfg *config.CORSConfig, environment string, logger *zap.Logger) cors.Options {
	options := cors.Options{
		AllowedMethods:   cfg.AllowedMethods,
		AllowedHeaders:   cfg.AllowedHeaders,
		ExposedHeaders:   cfg.ExposedHeaders,
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           cfg.MaxAge,
	}

	hasOperator := false
	for _, h := range options.AllowedHeaders {
		if http.CanonicalHeaderKey(h) == http.CanonicalHeaderKey(OperatorHeader) {
			hasOperator = true
			break
		}
	}
	if !hasOperator {
		options.AllowedHeaders = append(append([]string{}, options.AllowedHeaders...), OperatorHeader)
	}

	switch {
	case containsWildcard(cfg.AllowedOrigins):
		if !isDevelopment(environment) {
			logger.Warn("CORS configured with wildcard origin in non-development environment",
				zap.String("environment", environment))
		}
		options.AllowOriginFunc = allowAnyOrigin
	case len(cfg.AllowedOrigins) > 0:
		options.AllowedOrigins = cfg.AllowedOrigins
		logger.Info("CORS configured with explicit origins",
			zap.Strings("origins", cfg.AllowedOrigins))
	case isDevelopment(environment):
		options.AllowOriginFunc = allowAnyOrigin
		logger.Info("CORS configured to allow all origins in development mode")
	default:
		// An empty AllowedOrigins means "*" to go-chi/cors, so deny explicitly
		options.AllowOriginFunc = denyAllOrigins
		logger.Warn("CORS configured with no allowed origins - all cross-origin requests will be denied",
			zap.String("environment", environment))
	}

	return options
}

func containsWildcard(origins []string) bool {
	for _, origin := range origins {
		if origin == "*" {
			return true
		}
	}
	return false
}

// CORS returns a CORS middleware configured from the application config
func CORS(cfg *config.CORSConfig, environment string, logger *zap.Logger) func(http.Handler) http.Handler {
	return cors.Handler(corsOptions(cfg, environment, logger))
}
