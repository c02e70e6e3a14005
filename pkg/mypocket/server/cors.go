package server

import (
	"fmt"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/mypocket/mypocket/pkg/mypocket/config"
)

// corsSettings translates the configured policy. Extension origins such as
// chrome-extension://id are accepted alongside http and https ones.
func corsSettings(cfg config.CORSConfig) cors.Config {
	settings := cors.Config{
		AllowMethods:           cfg.AllowedMethods,
		AllowHeaders:           cfg.AllowedHeaders,
		ExposeHeaders:          cfg.ExposedHeaders,
		AllowCredentials:       cfg.AllowCredentials,
		MaxAge:                 cfg.MaxAge,
		AllowBrowserExtensions: true,
	}
	if cfg.AllowsAnyOrigin() {
		settings.AllowAllOrigins = true
	} else {
		settings.AllowOrigins = cfg.AllowedOrigins
	}
	return settings
}

func validateCORS(cfg config.CORSConfig) error {
	if err := corsSettings(cfg).Validate(); err != nil {
		return fmt.Errorf("invalid cors settings: %w", err)
	}
	return nil
}

// corsMiddleware answers preflight requests and tags responses for the
// allowed origins. cfg must have passed validateCORS.
func corsMiddleware(cfg config.CORSConfig) gin.HandlerFunc {
	return cors.New(corsSettings(cfg))
}
