// Package appctx provides the application context that holds all runtime dependencies.
package appctx

import (
	"github.com/prometheus/client_golang/prometheus"

	"hls-relay/pkg/config"
	"hls-relay/pkg/logging"
	"hls-relay/pkg/services"
)

// Version is reported by /api/info.
const Version = "1.0.0"

// Context holds all application runtime dependencies.
// Pass this single struct to components instead of individual parameters.
type Context struct {
	Config       *config.Config
	Log          *logging.Logger
	ProxyService *services.ProxyService
	// Metrics is nil when metrics are disabled.
	Metrics prometheus.Gatherer
	BaseURL string
}

// New creates a new application context.
func New(cfg *config.Config, log *logging.Logger) *Context {
	return &Context{
		Config:  cfg,
		Log:     log,
		BaseURL: cfg.BaseURL,
	}
}

// WithProxyService sets the proxy service.
func (c *Context) WithProxyService(ps *services.ProxyService) *Context {
	c.ProxyService = ps
	return c
}

// WithMetrics sets the gatherer served on /metrics.
func (c *Context) WithMetrics(g prometheus.Gatherer) *Context {
	c.Metrics = g
	return c
}
