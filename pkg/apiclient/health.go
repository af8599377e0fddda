package apiclient

import (
	"context"

	"github.com/aquilhq/actionlog/pkg/models"
)

// Liveness is the /health/live document.
type Liveness struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// Readiness is the /health/ready document.
type Readiness struct {
	Ready        bool                       `json:"ready"`
	Stores       map[models.StoreTag]string `json:"stores"`
	Breakers     map[models.StoreTag]bool   `json:"breakers"`
	RecentErrors int                        `json:"recent_errors"`
	ErrorRate    float64                    `json:"error_rate"`
	Reasons      []string                   `json:"reasons,omitempty"`
}

// StoreCheck is one deep probe result from /health/stores.
type StoreCheck struct {
	Bound       bool   `json:"bound"`
	Healthy     bool   `json:"healthy"`
	LatencyMS   int64  `json:"latency_ms"`
	BreakerOpen bool   `json:"breaker_open"`
	Error       string `json:"error,omitempty"`
}

// StoresReport is the /health/stores document.
type StoresReport struct {
	Stores     map[models.StoreTag]StoreCheck `json:"stores"`
	Operations int                            `json:"operations"`
	Timestamp  string                         `json:"timestamp"`
}

// Live fetches the liveness document.
func (c *Client) Live(ctx context.Context) (*Liveness, error) {
	var live Liveness
	if err := c.get(ctx, "/health/live", &live); err != nil {
		return nil, err
	}
	return &live, nil
}

// Ready fetches the readiness document.
func (c *Client) Ready(ctx context.Context) (*Readiness, error) {
	var ready Readiness
	if err := c.get(ctx, "/health/ready", &ready); err != nil {
		return nil, err
	}
	return &ready, nil
}

// Stores fetches the deep store health report.
func (c *Client) Stores(ctx context.Context) (*StoresReport, error) {
	var report StoresReport
	if err := c.get(ctx, "/health/stores", &report); err != nil {
		return nil, err
	}
	return &report, nil
}
