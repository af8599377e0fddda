package apiclient

import (
	"context"

	"github.com/aquilhq/actionlog/pkg/models"
)

// ReconcileRequest triggers an on-demand reconciliation pass.
type ReconcileRequest struct {
	WindowHours int   `json:"window_hours,omitempty"`
	DryRun      *bool `json:"dry_run,omitempty"`
}

// ReconcileSummary is the server's reconciliation report.
type ReconcileSummary struct {
	Analyzed    int                          `json:"analyzed"`
	Missing     map[models.StoreTag]int      `json:"missing_counts"`
	MissingIDs  map[models.StoreTag][]string `json:"missing_ids,omitempty"`
	Backfilled  int                          `json:"backfilled"`
	Failed      int                          `json:"failed"`
	DryRun      bool                         `json:"dry_run"`
	WindowHours int                          `json:"window_hours"`
	Consistency string                       `json:"consistency"`
}

// Reconcile triggers a reconciliation pass. Requires an admin token when
// the server has one configured.
func (c *Client) Reconcile(ctx context.Context, req *ReconcileRequest) (*ReconcileSummary, error) {
	var summary ReconcileSummary
	if err := c.post(ctx, "/api/v1/admin/reconcile", req, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// MetricsSnapshot is the merged counter snapshot.
type MetricsSnapshot struct {
	Counters  map[string]int64 `json:"counters"`
	Timestamp string           `json:"timestamp"`
}

// Metrics fetches the counter snapshot.
func (c *Client) Metrics(ctx context.Context) (*MetricsSnapshot, error) {
	var snap MetricsSnapshot
	if err := c.get(ctx, "/api/v1/admin/metrics", &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}
