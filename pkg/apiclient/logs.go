package apiclient

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/aquilhq/actionlog/pkg/models"
)

// LogList is the read reply for list and search endpoints.
type LogList struct {
	Items     []*models.Envelope `json:"items"`
	Count     int                `json:"count"`
	SessionID string             `json:"session_id,omitempty"`
}

// ListParams filters a log listing. Zero values are omitted.
type ListParams struct {
	Limit     int
	SessionID string
	Since     time.Time
}

// ListLogs fetches recent envelopes.
func (c *Client) ListLogs(ctx context.Context, params ListParams) (*LogList, error) {
	q := url.Values{}
	if params.Limit > 0 {
		q.Set("limit", strconv.Itoa(params.Limit))
	}
	if params.SessionID != "" {
		q.Set("session_id", params.SessionID)
	}
	if !params.Since.IsZero() {
		q.Set("since", params.Since.Format(time.RFC3339))
	}

	path := "/api/v1/logs"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var list LogList
	if err := c.get(ctx, path, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// GetLog fetches a single envelope by id.
func (c *Client) GetLog(ctx context.Context, id string) (*models.Envelope, error) {
	var e models.Envelope
	if err := c.get(ctx, "/api/v1/logs/"+url.PathEscape(id), &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// Search runs a semantic retrieval query.
func (c *Client) Search(ctx context.Context, query string, limit int) (*LogList, error) {
	q := url.Values{}
	q.Set("q", query)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var list LogList
	if err := c.get(ctx, fmt.Sprintf("/api/v1/search?%s", q.Encode()), &list); err != nil {
		return nil, err
	}
	return &list, nil
}
