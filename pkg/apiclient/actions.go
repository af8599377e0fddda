package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/aquilhq/actionlog/pkg/models"
)

// ActionRequest is the write body for a single action.
type ActionRequest struct {
	OperationID string          `json:"operationId"`
	Level       string          `json:"level,omitempty"`
	Who         string          `json:"who,omitempty"`
	SessionID   string          `json:"session_id,omitempty"`
	Tags        []string        `json:"tags,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

// ActionResult is the server's write reply.
type ActionResult struct {
	Success       bool                               `json:"success"`
	Status        string                             `json:"status"`
	LogID         string                             `json:"logId"`
	OperationID   string                             `json:"operationId"`
	SessionID     string                             `json:"session_id"`
	Stores        []string                           `json:"stores"`
	StoreResults  map[models.StoreTag]models.Outcome `json:"store_results"`
	IdempotentHit bool                               `json:"idempotent_hit"`
}

// WriteAction posts one action. idempotencyKey may be empty.
func (c *Client) WriteAction(ctx context.Context, req *ActionRequest, idempotencyKey string) (*ActionResult, error) {
	var result ActionResult
	if idempotencyKey == "" {
		if err := c.post(ctx, "/api/v1/actions", req, &result); err != nil {
			return nil, err
		}
		return &result, nil
	}

	// The idempotency key travels as a header, so the generic post helper
	// does not fit here.
	data, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/actions", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotency-Key", idempotencyKey)
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	if err := c.doRaw(httpReq, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
