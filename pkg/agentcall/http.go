package agentcall

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// DefaultTimeout bounds a coordinator round trip. Governance pipelines run
// several agents in sequence, so this is generous compared to a plain API call.
const DefaultTimeout = 120 * time.Second

// HTTPCaller posts call requests to a coordinator endpoint as JSON.
type HTTPCaller struct {
	endpoint string
	client   *http.Client
}

type callRequest struct {
	AgentID string `json:"agent_id"`
	Prompt  string `json:"prompt"`
}

// NewHTTPCaller builds a caller against endpoint. A nil client gets a default
// with DefaultTimeout.
func NewHTTPCaller(endpoint string, client *http.Client) *HTTPCaller {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	return &HTTPCaller{endpoint: endpoint, client: client}
}

func (c *HTTPCaller) Call(ctx context.Context, promptText, agentID string) (*CallResult, error) {
	jsonBody, err := json.Marshal(callRequest{AgentID: agentID, Prompt: promptText})
	if err != nil {
		return nil, fmt.Errorf("agentcall: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.endpoint, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("agentcall: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("agentcall: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("agentcall: coordinator returned %d", resp.StatusCode)
	}

	var result CallResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("agentcall: decode response: %w", err)
	}
	return &result, nil
}
