package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPClient talks JSON-RPC to a remote ledger endpoint. One POST per call;
// the ledger node is trusted to enforce checkpoint freshness and signature
// validity — this client only moves bytes.
type HTTPClient struct {
	endpoint string
	http     *http.Client
}

// NewHTTPClient returns a client for the given endpoint.
func NewHTTPClient(endpoint string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		endpoint: endpoint,
		http:     &http.Client{Timeout: timeout},
	}
}

type rpcRequest struct {
	Method string      `json:"method"`
	Params interface{} `json:"params,omitempty"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

func (c *HTTPClient) call(ctx context.Context, method string, params, result interface{}) error {
	body, err := json.Marshal(rpcRequest{Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s round trip: %w", method, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%s read response: %w", method, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: ledger returned %d: %s", method, resp.StatusCode, string(data))
	}

	var rpc rpcResponse
	if err := json.Unmarshal(data, &rpc); err != nil {
		return fmt.Errorf("%s decode response: %w", method, err)
	}
	if rpc.Error != "" {
		return fmt.Errorf("%s: ledger error: %s", method, rpc.Error)
	}
	if result != nil {
		if err := json.Unmarshal(rpc.Result, result); err != nil {
			return fmt.Errorf("%s decode result: %w", method, err)
		}
	}
	return nil
}

// Checkpoint fetches current sequencing material from the node.
func (c *HTTPClient) Checkpoint(ctx context.Context) (string, error) {
	var out struct {
		Checkpoint string `json:"checkpoint"`
	}
	if err := c.call(ctx, "getCheckpoint", nil, &out); err != nil {
		return "", err
	}
	if out.Checkpoint == "" {
		return "", fmt.Errorf("getCheckpoint: empty checkpoint from ledger")
	}
	return out.Checkpoint, nil
}

// Submit publishes one signed memo.
func (c *HTTPClient) Submit(ctx context.Context, memo SignedMemo) (string, error) {
	var out struct {
		Ref string `json:"ref"`
	}
	if err := c.call(ctx, "submitMemo", memo, &out); err != nil {
		return "", err
	}
	if out.Ref == "" {
		return "", fmt.Errorf("submitMemo: empty reference from ledger")
	}
	return out.Ref, nil
}

// Confirm reports finality for ref.
func (c *HTTPClient) Confirm(ctx context.Context, ref string) (Confirmation, error) {
	var out Confirmation
	params := struct {
		Ref string `json:"ref"`
	}{Ref: ref}
	if err := c.call(ctx, "confirmMemo", params, &out); err != nil {
		return Confirmation{}, err
	}
	return out, nil
}
