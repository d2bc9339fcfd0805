package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPSubmitter submits contract calls to a signing service that holds the
// server key, signs the transaction and broadcasts it to the chain. The
// pipeline never sees raw key material beyond the configured credential.
type HTTPSubmitter struct {
	endpoint  string
	senderKey string
	client    *http.Client
}

// NewHTTPSubmitter creates a submitter for the given signer endpoint.
func NewHTTPSubmitter(endpoint, senderKey string) *HTTPSubmitter {
	return &HTTPSubmitter{
		endpoint:  endpoint,
		senderKey: senderKey,
		client:    &http.Client{Timeout: 60 * time.Second},
	}
}

// Compile-time interface check.
var _ TxSubmitter = (*HTTPSubmitter)(nil)

// submitRequest is the signer request body.
type submitRequest struct {
	*ContractCall
	SenderKey string `json:"senderKey"`
}

// submitResponse is the signer response body.
type submitResponse struct {
	TxID  string `json:"txid"`
	Error string `json:"error"`
}

// Submit signs and broadcasts the call. Submission is never retried by the
// gateway: a timed-out broadcast may still have landed on chain.
func (s *HTTPSubmitter) Submit(ctx context.Context, call *ContractCall) (string, error) {
	const op = "submit transaction"

	body, err := json.Marshal(submitRequest{ContractCall: call, SenderKey: s.senderKey})
	if err != nil {
		return "", Permanent(op, fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", Permanent(op, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", Transient(op, fmt.Errorf("http request: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", Transient(op, fmt.Errorf("read response: %w", err))
	}

	var sr submitResponse
	if err := json.Unmarshal(respBody, &sr); err != nil {
		return "", Transient(op, fmt.Errorf("unmarshal response: %w", err))
	}

	switch {
	case resp.StatusCode >= 500:
		return "", Transient(op, fmt.Errorf("signer error %d: %s", resp.StatusCode, respBody))
	case resp.StatusCode != http.StatusOK:
		// Contract-level rejection: the signer validated and the chain said no.
		msg := sr.Error
		if msg == "" {
			msg = string(respBody)
		}
		return "", Permanent(op, fmt.Errorf("rejected: %s", msg))
	}

	if sr.TxID == "" {
		return "", Permanent(op, fmt.Errorf("signer returned no txid"))
	}
	return sr.TxID, nil
}
