// Package relay forwards encrypted envelopes to the external language-model
// service and returns its encrypted reply. The server never sees plaintext.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/nazarriya/chatrelay/internal/common"
	"github.com/nazarriya/chatrelay/internal/server/models"
)

// maxReplyBytes bounds how much of an upstream reply is read.
const maxReplyBytes = 8 << 20

// Reply is the upstream answer: an encrypted envelope plus optional opaque
// source references passed through to the client untouched.
type Reply struct {
	Envelope models.Envelope
	Sources  []json.RawMessage
}

type Gateway interface {
	Relay(ctx context.Context, env models.Envelope) (*Reply, error)
}

type HTTPGateway struct {
	url        string
	timeout    time.Duration
	httpClient *http.Client
}

// NewHTTPGateway builds a gateway posting to url. Every call is bounded by
// timeout on top of the caller's context.
func NewHTTPGateway(url string, timeout time.Duration) *HTTPGateway {
	return &HTTPGateway{
		url:        url,
		timeout:    timeout,
		httpClient: &http.Client{},
	}
}

type relayRequest struct {
	EncryptedMessage   string                    `json:"encrypted_message"`
	EncryptionMetadata models.EncryptionMetadata `json:"encryption_metadata"`
	ContentHash        string                    `json:"content_hash"`
}

type relayResponse struct {
	EncryptedResponse  string                    `json:"encrypted_response"`
	EncryptionMetadata models.EncryptionMetadata `json:"encryption_metadata"`
	ContentHash        string                    `json:"content_hash"`
	Sources            []json.RawMessage         `json:"sources,omitempty"`
}

// Relay sends env upstream. Every failure, including a reply that does not
// carry a complete envelope, is reported as common.ErrUpstreamUnavailable
// wrapping the cause. There are no retries.
func (g *HTTPGateway) Relay(ctx context.Context, env models.Envelope) (*Reply, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	payload, err := json.Marshal(relayRequest{
		EncryptedMessage:   string(env.Ciphertext()),
		EncryptionMetadata: env.Metadata(),
		ContentHash:        env.ContentHash(),
	})
	if err != nil {
		return nil, upstreamError("marshal request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(payload))
	if err != nil {
		return nil, upstreamError("create request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, upstreamError("send request", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes+1))
	if err != nil {
		return nil, upstreamError("read response", err)
	}
	if len(body) > maxReplyBytes {
		return nil, upstreamError("read response", fmt.Errorf("reply exceeds %d bytes", maxReplyBytes))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, upstreamError("upstream status", fmt.Errorf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode)))
	}

	var out relayResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, upstreamError("parse response", err)
	}

	reply, err := models.NewEnvelope([]byte(out.EncryptedResponse), out.EncryptionMetadata, out.ContentHash)
	if err != nil {
		return nil, upstreamError("incomplete response", err)
	}

	return &Reply{Envelope: reply, Sources: out.Sources}, nil
}

func upstreamError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", common.ErrUpstreamUnavailable, op, err)
}
